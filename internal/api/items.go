package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// ItemsHandler handles item reporting endpoints for signed-in users.
type ItemsHandler struct {
	Items *lifecycle.ItemManager
}

type submitItemRequest struct {
	Kind model.ItemKind `json:"kind"`
	model.ItemDetails
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req submitItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	item, err := h.Items.SubmitItem(r.Context(), claims.UserID, req.Kind, req.ItemDetails)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// List handles GET /api/items: approved found items open for claims.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.Items.ListPublicItems(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(items))
}

// Mine handles GET /api/items/mine.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.Items.ListReportedBy(r.Context(), GetClaims(r.Context()).UserID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(items))
}

// Get handles GET /api/items/{id}. Reporters see their own reports in any
// state; everyone else only sees publicly listed items.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	item, err := h.Items.GetFullDetails(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item.ReporterID != claims.UserID && !isAdmin(claims) {
		if !item.PubliclyVisible() {
			jsonError(w, http.StatusNotFound, "item not found")
			return
		}
		item.Timeline = nil
		item.AdminNotes = ""
	}
	jsonResponse(w, http.StatusOK, item)
}

// Resubmit handles PUT /api/items/{id}: the reporter answers a request for
// more information.
func (h *ItemsHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var details model.ItemDetails
	if err := decodeJSON(w, r, &details); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Items.ResubmitItem(r.Context(), id, GetClaims(r.Context()).UserID, details)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// MarkFound handles POST /api/items/{id}/found. Only the reporter or an
// admin may mark a lost item found.
func (h *ItemsHandler) MarkFound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	item, err := h.Items.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item.ReporterID != claims.UserID && !isAdmin(claims) {
		jsonError(w, http.StatusForbidden, "only the reporter can mark this item found")
		return
	}

	item, err = h.Items.MarkFound(r.Context(), id, claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}
