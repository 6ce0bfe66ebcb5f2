package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// ClaimsHandler handles ownership claims made by signed-in users.
type ClaimsHandler struct {
	Claims *lifecycle.ClaimManager
}

// Create handles POST /api/items/{id}/claims.
func (h *ClaimsHandler) Create(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var fields model.VerificationFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, r, err)
		return
	}

	claim, err := h.Claims.SubmitClaim(r.Context(), itemID, GetClaims(r.Context()).UserID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, claim)
}

// Mine handles GET /api/claims/mine.
func (h *ClaimsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims, err := h.Claims.ListClaimsForClaimant(r.Context(), GetClaims(r.Context()).UserID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(claims))
}

// Get handles GET /api/claims/{id}; visible to the claimant and admins.
func (h *ClaimsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := GetClaims(r.Context())
	claim, err := h.Claims.GetClaim(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if claim.ClaimantID != claims.UserID && !isAdmin(claims) {
		jsonError(w, http.StatusNotFound, "claim not found")
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}

// Resubmit handles PUT /api/claims/{id}: the claimant answers a request for
// more information.
func (h *ClaimsHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var fields model.VerificationFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, r, err)
		return
	}

	claim, err := h.Claims.ResubmitClaim(r.Context(), id, GetClaims(r.Context()).UserID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}
