package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// AdminHandler handles the verification queue and back-office endpoints.
type AdminHandler struct {
	DB       *sql.DB
	Items    *lifecycle.ItemManager
	Claims   *lifecycle.ClaimManager
	Settings *lifecycle.SettingsService
}

// verifyRequest carries a verification decision. Each action reads only its
// own text field: notes for approve, reason for reject and deny, message for
// a request for more information.
type verifyRequest struct {
	Action   string `json:"action"`
	Notes    string `json:"notes"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	HoldDays *int   `json:"hold_days"`
}

func (v verifyRequest) text() string {
	switch v.Action {
	case "approve":
		return v.Notes
	case "reject", "deny":
		return v.Reason
	case "request_info", "needs_info":
		return v.Message
	}
	return ""
}

type archiveRequest struct {
	Reason string `json:"reason"`
}

// PendingItems handles GET /api/admin/items/pending.
func (h *AdminHandler) PendingItems(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.Items.ListPendingItems(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(items))
}

// Item handles GET /api/admin/items/{id}: the unredacted item with its timeline.
func (h *AdminHandler) Item(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Items.GetFullDetails(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// ItemClaims handles GET /api/admin/items/{id}/claims.
func (h *AdminHandler) ItemClaims(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims, err := h.Claims.ListClaimsForItem(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(claims))
}

// VerifyItem handles POST /api/admin/items/{id}/verify.
func (h *AdminHandler) VerifyItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	action, err := model.ParseItemAction(req.Action, req.text())
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Items.VerifyItem(r.Context(), id, GetClaims(r.Context()).UserID, action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// MarkReturned handles POST /api/admin/items/{id}/returned.
func (h *AdminHandler) MarkReturned(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.Items.MarkReturned(r.Context(), id, GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Archive handles POST /api/admin/items/{id}/archive.
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req archiveRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	item, err := h.Items.ArchiveItem(r.Context(), id, GetClaims(r.Context()).UserID, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// PendingClaims handles GET /api/admin/claims/pending.
func (h *AdminHandler) PendingClaims(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims, err := h.Claims.ListPendingClaims(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(claims))
}

// VerifyClaim handles POST /api/admin/claims/{id}/verify. A hold without
// hold_days lasts the configured hold period.
func (h *AdminHandler) VerifyClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	settings, err := h.Settings.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	action, err := model.ParseClaimAction(req.Action, req.text(), req.HoldDays, settings.HoldPeriodDays)
	if err != nil {
		writeError(w, r, err)
		return
	}

	claim, err := h.Claims.VerifyClaim(r.Context(), id, GetClaims(r.Context()).UserID, action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, claim)
}

// GetSettings handles GET /api/admin/settings.
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Settings.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/admin/settings. The body is a partial
// object of setting keys; numbers and strings are both accepted.
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	values := make(map[string]string, len(req))
	for k, v := range req {
		switch v := v.(type) {
		case string:
			values[k] = v
		case float64:
			values[k] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("setting %q must be a string or number", k))
			return
		}
	}

	settings, err := h.Settings.Update(r.Context(), GetClaims(r.Context()).UserID, values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, settings)
}

// Audit handles GET /api/admin/audit. Supports action, target_type and
// target_id filters plus paging.
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	filter := model.AuditFilter{
		Action:     q.Get("action"),
		TargetType: model.TargetType(q.Get("target_type")),
		Limit:      limit,
		Offset:     offset,
	}
	if v := q.Get("target_id"); v != "" {
		filter.TargetID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || filter.TargetID <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid target_id")
			return
		}
	}

	entries, err := store.ListAudit(r.Context(), h.DB, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(entries))
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetStats(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
