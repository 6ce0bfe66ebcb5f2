package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/store"
)

// NotificationsHandler serves a user's own notifications.
type NotificationsHandler struct {
	DB *sql.DB
}

// List handles GET /api/notifications. ?unread=true limits to unread ones.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	unread := r.URL.Query().Get("unread") == "true"
	notes, err := store.ListNotifications(r.Context(), h.DB, GetClaims(r.Context()).UserID, unread, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orEmpty(notes))
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := store.MarkNotificationRead(r.Context(), h.DB, GetClaims(r.Context()).UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "marked read"})
}

// UnreadCount handles GET /api/notifications/unread/count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := store.CountUnreadNotifications(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"count": n})
}

// MarkAllRead handles POST /api/notifications/mark-all-read.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := store.MarkAllNotificationsRead(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"marked": n})
}
