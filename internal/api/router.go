package api

import (
	"database/sql"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/erazemk/najdeno/internal/clock"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// Login and registration allow a burst of 5 attempts per client, refilled
// at one every 12 seconds.
const (
	authBurst = 5
	authEvery = 12 * time.Second
)

// Deps are the services the API is built on.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Clock     clock.Clock
	Items     *lifecycle.ItemManager
	Claims    *lifecycle.ClaimManager
	Settings  *lifecycle.SettingsService
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, Clock: d.Clock}
	usersHandler := &UsersHandler{DB: d.DB, Clock: d.Clock}
	itemsHandler := &ItemsHandler{Items: d.Items}
	claimsHandler := &ClaimsHandler{Claims: d.Claims}
	adminHandler := &AdminHandler{DB: d.DB, Items: d.Items, Claims: d.Claims, Settings: d.Settings}
	notificationsHandler := &NotificationsHandler{DB: d.DB}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	limiter := NewRateLimiter(rate.Every(authEvery), authBurst)

	user := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.Handle("POST /api/auth/register", limiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", limiter.Middleware(http.HandlerFunc(authHandler.Login)))

	// Own account.
	mux.Handle("POST /api/auth/logout", user(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", user(authHandler.ChangePassword))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("GET /api/users/{id}/activity", admin(usersHandler.Activity))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Reports.
	mux.Handle("POST /api/items", user(itemsHandler.Create))
	mux.Handle("GET /api/items", user(itemsHandler.List))
	mux.Handle("GET /api/items/mine", user(itemsHandler.Mine))
	mux.Handle("GET /api/items/{id}", user(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", user(itemsHandler.Resubmit))
	mux.Handle("POST /api/items/{id}/found", user(itemsHandler.MarkFound))

	// Claims.
	mux.Handle("POST /api/items/{id}/claims", user(claimsHandler.Create))
	mux.Handle("GET /api/claims/mine", user(claimsHandler.Mine))
	mux.Handle("GET /api/claims/{id}", user(claimsHandler.Get))
	mux.Handle("PUT /api/claims/{id}", user(claimsHandler.Resubmit))

	// Verification queue and back office.
	mux.Handle("GET /api/admin/items/pending", admin(adminHandler.PendingItems))
	mux.Handle("GET /api/admin/items/{id}", admin(adminHandler.Item))
	mux.Handle("GET /api/admin/items/{id}/claims", admin(adminHandler.ItemClaims))
	mux.Handle("POST /api/admin/items/{id}/verify", admin(adminHandler.VerifyItem))
	mux.Handle("POST /api/admin/items/{id}/returned", admin(adminHandler.MarkReturned))
	mux.Handle("POST /api/admin/items/{id}/archive", admin(adminHandler.Archive))
	mux.Handle("GET /api/admin/claims/pending", admin(adminHandler.PendingClaims))
	mux.Handle("POST /api/admin/claims/{id}/verify", admin(adminHandler.VerifyClaim))
	mux.Handle("GET /api/admin/settings", admin(adminHandler.GetSettings))
	mux.Handle("PUT /api/admin/settings", admin(adminHandler.UpdateSettings))
	mux.Handle("GET /api/admin/audit", admin(adminHandler.Audit))
	mux.Handle("GET /api/admin/stats", admin(adminHandler.Stats))

	// Notifications.
	mux.Handle("GET /api/notifications", user(notificationsHandler.List))
	mux.Handle("GET /api/notifications/unread/count", user(notificationsHandler.UnreadCount))
	mux.Handle("POST /api/notifications/{id}/read", user(notificationsHandler.MarkRead))
	mux.Handle("POST /api/notifications/mark-all-read", user(notificationsHandler.MarkAllRead))

	return mux
}
