package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/clock"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []model.Notification
	fails bool
}

func (r *recordingNotifier) Notify(_ context.Context, n model.Notification) error {
	if r.fails {
		return errors.New("mail server down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) forUser(id int64) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.sent {
		if n.UserID == id {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	ctx      context.Context
	db       *sql.DB
	clock    *clock.Manual
	notifier *recordingNotifier
	items    *ItemManager
	claims   *ClaimManager
	settings *SettingsService

	admin, reporter, x, y int64
}

func newFixture(t require.TestingT, database *sql.DB) *fixture {
	ctx := context.Background()
	clk := clock.NewManual(t0)
	notifier := &recordingNotifier{}
	items := NewItemManager(database, clk, notifier)

	f := &fixture{
		ctx:      ctx,
		db:       database,
		clock:    clk,
		notifier: notifier,
		items:    items,
		claims:   NewClaimManager(database, clk, items, notifier),
		settings: NewSettingsService(database, clk),
	}
	require.NoError(t, f.settings.Init(ctx))

	user := func(name, role string) int64 {
		u, err := store.CreateUser(ctx, database, name, "hash", role, t0)
		require.NoError(t, err)
		return u.ID
	}
	f.admin = user("admin", model.RoleAdmin)
	f.reporter = user("reporter", model.RoleUser)
	f.x = user("x", model.RoleUser)
	f.y = user("y", model.RoleUser)
	return f
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return newFixture(t, db.NewTestDB(t))
}

func backpack() model.ItemDetails {
	return model.ItemDetails{
		Title:       "Blue backpack",
		Description: "North Face backpack with a cat keychain",
		Category:    "bags",
		Color:       "blue",
		Condition:   "worn",
		Location:    "Library 2nd floor",
		Date:        "2026-03-01",
	}
}

func fields() model.VerificationFields {
	return model.VerificationFields{
		VerificationDetails: "It has a cat keychain on the left zipper",
		Color:               "blue",
		Condition:           "worn",
		Location:            "Library",
		Date:                "2026-03-01",
	}
}

// foundItem returns an approved found item open for claims.
func (f *fixture) foundItem(t *testing.T) *model.Item {
	t.Helper()
	item, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, backpack())
	require.NoError(t, err)
	item, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.ApproveItem{})
	require.NoError(t, err)
	return item
}

func (f *fixture) claim(t *testing.T, itemID, claimantID int64) *model.Claim {
	t.Helper()
	c, err := f.claims.SubmitClaim(f.ctx, itemID, claimantID, fields())
	require.NoError(t, err)
	return c
}

func (f *fixture) item(t *testing.T, id int64) *model.Item {
	t.Helper()
	item, err := f.items.GetItem(f.ctx, id)
	require.NoError(t, err)
	return item
}

func (f *fixture) reload(t *testing.T, id int64) *model.Claim {
	t.Helper()
	c, err := f.claims.GetClaim(f.ctx, id)
	require.NoError(t, err)
	return c
}

func (f *fixture) audit(t *testing.T, target model.TargetType, id int64) []model.AuditEntry {
	t.Helper()
	entries, err := store.ListAudit(f.ctx, f.db, model.AuditFilter{TargetType: target, TargetID: id})
	require.NoError(t, err)
	return entries
}
