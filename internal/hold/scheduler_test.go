package hold

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/clock"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type env struct {
	ctx       context.Context
	clock     *clock.Manual
	items     *lifecycle.ItemManager
	claims    *lifecycle.ClaimManager
	settings  *lifecycle.SettingsService
	scheduler *Scheduler

	admin, x, y int64
	item        *model.Item
	held        *model.Claim
	pending     *model.Claim
}

// newEnv puts one claim on an item on hold for seven days at t0, with a
// second claim on the same item still pending.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	database := db.NewTestDB(t)
	clk := clock.NewManual(t0)

	items := lifecycle.NewItemManager(database, clk, nil)
	e := &env{
		ctx:      ctx,
		clock:    clk,
		items:    items,
		claims:   lifecycle.NewClaimManager(database, clk, items, nil),
		settings: lifecycle.NewSettingsService(database, clk),
	}
	e.scheduler = NewScheduler(e.claims, time.Minute)
	require.NoError(t, e.settings.Init(ctx))

	for _, u := range []struct {
		name string
		id   *int64
	}{{"admin", &e.admin}, {"x", &e.x}, {"y", &e.y}} {
		user, err := store.CreateUser(ctx, database, u.name, "hash", model.RoleUser, t0)
		require.NoError(t, err)
		*u.id = user.ID
	}

	item, err := items.SubmitItem(ctx, e.admin, model.ItemKindFound, model.ItemDetails{
		Title: "Umbrella", Description: "Black umbrella with wooden handle", Category: "accessories",
		Color: "black", Condition: "good", Location: "Cafeteria", Date: "2026-03-01",
	})
	require.NoError(t, err)
	_, err = items.VerifyItem(ctx, item.ID, e.admin, model.ApproveItem{})
	require.NoError(t, err)

	fields := model.VerificationFields{
		VerificationDetails: "Wooden handle with initials carved in it",
		Color:               "black",
		Condition:           "good",
		Location:            "Cafeteria",
		Date:                "2026-03-01",
	}
	e.held, err = e.claims.SubmitClaim(ctx, item.ID, e.x, fields)
	require.NoError(t, err)
	e.pending, err = e.claims.SubmitClaim(ctx, item.ID, e.y, fields)
	require.NoError(t, err)

	e.held, err = e.claims.VerifyClaim(ctx, e.held.ID, e.admin, model.HoldClaim{Days: 7})
	require.NoError(t, err)
	e.item, err = items.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, model.ItemStatusOnHold, e.item.Status)
	return e
}

func (e *env) state(t *testing.T) (model.ClaimStatus, model.ItemStatus) {
	t.Helper()
	c, err := e.claims.GetClaim(e.ctx, e.held.ID)
	require.NoError(t, err)
	item, err := e.items.GetItem(e.ctx, e.item.ID)
	require.NoError(t, err)
	return c.Status, item.Status
}

func TestScanBeforeExpiryIsNoop(t *testing.T) {
	e := newEnv(t)
	e.clock.Advance(3 * 24 * time.Hour)

	n, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	claim, item := e.state(t)
	assert.Equal(t, model.ClaimOnHold, claim)
	assert.Equal(t, model.ItemStatusOnHold, item)
}

func TestScanAtExactExpiry(t *testing.T) {
	e := newEnv(t)
	e.clock.Advance(7 * 24 * time.Hour)

	n, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExpiryRevertsItem(t *testing.T) {
	e := newEnv(t)
	e.clock.Advance(7*24*time.Hour + time.Second)

	n, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := e.claims.GetClaim(e.ctx, e.held.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimDenied, c.Status)
	assert.Equal(t, model.ReasonHoldExpired, c.Reason)
	assert.Nil(t, c.HoldExpiresAt)

	item, err := e.items.GetItem(e.ctx, e.item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusFound, item.Status)

	// The other claim survives and can now win the item.
	pending, err := e.claims.GetClaim(e.ctx, e.pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimPending, pending.Status)
	_, err = e.claims.VerifyClaim(e.ctx, e.pending.ID, e.admin, model.ApproveClaim{})
	require.NoError(t, err)
}

func TestExpiryIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.clock.Advance(8 * 24 * time.Hour)

	n, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	expired, err := e.claims.ExpireHold(e.ctx, e.held.ID)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestExpiryArchivePolicy(t *testing.T) {
	e := newEnv(t)
	_, err := e.settings.Update(e.ctx, e.admin, map[string]string{model.SettingHoldExpiryPolicy: "archive"})
	require.NoError(t, err)
	e.clock.Advance(7*24*time.Hour + time.Second)

	n, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	claim, item := e.state(t)
	assert.Equal(t, model.ClaimDenied, claim)
	assert.Equal(t, model.ItemStatusArchived, item)

	pending, err := e.claims.GetClaim(e.ctx, e.pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimDenied, pending.Status)
	assert.Equal(t, model.ReasonItemArchived, pending.Reason)
}

func TestManualApproveBeforeExpiryWins(t *testing.T) {
	e := newEnv(t)
	e.clock.Advance(7*24*time.Hour + time.Second)

	_, err := e.claims.VerifyClaim(e.ctx, e.held.ID, e.admin, model.ApproveClaim{})
	require.NoError(t, err)

	n, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	claim, item := e.state(t)
	assert.Equal(t, model.ClaimApproved, claim)
	assert.Equal(t, model.ItemStatusClaimed, item)
}

func TestExpiryBeforeManualApproveWins(t *testing.T) {
	e := newEnv(t)
	e.clock.Advance(7*24*time.Hour + time.Second)

	n, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.claims.VerifyClaim(e.ctx, e.held.ID, e.admin, model.ApproveClaim{})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	claim, item := e.state(t)
	assert.Equal(t, model.ClaimDenied, claim)
	assert.Equal(t, model.ItemStatusFound, item)
}

func TestExpiryAuditEntries(t *testing.T) {
	e := newEnv(t)
	e.clock.Advance(8 * 24 * time.Hour)
	_, err := e.scheduler.RunOnce(e.ctx)
	require.NoError(t, err)

	item, err := e.items.GetFullDetails(e.ctx, e.item.ID)
	require.NoError(t, err)
	last := item.Timeline[len(item.Timeline)-1]
	assert.Equal(t, model.TimelineHoldExpired, last.Action)
	assert.Equal(t, model.SystemActor, last.ActorID)
}

type fakeExpirer struct {
	mu       sync.Mutex
	scans    int
	listErr  error
	due      []model.Claim
	expireFn func(id int64) (bool, error)
}

func (f *fakeExpirer) ListExpiredHolds(context.Context) ([]model.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	return f.due, f.listErr
}

func (f *fakeExpirer) ExpireHold(_ context.Context, id int64) (bool, error) {
	return f.expireFn(id)
}

func (f *fakeExpirer) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

func TestRunOnceSkipsConflictsAndCollectsErrors(t *testing.T) {
	f := &fakeExpirer{
		due: []model.Claim{{ID: 1}, {ID: 2}, {ID: 3}},
		expireFn: func(id int64) (bool, error) {
			switch id {
			case 1:
				return false, model.ErrConflict
			case 2:
				return false, errors.New("disk full")
			}
			return true, nil
		},
	}

	n, err := NewScheduler(f, time.Minute).RunOnce(context.Background())
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim 2")
	assert.NotErrorIs(t, err, model.ErrConflict)
}

func TestRunKeepsScanningAfterFailures(t *testing.T) {
	f := &fakeExpirer{listErr: errors.New("database is locked")}
	s := NewScheduler(f, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return f.scanCount() >= 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestBackOffGrowsAndCaps(t *testing.T) {
	s := NewScheduler(&fakeExpirer{}, time.Second)
	bo := s.newBackOff()

	var last time.Duration
	for range 20 {
		next := bo.NextBackOff()
		assert.Positive(t, next)
		assert.LessOrEqual(t, next, time.Second*maxBackoffFactor*3/2)
		last = next
	}
	assert.Greater(t, last, time.Second)
}
