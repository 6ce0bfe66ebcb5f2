package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	reporter := mustUser(t, database, "reporter")

	item := mustItem(t, database, reporter.ID, model.ItemStatusFound, model.VerificationPending)
	if item.Title != "Blue backpack" {
		t.Errorf("expected title 'Blue backpack', got %q", item.Title)
	}
	if item.Status != model.ItemStatusFound {
		t.Errorf("expected status 'found', got %q", item.Status)
	}
	if !item.CreatedAt.Equal(testNow) {
		t.Errorf("expected created_at %v, got %v", testNow, item.CreatedAt)
	}
	if item.VerifiedAt != nil {
		t.Errorf("expected no verified_at, got %v", item.VerifiedAt)
	}

	missing, err := GetItem(ctx, database, 9999)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing item")
	}
}

func TestCreateItemDuplicateReference(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	reporter := mustUser(t, database, "reporter")

	item := mustItem(t, database, reporter.ID, model.ItemStatusLost, model.VerificationPending)
	dup := *item
	_, err := CreateItem(ctx, database, &dup)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListItemsByVerification(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	reporter := mustUser(t, database, "reporter")

	mustItem(t, database, reporter.ID, model.ItemStatusFound, model.VerificationPending)
	mustItem(t, database, reporter.ID, model.ItemStatusLost, model.VerificationPending)
	mustItem(t, database, reporter.ID, model.ItemStatusFound, model.VerificationApproved)

	all, _ := ListItems(ctx, database, ItemFilter{})
	if len(all) != 3 {
		t.Errorf("expected 3 items, got %d", len(all))
	}

	pending, _ := ListItems(ctx, database, ItemFilter{VerificationStatus: model.VerificationPending})
	if len(pending) != 2 {
		t.Errorf("expected 2 pending items, got %d", len(pending))
	}

	public, _ := ListItems(ctx, database, ItemFilter{
		Status:             model.ItemStatusFound,
		VerificationStatus: model.VerificationApproved,
	})
	if len(public) != 1 {
		t.Errorf("expected 1 public item, got %d", len(public))
	}

	page, _ := ListItems(ctx, database, ItemFilter{Limit: 2, Offset: 2})
	if len(page) != 1 {
		t.Errorf("expected 1 item on second page, got %d", len(page))
	}
}

func TestSetItemStatusCompareAndSet(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	reporter := mustUser(t, database, "reporter")
	item := mustItem(t, database, reporter.ID, model.ItemStatusFound, model.VerificationApproved)

	later := testNow.Add(time.Hour)
	if err := SetItemStatus(ctx, database, item.ID, []model.ItemStatus{model.ItemStatusFound}, model.ItemStatusOnHold, later); err != nil {
		t.Fatalf("SetItemStatus: %v", err)
	}

	// The item is no longer found, so the same transition must not apply twice.
	err := SetItemStatus(ctx, database, item.ID, []model.ItemStatus{model.ItemStatusFound}, model.ItemStatusClaimed, later)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Status != model.ItemStatusOnHold {
		t.Errorf("expected status 'on_hold', got %q", got.Status)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("expected updated_at %v, got %v", later, got.UpdatedAt)
	}
}

func TestSetItemVerification(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	reporter := mustUser(t, database, "reporter")
	item := mustItem(t, database, reporter.ID, model.ItemStatusFound, model.VerificationPending)

	err := SetItemVerification(ctx, database, item.ID, model.VerificationPending, model.VerificationApproved, "looks fine", testNow)
	if err != nil {
		t.Fatalf("SetItemVerification: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.VerificationStatus != model.VerificationApproved {
		t.Errorf("expected 'approved', got %q", got.VerificationStatus)
	}
	if got.AdminNotes != "looks fine" {
		t.Errorf("expected admin notes, got %q", got.AdminNotes)
	}
	if got.VerifiedAt == nil || !got.VerifiedAt.Equal(testNow) {
		t.Errorf("expected verified_at %v, got %v", testNow, got.VerifiedAt)
	}

	err = SetItemVerification(ctx, database, item.ID, model.VerificationPending, model.VerificationRejected, "", testNow)
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestResubmitItemDetails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	reporter := mustUser(t, database, "reporter")
	item := mustItem(t, database, reporter.ID, model.ItemStatusLost, model.VerificationNeedsInfo)

	details := model.ItemDetails{
		Title: "Navy backpack", Description: "North Face, left near the stairs", Category: "bags",
		Color: "navy", Location: "Library stairs", Date: "2026-03-01",
	}
	if err := ResubmitItemDetails(ctx, database, item.ID, details, testNow); err != nil {
		t.Fatalf("ResubmitItemDetails: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if got.Title != "Navy backpack" || got.VerificationStatus != model.VerificationPending {
		t.Errorf("unexpected item after resubmit: %+v", got)
	}

	if err := ResubmitItemDetails(ctx, database, item.ID, details, testNow); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict on second resubmit, got %v", err)
	}
}

func TestTimeline(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	reporter := mustUser(t, database, "reporter")
	item := mustItem(t, database, reporter.ID, model.ItemStatusLost, model.VerificationPending)

	AddTimelineEvent(ctx, database, item.ID, model.TimelineReported, "Item reported", reporter.ID, testNow)
	AddTimelineEvent(ctx, database, item.ID, model.TimelineVerified, "Item approved", 0, testNow)

	events, err := ListTimeline(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("ListTimeline: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Action != model.TimelineReported || events[1].Action != model.TimelineVerified {
		t.Errorf("expected events in insertion order, got %q then %q", events[0].Action, events[1].Action)
	}
}
