package lifecycle

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

func TestSubmitItem(t *testing.T) {
	f := setup(t)

	item, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, backpack())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^LF-2026-[0-9A-F]{8}$`), item.ReferenceNumber)
	assert.Equal(t, model.ItemStatusFound, item.Status)
	assert.Equal(t, model.VerificationPending, item.VerificationStatus)
	assert.Equal(t, f.reporter, item.ReporterID)

	entries := f.audit(t, model.TargetItem, item.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, model.AuditSubmitItem, entries[0].Action)
	assert.Equal(t, f.reporter, entries[0].ActorID)

	lost, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindLost, backpack())
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusLost, lost.Status)
	assert.NotEqual(t, item.ReferenceNumber, lost.ReferenceNumber)
}

func TestSubmitItemValidation(t *testing.T) {
	f := setup(t)

	missingTitle := backpack()
	missingTitle.Title = "   "
	_, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, missingTitle)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.items.SubmitItem(f.ctx, f.reporter, "stolen", backpack())
	assert.ErrorIs(t, err, model.ErrValidation)

	items, err := store.ListItems(f.ctx, f.db, store.ItemFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestVerifyItemTransitions(t *testing.T) {
	f := setup(t)
	item, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, backpack())
	require.NoError(t, err)

	_, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.RejectItem{Reason: " "})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.RequestItemInfo{})
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = f.items.VerifyItem(f.ctx, 9999, f.admin, model.ApproveItem{})
	assert.ErrorIs(t, err, model.ErrNotFound)

	item, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.RequestItemInfo{Message: "Which floor exactly?"})
	require.NoError(t, err)
	assert.Equal(t, model.VerificationNeedsInfo, item.VerificationStatus)
	assert.Equal(t, "Which floor exactly?", item.AdminNotes)

	// Only resubmission leaves needs_info.
	_, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.ApproveItem{})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.RejectItem{Reason: "no answer"})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = f.items.ResubmitItem(f.ctx, item.ID, f.x, backpack())
	assert.ErrorIs(t, err, model.ErrForbidden)

	details := backpack()
	details.Location = "Library 2nd floor, quiet zone"
	item, err = f.items.ResubmitItem(f.ctx, item.ID, f.reporter, details)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationPending, item.VerificationStatus)
	assert.Equal(t, "Library 2nd floor, quiet zone", item.Location)

	_, err = f.items.ResubmitItem(f.ctx, item.ID, f.reporter, details)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	item, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.ApproveItem{Notes: "ok"})
	require.NoError(t, err)
	assert.Equal(t, model.VerificationApproved, item.VerificationStatus)
	require.NotNil(t, item.VerifiedAt)
	assert.True(t, item.PubliclyVisible())

	for _, action := range []model.ItemAction{model.ApproveItem{}, model.RejectItem{Reason: "dup"}, model.RequestItemInfo{Message: "?"}} {
		_, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, action)
		assert.ErrorIs(t, err, model.ErrInvalidTransition, "%T from approved", action)
	}

	actions := []string{}
	for _, e := range f.audit(t, model.TargetItem, item.ID) {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{
		model.AuditApproveItem, model.AuditResubmitItem, model.AuditRequestItemInfo, model.AuditSubmitItem,
	}, actions)

	notes := f.notifier.forUser(f.reporter)
	require.Len(t, notes, 2)
	assert.Equal(t, model.NotifyItemNeedsInfo, notes[0].Type)
	assert.Equal(t, model.NotifyItemApproved, notes[1].Type)
}

func TestRejectedItemIsTerminal(t *testing.T) {
	f := setup(t)
	item, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindLost, backpack())
	require.NoError(t, err)

	item, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.RejectItem{Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, model.VerificationRejected, item.VerificationStatus)

	_, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.ApproveItem{})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestGetFullDetailsIncludesTimeline(t *testing.T) {
	f := setup(t)
	item := f.foundItem(t)
	f.claim(t, item.ID, f.x)

	full, err := f.items.GetFullDetails(f.ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, full.Timeline, 3)
	assert.Equal(t, model.TimelineReported, full.Timeline[0].Action)
	assert.Equal(t, model.TimelineVerified, full.Timeline[1].Action)
	assert.Equal(t, model.TimelineClaimSubmitted, full.Timeline[2].Action)

	_, err = f.items.GetFullDetails(f.ctx, 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListings(t *testing.T) {
	f := setup(t)
	public := f.foundItem(t)
	_, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, backpack())
	require.NoError(t, err)
	lost, err := f.items.SubmitItem(f.ctx, f.x, model.ItemKindLost, backpack())
	require.NoError(t, err)

	pending, err := f.items.ListPendingItems(f.ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	visible, err := f.items.ListPublicItems(f.ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, public.ID, visible[0].ID)

	mine, err := f.items.ListReportedBy(f.ctx, f.x, 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, lost.ID, mine[0].ID)
}

func TestMarkFoundAndReturned(t *testing.T) {
	f := setup(t)
	item, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindLost, backpack())
	require.NoError(t, err)
	_, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.ApproveItem{})
	require.NoError(t, err)

	_, err = f.items.MarkReturned(f.ctx, item.ID, f.admin)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	item, err = f.items.MarkFound(f.ctx, item.ID, f.reporter)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusFound, item.Status)

	_, err = f.items.MarkFound(f.ctx, item.ID, f.reporter)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	c := f.claim(t, item.ID, f.x)
	_, err = f.claims.VerifyClaim(f.ctx, c.ID, f.admin, model.ApproveClaim{})
	require.NoError(t, err)

	item, err = f.items.MarkReturned(f.ctx, item.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusReturned, item.Status)

	entries := f.audit(t, model.TargetItem, item.ID)
	require.NotEmpty(t, entries)
	assert.Equal(t, model.AuditMarkReturned, entries[0].Action)
	assert.Equal(t, string(model.ItemStatusClaimed), entries[0].BeforeStatus)
}

func TestArchiveItem(t *testing.T) {
	f := setup(t)
	item := f.foundItem(t)
	open := f.claim(t, item.ID, f.x)

	item, err := f.items.ArchiveItem(f.ctx, item.ID, f.admin, "unclaimed for 90 days")
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusArchived, item.Status)

	c := f.reload(t, open.ID)
	assert.Equal(t, model.ClaimDenied, c.Status)
	assert.Equal(t, model.ReasonItemArchived, c.Reason)

	_, err = f.items.ArchiveItem(f.ctx, item.ID, f.admin, "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	held := f.foundItem(t)
	hc := f.claim(t, held.ID, f.y)
	_, err = f.claims.VerifyClaim(f.ctx, hc.ID, f.admin, model.HoldClaim{Days: 3})
	require.NoError(t, err)
	_, err = f.items.ArchiveItem(f.ctx, held.ID, f.admin, "")
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	f := setup(t)
	f.notifier.fails = true

	item, err := f.items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, backpack())
	require.NoError(t, err)
	item, err = f.items.VerifyItem(f.ctx, item.ID, f.admin, model.ApproveItem{})
	require.NoError(t, err)
	assert.Equal(t, model.VerificationApproved, item.VerificationStatus)
}

func TestStoreNotifier(t *testing.T) {
	f := setup(t)
	items := NewItemManager(f.db, f.clock, NewStoreNotifier(f.db))

	item, err := items.SubmitItem(f.ctx, f.reporter, model.ItemKindFound, backpack())
	require.NoError(t, err)
	_, err = items.VerifyItem(f.ctx, item.ID, f.admin, model.RejectItem{Reason: "duplicate report"})
	require.NoError(t, err)

	notes, err := store.ListNotifications(f.ctx, f.db, f.reporter, true, 0, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyItemRejected, notes[0].Type)
	assert.Contains(t, notes[0].Message, "duplicate report")
	assert.Equal(t, item.ID, notes[0].ItemID)
}
