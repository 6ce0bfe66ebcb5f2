package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/najdeno/internal/clock"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// referenceAttempts bounds how many reference numbers are tried before
// giving up on a collision.
const referenceAttempts = 3

// ItemManager owns item verification status and item status.
type ItemManager struct {
	db       *sql.DB
	clock    clock.Clock
	notifier Notifier
	inst     instruments
}

// NewItemManager creates an ItemManager. A nil notifier discards notifications.
func NewItemManager(db *sql.DB, clk clock.Clock, notifier Notifier) *ItemManager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ItemManager{db: db, clock: clk, notifier: notifier, inst: newInstruments("lifecycle/items")}
}

// newReferenceNumber returns a human-facing reference like LF-2026-1A2B3C4D.
func newReferenceNumber(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("LF-%d-%s", now.Year(), strings.ToUpper(hex[:8]))
}

// SubmitItem records a new lost or found report awaiting verification.
func (m *ItemManager) SubmitItem(ctx context.Context, reporterID int64, kind model.ItemKind, details model.ItemDetails) (_ *model.Item, err error) {
	ctx, sp := m.inst.start(ctx, "item.submit", attribute.Int64("reporter.id", reporterID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	status, err := kind.InitialStatus()
	if err != nil {
		return nil, err
	}
	details = details.Trimmed()
	if err := details.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	item := &model.Item{
		Title:              details.Title,
		Description:        details.Description,
		Category:           details.Category,
		Color:              details.Color,
		Condition:          details.Condition,
		Location:           details.Location,
		Date:               details.Date,
		Status:             status,
		VerificationStatus: model.VerificationPending,
		ReporterID:         reporterID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var created *model.Item
	err = store.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		var id int64
		for attempt := 1; ; attempt++ {
			item.ReferenceNumber = newReferenceNumber(now)
			var err error
			id, err = store.CreateItem(ctx, tx, item)
			if err == nil {
				break
			}
			if !errors.Is(err, model.ErrConflict) || attempt == referenceAttempts {
				return err
			}
		}

		if err := store.AddTimelineEvent(ctx, tx, id, model.TimelineReported, "Reported as "+string(kind), reporterID, now); err != nil {
			return err
		}
		err := audit(ctx, tx, model.AuditEntry{
			ActorID:     reporterID,
			Action:      model.AuditSubmitItem,
			TargetType:  model.TargetItem,
			TargetID:    id,
			AfterStatus: string(model.VerificationPending),
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		created, err = store.GetItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.inst.committed(ctx, model.AuditSubmitItem)
	slog.Info("item submitted", "item", created.ID, "reference", created.ReferenceNumber, "reporter", reporterID, "status", created.Status)
	return created, nil
}

// VerifyItem applies an admin decision to a pending report.
func (m *ItemManager) VerifyItem(ctx context.Context, itemID, actorID int64, action model.ItemAction) (_ *model.Item, err error) {
	ctx, sp := m.inst.start(ctx, "item.verify", attribute.Int64("item.id", itemID), attribute.Int64("actor.id", actorID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	if action == nil {
		return nil, fmt.Errorf("%w: action required", model.ErrValidation)
	}
	if err := action.Validate(); err != nil {
		return nil, err
	}

	var (
		to         model.VerificationStatus
		notes      string
		event      string
		notifyType string
		title      string
	)
	switch a := action.(type) {
	case model.ApproveItem:
		to, notes, event = model.VerificationApproved, strings.TrimSpace(a.Notes), model.TimelineVerified
		notifyType, title = model.NotifyItemApproved, "Report approved"
	case model.RejectItem:
		to, notes, event = model.VerificationRejected, strings.TrimSpace(a.Reason), model.TimelineRejected
		notifyType, title = model.NotifyItemRejected, "Report rejected"
	case model.RequestItemInfo:
		to, notes, event = model.VerificationNeedsInfo, strings.TrimSpace(a.Message), model.TimelineMoreInfoRequested
		notifyType, title = model.NotifyItemNeedsInfo, "More information needed"
	default:
		return nil, fmt.Errorf("%w: unsupported item action %T", model.ErrValidation, action)
	}

	now := m.clock.Now()
	var updated *model.Item
	err = store.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		item, err := store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item", itemID)
		}
		if item.VerificationStatus != model.VerificationPending {
			return fmt.Errorf("%w: item %d is %s, not pending verification",
				model.ErrInvalidTransition, itemID, item.VerificationStatus)
		}

		if err := store.SetItemVerification(ctx, tx, itemID, model.VerificationPending, to, notes, now); err != nil {
			return err
		}
		if err := store.AddTimelineEvent(ctx, tx, itemID, event, title, actorID, now); err != nil {
			return err
		}
		err = audit(ctx, tx, model.AuditEntry{
			ActorID:      actorID,
			Action:       model.ActionName(action),
			TargetType:   model.TargetItem,
			TargetID:     itemID,
			BeforeStatus: string(model.VerificationPending),
			AfterStatus:  string(to),
			Reason:       notes,
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}

		updated, err = store.GetItem(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.inst.committed(ctx, model.ActionName(action))
	slog.Info("item verified", "item", itemID, "actor", actorID, "before", model.VerificationPending, "after", to)

	message := fmt.Sprintf("Your report %s (%s) was reviewed.", updated.ReferenceNumber, updated.Title)
	if notes != "" {
		message += " " + notes
	}
	deliver(ctx, m.notifier, []model.Notification{{
		UserID:    updated.ReporterID,
		Type:      notifyType,
		Title:     title,
		Message:   message,
		ItemID:    itemID,
		CreatedAt: now,
	}})
	return updated, nil
}

// ResubmitItem replaces the details of a report an admin asked more
// information about and returns it to pending verification.
func (m *ItemManager) ResubmitItem(ctx context.Context, itemID, reporterID int64, details model.ItemDetails) (_ *model.Item, err error) {
	ctx, sp := m.inst.start(ctx, "item.resubmit", attribute.Int64("item.id", itemID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	details = details.Trimmed()
	if err := details.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var updated *model.Item
	err = store.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		item, err := store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item", itemID)
		}
		if item.ReporterID != reporterID {
			return fmt.Errorf("%w: only the reporter may resubmit item %d", model.ErrForbidden, itemID)
		}
		if item.VerificationStatus != model.VerificationNeedsInfo {
			return fmt.Errorf("%w: item %d is %s, not awaiting more information",
				model.ErrInvalidTransition, itemID, item.VerificationStatus)
		}

		if err := store.ResubmitItemDetails(ctx, tx, itemID, details, now); err != nil {
			return err
		}
		if err := store.AddTimelineEvent(ctx, tx, itemID, model.TimelineResubmitted, "Details updated by reporter", reporterID, now); err != nil {
			return err
		}
		err = audit(ctx, tx, model.AuditEntry{
			ActorID:      reporterID,
			Action:       model.AuditResubmitItem,
			TargetType:   model.TargetItem,
			TargetID:     itemID,
			BeforeStatus: string(model.VerificationNeedsInfo),
			AfterStatus:  string(model.VerificationPending),
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}

		updated, err = store.GetItem(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.inst.committed(ctx, model.AuditResubmitItem)
	slog.Info("item resubmitted", "item", itemID, "reporter", reporterID)
	return updated, nil
}

// MarkFound records that a lost item has turned up.
func (m *ItemManager) MarkFound(ctx context.Context, itemID, actorID int64) (*model.Item, error) {
	return m.changeStatus(ctx, "item.mark_found", itemID, actorID, itemMove{
		to:     model.ItemStatusFound,
		action: model.AuditMarkFound,
		event:  model.TimelineMarkedFound,
		note:   "Marked as found",
	}, func(item *model.Item) error {
		if item.Status != model.ItemStatusLost {
			return fmt.Errorf("%w: item %d is %s, not lost", model.ErrInvalidTransition, itemID, item.Status)
		}
		return nil
	})
}

// MarkReturned records that the approved claimant collected the item.
func (m *ItemManager) MarkReturned(ctx context.Context, itemID, actorID int64) (*model.Item, error) {
	return m.changeStatus(ctx, "item.mark_returned", itemID, actorID, itemMove{
		to:     model.ItemStatusReturned,
		action: model.AuditMarkReturned,
		event:  model.TimelineReturned,
		note:   "Returned to owner",
	}, func(item *model.Item) error {
		if item.Status != model.ItemStatusClaimed {
			return fmt.Errorf("%w: item %d is %s, not claimed", model.ErrInvalidTransition, itemID, item.Status)
		}
		return nil
	})
}

// ArchiveItem retires an unclaimed item. Open claims on it are denied.
func (m *ItemManager) ArchiveItem(ctx context.Context, itemID, actorID int64, reason string) (*model.Item, error) {
	reason = strings.TrimSpace(reason)
	note := "Archived"
	if reason != "" {
		note += ": " + reason
	}
	return m.changeStatus(ctx, "item.archive", itemID, actorID, itemMove{
		to:     model.ItemStatusArchived,
		action: model.AuditArchiveItem,
		event:  model.TimelineArchived,
		note:   note,
		reason: reason,
	}, func(item *model.Item) error {
		switch item.Status {
		case model.ItemStatusLost, model.ItemStatusFound:
			return nil
		case model.ItemStatusOnHold, model.ItemStatusClaimed:
			return fmt.Errorf("%w: item %d is %s by a claim", model.ErrConflict, itemID, item.Status)
		}
		return fmt.Errorf("%w: item %d is already %s", model.ErrInvalidTransition, itemID, item.Status)
	})
}

func (m *ItemManager) changeStatus(ctx context.Context, op string, itemID, actorID int64, mv itemMove, check func(*model.Item) error) (_ *model.Item, err error) {
	ctx, sp := m.inst.start(ctx, op, attribute.Int64("item.id", itemID), attribute.Int64("actor.id", actorID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	now := m.clock.Now()
	var (
		item   *model.Item
		before model.ItemStatus
		denied []model.Claim
	)
	err = store.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		var err error
		item, err = store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item", itemID)
		}
		if err := check(item); err != nil {
			return err
		}

		before = item.Status
		if err := m.apply(ctx, tx, item, actorID, mv, now); err != nil {
			return err
		}
		if mv.to == model.ItemStatusArchived {
			denied, err = denyOpenClaims(ctx, tx, itemID, 0, actorID, model.ReasonItemArchived, now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	m.inst.committed(ctx, mv.action)
	slog.Info("item status changed", "item", itemID, "actor", actorID, "before", before, "after", mv.to)

	var notes []model.Notification
	for i := range denied {
		notes = append(notes, claimNotification(&denied[i], model.NotifyClaimDenied, "Claim denied",
			fmt.Sprintf("Your claim on %s was closed: %s.", item.ReferenceNumber, model.ReasonItemArchived), now))
	}
	deliver(ctx, m.notifier, notes)
	return item, nil
}

// GetItem returns an item without its timeline.
func (m *ItemManager) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, m.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, notFound("item", itemID)
	}
	return item, nil
}

// GetFullDetails returns the unredacted item with its timeline. Callers are
// responsible for restricting this to admins.
func (m *ItemManager) GetFullDetails(ctx context.Context, itemID int64) (*model.Item, error) {
	item, err := m.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	item.Timeline, err = store.ListTimeline(ctx, m.db, itemID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListPendingItems returns reports awaiting verification, newest first.
func (m *ItemManager) ListPendingItems(ctx context.Context, limit, offset int) ([]model.Item, error) {
	return store.ListItems(ctx, m.db, store.ItemFilter{
		VerificationStatus: model.VerificationPending,
		Limit:              limit,
		Offset:             offset,
	})
}

// ListPublicItems returns approved found items open for claims.
func (m *ItemManager) ListPublicItems(ctx context.Context, limit, offset int) ([]model.Item, error) {
	return store.ListItems(ctx, m.db, store.ItemFilter{
		Status:             model.ItemStatusFound,
		VerificationStatus: model.VerificationApproved,
		Limit:              limit,
		Offset:             offset,
	})
}

// ListReportedBy returns the reports submitted by reporterID.
func (m *ItemManager) ListReportedBy(ctx context.Context, reporterID int64, limit, offset int) ([]model.Item, error) {
	return store.ListItems(ctx, m.db, store.ItemFilter{ReporterID: reporterID, Limit: limit, Offset: offset})
}
