package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/najdeno/internal/clock"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// ClaimManager owns claim status and drives the item status changes that
// claim outcomes cause.
type ClaimManager struct {
	db       *sql.DB
	clock    clock.Clock
	items    *ItemManager
	notifier Notifier
	inst     instruments
}

// NewClaimManager creates a ClaimManager. A nil notifier discards notifications.
func NewClaimManager(db *sql.DB, clk clock.Clock, items *ItemManager, notifier Notifier) *ClaimManager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ClaimManager{db: db, clock: clk, items: items, notifier: notifier, inst: newInstruments("lifecycle/claims")}
}

// claimable returns model.ErrConflict unless item is open for new claims.
func claimable(item *model.Item) error {
	if item.VerificationStatus != model.VerificationApproved {
		return fmt.Errorf("%w: item %d is not verified", model.ErrConflict, item.ID)
	}
	if item.Status != model.ItemStatusFound {
		return fmt.Errorf("%w: item %d is %s, not open for claims", model.ErrConflict, item.ID, item.Status)
	}
	return nil
}

// SubmitClaim records a claimant's ownership claim on a found item.
func (m *ClaimManager) SubmitClaim(ctx context.Context, itemID, claimantID int64, fields model.VerificationFields) (_ *model.Claim, err error) {
	ctx, sp := m.inst.start(ctx, "claim.submit", attribute.Int64("item.id", itemID), attribute.Int64("claimant.id", claimantID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	fields = fields.Trimmed()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var (
		claim *model.Claim
		item  *model.Item
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
		if err := claimable(item); err != nil {
			return err
		}

		open, err := store.ListClaims(ctx, tx, store.ClaimFilter{
			ItemID:     itemID,
			ClaimantID: claimantID,
			Statuses:   []model.ClaimStatus{model.ClaimPending, model.ClaimNeedsInfo},
		})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return fmt.Errorf("%w: claim %d on item %d is still open", model.ErrConflict, open[0].ID, itemID)
		}

		id, err := store.CreateClaim(ctx, tx, itemID, claimantID, fields, now)
		if err != nil {
			return err
		}
		if err := store.AddTimelineEvent(ctx, tx, itemID, model.TimelineClaimSubmitted, fmt.Sprintf("Claim #%d submitted", id), claimantID, now); err != nil {
			return err
		}
		err = audit(ctx, tx, model.AuditEntry{
			ActorID:     claimantID,
			Action:      model.AuditSubmitClaim,
			TargetType:  model.TargetClaim,
			TargetID:    id,
			AfterStatus: string(model.ClaimPending),
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		claim, err = store.GetClaim(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.inst.committed(ctx, model.AuditSubmitClaim)
	slog.Info("claim submitted", "claim", claim.ID, "item", itemID, "claimant", claimantID)
	deliver(ctx, m.notifier, []model.Notification{{
		UserID:    item.ReporterID,
		Type:      model.NotifyClaimSubmitted,
		Title:     "New claim",
		Message:   fmt.Sprintf("Someone claimed %s (%s).", item.ReferenceNumber, item.Title),
		ItemID:    itemID,
		CreatedAt: now,
	}})
	return claim, nil
}

// VerifyClaim applies an admin decision to a claim.
func (m *ClaimManager) VerifyClaim(ctx context.Context, claimID, actorID int64, action model.ClaimAction) (_ *model.Claim, err error) {
	ctx, sp := m.inst.start(ctx, "claim.verify", attribute.Int64("claim.id", claimID), attribute.Int64("actor.id", actorID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	if action == nil {
		return nil, fmt.Errorf("%w: action required", model.ErrValidation)
	}
	if err := action.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var (
		claim   *model.Claim
		before  model.ClaimStatus
		actions []string
		notes   []model.Notification
	)
	err = store.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		var err error
		claim, err = store.GetClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return notFound("claim", claimID)
		}
		item, err := store.GetItem(ctx, tx, claim.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item", claim.ItemID)
		}
		before = claim.Status

		t := &claimTransition{items: m.items, tx: tx, claim: claim, item: item, actorID: actorID, now: now}
		switch a := action.(type) {
		case model.ApproveClaim:
			err = t.approve(ctx, strings.TrimSpace(a.Notes))
		case model.DenyClaim:
			err = t.deny(ctx, strings.TrimSpace(a.Reason))
		case model.RequestClaimInfo:
			err = t.requestInfo(ctx, strings.TrimSpace(a.Message))
		case model.HoldClaim:
			err = t.hold(ctx, a.Days)
		default:
			err = fmt.Errorf("%w: unsupported claim action %T", model.ErrValidation, action)
		}
		if err != nil {
			return err
		}
		actions, notes = t.actions, t.notes

		claim, err = store.GetClaim(ctx, tx, claimID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.inst.committed(ctx, actions...)
	slog.Info("claim verified", "claim", claimID, "item", claim.ItemID, "actor", actorID, "before", before, "after", claim.Status)
	deliver(ctx, m.notifier, notes)
	return claim, nil
}

// claimTransition carries the state of one VerifyClaim call inside its
// transaction and collects what to record and announce after commit.
type claimTransition struct {
	items   *ItemManager
	tx      *sql.Tx
	claim   *model.Claim
	item    *model.Item
	actorID int64
	now     time.Time

	actions []string
	notes   []model.Notification
}

func (t *claimTransition) moveClaim(ctx context.Context, action string, u store.ClaimUpdate) error {
	u.Now = t.now
	if err := moveClaim(ctx, t.tx, t.claim, t.actorID, action, u); err != nil {
		return err
	}
	t.actions = append(t.actions, action)
	return nil
}

func (t *claimTransition) moveItem(ctx context.Context, mv itemMove) error {
	if err := t.items.apply(ctx, t.tx, t.item, t.actorID, mv, t.now); err != nil {
		return err
	}
	t.actions = append(t.actions, mv.action)
	return nil
}

func (t *claimTransition) notify(kind, title, message string) {
	t.notes = append(t.notes, claimNotification(t.claim, kind, title, message, t.now))
}

// lockedByOther reports whether another claim holds or has won the item.
func (t *claimTransition) lockedByOther() error {
	switch {
	case t.item.Status == model.ItemStatusClaimed:
		return fmt.Errorf("%w: item %d is already claimed", model.ErrConflict, t.item.ID)
	case t.item.Status == model.ItemStatusOnHold && t.claim.Status != model.ClaimOnHold:
		return fmt.Errorf("%w: item %d is on hold for another claim", model.ErrConflict, t.item.ID)
	}
	return nil
}

func (t *claimTransition) approve(ctx context.Context, notes string) error {
	if err := t.lockedByOther(); err != nil {
		return err
	}
	if t.claim.Status != model.ClaimPending && t.claim.Status != model.ClaimOnHold {
		return invalidClaimTransition(t.claim, model.ClaimApproved)
	}
	if t.claim.Status == model.ClaimPending {
		if err := claimable(t.item); err != nil {
			return err
		}
	}

	if err := t.moveClaim(ctx, model.AuditApproveClaim, store.ClaimUpdate{To: model.ClaimApproved, Reason: notes}); err != nil {
		return err
	}
	err := t.moveItem(ctx, itemMove{
		to:     model.ItemStatusClaimed,
		action: model.AuditClaimItem,
		event:  model.TimelineClaimed,
		note:   fmt.Sprintf("Claim #%d approved", t.claim.ID),
	})
	if err != nil {
		return err
	}

	denied, err := denyOpenClaims(ctx, t.tx, t.item.ID, t.claim.ID, t.actorID, model.ReasonItemAlreadyClaimed, t.now)
	if err != nil {
		return err
	}

	t.notify(model.NotifyClaimApproved, "Claim approved",
		fmt.Sprintf("Your claim on %s was approved. Contact the lost and found office to collect it.", t.item.ReferenceNumber))
	for i := range denied {
		t.actions = append(t.actions, model.AuditAutoDenyClaim)
		t.notes = append(t.notes, claimNotification(&denied[i], model.NotifyClaimDenied, "Claim denied",
			fmt.Sprintf("Your claim on %s was denied: %s.", t.item.ReferenceNumber, model.ReasonItemAlreadyClaimed), t.now))
	}
	return nil
}

func (t *claimTransition) deny(ctx context.Context, reason string) error {
	wasHeld := t.claim.Status == model.ClaimOnHold
	if t.claim.Status != model.ClaimPending && !wasHeld {
		return invalidClaimTransition(t.claim, model.ClaimDenied)
	}

	if err := t.moveClaim(ctx, model.AuditDenyClaim, store.ClaimUpdate{To: model.ClaimDenied, Reason: reason}); err != nil {
		return err
	}

	note := fmt.Sprintf("Claim #%d denied", t.claim.ID)
	if wasHeld {
		// The hold reserved the item for this claim; release it.
		err := t.moveItem(ctx, itemMove{
			to:     model.ItemStatusFound,
			action: model.AuditReleaseItem,
			event:  model.TimelineClaimDenied,
			note:   note,
			reason: reason,
		})
		if err != nil {
			return err
		}
	} else if err := store.AddTimelineEvent(ctx, t.tx, t.item.ID, model.TimelineClaimDenied, note, t.actorID, t.now); err != nil {
		return err
	}

	t.notify(model.NotifyClaimDenied, "Claim denied",
		fmt.Sprintf("Your claim on %s was denied: %s", t.item.ReferenceNumber, reason))
	return nil
}

func (t *claimTransition) requestInfo(ctx context.Context, message string) error {
	if t.claim.Status != model.ClaimPending {
		return invalidClaimTransition(t.claim, model.ClaimNeedsInfo)
	}
	if err := t.moveClaim(ctx, model.AuditRequestClaimInfo, store.ClaimUpdate{To: model.ClaimNeedsInfo, Reason: message}); err != nil {
		return err
	}
	t.notify(model.NotifyClaimNeedsInfo, "More information needed",
		fmt.Sprintf("Your claim on %s needs more information: %s", t.item.ReferenceNumber, message))
	return nil
}

func (t *claimTransition) hold(ctx context.Context, days int) error {
	if err := t.lockedByOther(); err != nil {
		return err
	}
	if t.claim.Status != model.ClaimPending {
		return invalidClaimTransition(t.claim, model.ClaimOnHold)
	}
	if err := claimable(t.item); err != nil {
		return err
	}

	expires := t.now.AddDate(0, 0, days)
	reason := fmt.Sprintf("held for %d days", days)
	err := t.moveClaim(ctx, model.AuditHoldClaim, store.ClaimUpdate{
		To:            model.ClaimOnHold,
		Reason:        reason,
		HoldExpiresAt: &expires,
	})
	if err != nil {
		return err
	}
	err = t.moveItem(ctx, itemMove{
		to:     model.ItemStatusOnHold,
		action: model.AuditHoldItem,
		event:  model.TimelineOnHold,
		note:   fmt.Sprintf("On hold for claim #%d until %s", t.claim.ID, expires.Format(time.DateOnly)),
		reason: reason,
	})
	if err != nil {
		return err
	}

	t.notify(model.NotifyClaimOnHold, "Item on hold",
		fmt.Sprintf("%s is on hold for you until %s.", t.item.ReferenceNumber, expires.Format(time.DateOnly)))
	return nil
}

func invalidClaimTransition(c *model.Claim, to model.ClaimStatus) error {
	return fmt.Errorf("%w: claim %d cannot move from %s to %s", model.ErrInvalidTransition, c.ID, c.Status, to)
}

// ResubmitClaim replaces the verification fields of a claim an admin asked
// more information about and returns it to pending.
func (m *ClaimManager) ResubmitClaim(ctx context.Context, claimID, claimantID int64, fields model.VerificationFields) (_ *model.Claim, err error) {
	ctx, sp := m.inst.start(ctx, "claim.resubmit", attribute.Int64("claim.id", claimID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	fields = fields.Trimmed()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	var claim *model.Claim
	err = store.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		var err error
		claim, err = store.GetClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return notFound("claim", claimID)
		}
		if claim.ClaimantID != claimantID {
			return fmt.Errorf("%w: only the claimant may resubmit claim %d", model.ErrForbidden, claimID)
		}
		if claim.Status != model.ClaimNeedsInfo {
			return invalidClaimTransition(claim, model.ClaimPending)
		}
		item, err := store.GetItem(ctx, tx, claim.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item", claim.ItemID)
		}
		if err := claimable(item); err != nil {
			return err
		}

		if err := store.ResubmitClaimFields(ctx, tx, claimID, fields, now); err != nil {
			return err
		}
		err = audit(ctx, tx, model.AuditEntry{
			ActorID:      claimantID,
			Action:       model.AuditResubmitClaim,
			TargetType:   model.TargetClaim,
			TargetID:     claimID,
			BeforeStatus: string(model.ClaimNeedsInfo),
			AfterStatus:  string(model.ClaimPending),
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}

		claim, err = store.GetClaim(ctx, tx, claimID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.inst.committed(ctx, model.AuditResubmitClaim)
	slog.Info("claim resubmitted", "claim", claimID, "claimant", claimantID)
	return claim, nil
}

// ExpireHold resolves claimID's hold if it has lapsed, applying the
// configured expiry policy to the item. It reports whether anything changed;
// a hold that is no longer active or not yet due is left alone.
func (m *ClaimManager) ExpireHold(ctx context.Context, claimID int64) (expired bool, err error) {
	ctx, sp := m.inst.start(ctx, "claim.expire_hold", attribute.Int64("claim.id", claimID))
	defer func() { m.inst.finish(ctx, sp, err) }()

	now := m.clock.Now()
	var (
		claim   *model.Claim
		item    *model.Item
		policy  model.ExpiryPolicy
		actions []string
		denied  []model.Claim
	)
	err = store.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		settings, err := store.LoadSettings(ctx, tx)
		if err != nil {
			return err
		}
		policy = settings.HoldExpiryPolicy

		claim, err = store.GetClaim(ctx, tx, claimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return notFound("claim", claimID)
		}
		if !store.HoldExpired(claim, now) {
			return nil
		}
		item, err = store.GetItem(ctx, tx, claim.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return notFound("item", claim.ItemID)
		}

		err = moveClaim(ctx, tx, claim, model.SystemActor, model.AuditExpireHold, store.ClaimUpdate{
			To:     model.ClaimDenied,
			Reason: model.ReasonHoldExpired,
			Now:    now,
		})
		if err != nil {
			return err
		}

		mv := itemMove{
			to:     model.ItemStatusFound,
			action: model.AuditReleaseItem,
			event:  model.TimelineHoldExpired,
			note:   fmt.Sprintf("Hold for claim #%d expired", claimID),
			reason: model.ReasonHoldExpired,
		}
		if policy == model.ExpiryArchive {
			mv.to, mv.action = model.ItemStatusArchived, model.AuditArchiveItem
		}
		if err := m.items.apply(ctx, tx, item, model.SystemActor, mv, now); err != nil {
			return err
		}
		actions = []string{model.AuditExpireHold, mv.action}

		if policy == model.ExpiryArchive {
			denied, err = denyOpenClaims(ctx, tx, item.ID, claimID, model.SystemActor, model.ReasonItemArchived, now)
			if err != nil {
				return err
			}
		}
		expired = true
		return nil
	})
	if err != nil || !expired {
		return false, err
	}

	for range denied {
		actions = append(actions, model.AuditAutoDenyClaim)
	}
	m.inst.committed(ctx, actions...)
	slog.Info("hold expired", "claim", claimID, "item", item.ID, "policy", policy, "item_status", item.Status)

	notes := []model.Notification{claimNotification(claim, model.NotifyClaimHoldLapsed, "Hold expired",
		fmt.Sprintf("The hold on %s expired before the item was collected.", item.ReferenceNumber), now)}
	for i := range denied {
		notes = append(notes, claimNotification(&denied[i], model.NotifyClaimDenied, "Claim denied",
			fmt.Sprintf("Your claim on %s was closed: %s.", item.ReferenceNumber, model.ReasonItemArchived), now))
	}
	deliver(ctx, m.notifier, notes)
	return true, nil
}

// ListExpiredHolds returns claims whose hold has lapsed by now.
func (m *ClaimManager) ListExpiredHolds(ctx context.Context) ([]model.Claim, error) {
	return store.ListExpiredHolds(ctx, m.db, m.clock.Now())
}

// GetClaim returns a claim by id.
func (m *ClaimManager) GetClaim(ctx context.Context, claimID int64) (*model.Claim, error) {
	claim, err := store.GetClaim(ctx, m.db, claimID)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, notFound("claim", claimID)
	}
	return claim, nil
}

// ListPendingClaims returns claims awaiting a decision, newest first.
func (m *ClaimManager) ListPendingClaims(ctx context.Context, limit, offset int) ([]model.Claim, error) {
	return store.ListClaims(ctx, m.db, store.ClaimFilter{
		Statuses: []model.ClaimStatus{model.ClaimPending},
		Limit:    limit,
		Offset:   offset,
	})
}

// ListClaimsForClaimant returns every claim claimantID has made.
func (m *ClaimManager) ListClaimsForClaimant(ctx context.Context, claimantID int64, limit, offset int) ([]model.Claim, error) {
	return store.ListClaims(ctx, m.db, store.ClaimFilter{ClaimantID: claimantID, Limit: limit, Offset: offset})
}

// ListClaimsForItem returns every claim on itemID.
func (m *ClaimManager) ListClaimsForItem(ctx context.Context, itemID int64) ([]model.Claim, error) {
	return store.ListClaims(ctx, m.db, store.ClaimFilter{ItemID: itemID})
}
