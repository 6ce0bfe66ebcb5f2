// Package lifecycle implements the item and claim state machines.
//
// Every operation runs in a single IMMEDIATE transaction. Status changes are
// compare-and-set updates keyed on the status read at the start of the
// transaction, so a lost race surfaces as model.ErrConflict and is never
// retried here. Each transition appends one audit entry in the same
// transaction. Notifications are delivered after commit and never fail the
// operation.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
	"github.com/erazemk/najdeno/internal/telemetry"
)

// Notifier delivers a message to a user about one of their items or claims.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// StoreNotifier queues notifications in the database for the user to read.
type StoreNotifier struct {
	db *sql.DB
}

// NewStoreNotifier returns a notifier backed by the notifications table.
func NewStoreNotifier(db *sql.DB) *StoreNotifier {
	return &StoreNotifier{db: db}
}

func (s *StoreNotifier) Notify(ctx context.Context, n model.Notification) error {
	_, err := store.CreateNotification(ctx, s.db, n)
	return err
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notification) error { return nil }

func deliver(ctx context.Context, notifier Notifier, notifications []model.Notification) {
	for _, n := range notifications {
		if err := notifier.Notify(ctx, n); err != nil {
			slog.Warn("notification not delivered", "user", n.UserID, "type", n.Type, "error", err)
		}
	}
}

type instruments struct {
	tracer      trace.Tracer
	transitions metric.Int64Counter
	conflicts   metric.Int64Counter
}

func newInstruments(name string) instruments {
	meter := telemetry.Meter(name)

	transitions, err := meter.Int64Counter("najdeno.transitions",
		metric.WithDescription("Item and claim transitions committed, by audit action."))
	if err != nil {
		transitions = metricnoop.Int64Counter{}
	}
	conflicts, err := meter.Int64Counter("najdeno.conflicts",
		metric.WithDescription("Operations rejected because item or claim state moved on."))
	if err != nil {
		conflicts = metricnoop.Int64Counter{}
	}

	return instruments{
		tracer:      telemetry.Tracer(name),
		transitions: transitions,
		conflicts:   conflicts,
	}
}

// span is a traced operation.
type span struct {
	trace.Span
	name string
}

func (in instruments) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, span) {
	ctx, s := in.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span{Span: s, name: name}
}

func (in instruments) finish(ctx context.Context, s span, err error) {
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
		if errors.Is(err, model.ErrConflict) {
			in.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", s.name)))
		}
	}
	s.End()
}

func (in instruments) committed(ctx context.Context, actions ...string) {
	for _, a := range actions {
		in.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", a)))
	}
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", model.ErrNotFound, kind, id)
}

func audit(ctx context.Context, tx *sql.Tx, e model.AuditEntry) error {
	return store.AppendAudit(ctx, tx, e)
}

// itemMove describes an item status change and how it is recorded.
type itemMove struct {
	to     model.ItemStatus
	action string
	event  string
	note   string
	reason string
}

// apply changes item's status inside tx, appends a timeline event and an
// audit entry, and updates item in place.
func (m *ItemManager) apply(ctx context.Context, tx *sql.Tx, item *model.Item, actorID int64, mv itemMove, now time.Time) error {
	from := item.Status
	if err := store.SetItemStatus(ctx, tx, item.ID, []model.ItemStatus{from}, mv.to, now); err != nil {
		return err
	}
	if err := store.AddTimelineEvent(ctx, tx, item.ID, mv.event, mv.note, actorID, now); err != nil {
		return err
	}
	err := audit(ctx, tx, model.AuditEntry{
		ActorID:      actorID,
		Action:       mv.action,
		TargetType:   model.TargetItem,
		TargetID:     item.ID,
		BeforeStatus: string(from),
		AfterStatus:  string(mv.to),
		Reason:       mv.reason,
		CreatedAt:    now,
	})
	if err != nil {
		return err
	}
	item.Status = mv.to
	item.UpdatedAt = now
	return nil
}

// moveClaim changes claim's status inside tx and appends an audit entry.
func moveClaim(ctx context.Context, tx *sql.Tx, claim *model.Claim, actorID int64, action string, u store.ClaimUpdate) error {
	u.From = claim.Status
	if err := store.SetClaimStatus(ctx, tx, claim.ID, u); err != nil {
		return err
	}
	err := audit(ctx, tx, model.AuditEntry{
		ActorID:      actorID,
		Action:       action,
		TargetType:   model.TargetClaim,
		TargetID:     claim.ID,
		BeforeStatus: string(u.From),
		AfterStatus:  string(u.To),
		Reason:       u.Reason,
		CreatedAt:    u.Now,
	})
	if err != nil {
		return err
	}
	claim.Status = u.To
	claim.Reason = u.Reason
	claim.HoldExpiresAt = u.HoldExpiresAt
	claim.UpdatedAt = u.Now
	return nil
}

// denyOpenClaims denies every pending or needs-info claim on itemID other
// than exceptID and returns the denied claims.
func denyOpenClaims(ctx context.Context, tx *sql.Tx, itemID, exceptID, actorID int64, reason string, now time.Time) ([]model.Claim, error) {
	open, err := store.ListClaims(ctx, tx, store.ClaimFilter{
		ItemID:   itemID,
		Statuses: []model.ClaimStatus{model.ClaimPending, model.ClaimNeedsInfo},
	})
	if err != nil {
		return nil, err
	}

	var denied []model.Claim
	for _, c := range open {
		if c.ID == exceptID {
			continue
		}
		err := moveClaim(ctx, tx, &c, actorID, model.AuditAutoDenyClaim, store.ClaimUpdate{
			To:     model.ClaimDenied,
			Reason: reason,
			Now:    now,
		})
		if err != nil {
			return nil, err
		}
		denied = append(denied, c)
	}
	return denied, nil
}

func claimNotification(c *model.Claim, kind, title, message string, now time.Time) model.Notification {
	return model.Notification{
		UserID:    c.ClaimantID,
		Type:      kind,
		Title:     title,
		Message:   message,
		ItemID:    c.ItemID,
		CreatedAt: now,
	}
}
