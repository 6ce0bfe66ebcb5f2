// Package hold resolves claim holds whose reservation period has lapsed.
package hold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/telemetry"
)

// Expirer finds and resolves lapsed holds. ExpireHold must be a no-op for a
// claim that is no longer on hold or not yet due.
type Expirer interface {
	ListExpiredHolds(ctx context.Context) ([]model.Claim, error)
	ExpireHold(ctx context.Context, claimID int64) (bool, error)
}

// maxBackoffFactor caps the delay after repeated failed scans, as a multiple
// of the scan interval.
const maxBackoffFactor = 16

// Scheduler periodically expires lapsed holds.
type Scheduler struct {
	claims   Expirer
	interval time.Duration

	tracer   trace.Tracer
	expired  metric.Int64Counter
	failures metric.Int64Counter
}

// NewScheduler creates a scheduler that scans every interval.
func NewScheduler(claims Expirer, interval time.Duration) *Scheduler {
	meter := telemetry.Meter("hold")
	expired, err := meter.Int64Counter("najdeno.holds.expired",
		metric.WithDescription("Holds resolved by the scheduler."))
	if err != nil {
		expired = metricnoop.Int64Counter{}
	}
	failures, err := meter.Int64Counter("najdeno.holds.scan_failures",
		metric.WithDescription("Hold scans that ended with an error."))
	if err != nil {
		failures = metricnoop.Int64Counter{}
	}

	return &Scheduler{
		claims:   claims,
		interval: interval,
		tracer:   telemetry.Tracer("hold"),
		expired:  expired,
		failures: failures,
	}
}

// RunOnce resolves every hold that has lapsed and returns how many it
// resolved. Running it again straight away resolves nothing.
func (s *Scheduler) RunOnce(ctx context.Context) (n int, err error) {
	ctx, span := s.tracer.Start(ctx, "hold.scan")
	defer func() {
		span.SetAttributes(attribute.Int("holds.expired", n))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.failures.Add(ctx, 1)
		}
		span.End()
	}()

	due, err := s.claims.ListExpiredHolds(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing expired holds: %w", err)
	}

	var errs []error
	for _, c := range due {
		expired, err := s.claims.ExpireHold(ctx, c.ID)
		switch {
		case errors.Is(err, model.ErrConflict):
			// An admin resolved the claim first.
			slog.Info("hold resolved concurrently", "claim", c.ID, "error", err)
		case err != nil:
			errs = append(errs, fmt.Errorf("expiring hold on claim %d: %w", c.ID, err))
		case expired:
			n++
		}
	}
	if n > 0 {
		s.expired.Add(ctx, int64(n))
	}
	return n, errors.Join(errs...)
}

func (s *Scheduler) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.interval
	bo.MaxInterval = s.interval * maxBackoffFactor
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Run scans immediately and then every interval until ctx is cancelled.
// After a failed scan the next one waits on an exponential backoff instead.
func (s *Scheduler) Run(ctx context.Context) error {
	bo := s.newBackOff()
	timer := time.NewTimer(0)
	defer timer.Stop()

	slog.Info("hold scheduler started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("hold scheduler stopped")
			return nil
		case <-timer.C:
		}

		next := s.interval
		n, err := s.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			continue
		case err != nil:
			next = bo.NextBackOff()
			slog.Error("hold scan failed", "error", err, "retry_in", next)
		default:
			bo.Reset()
			if n > 0 {
				slog.Info("expired holds resolved", "count", n)
			}
		}
		timer.Reset(next)
	}
}
