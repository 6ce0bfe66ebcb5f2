package lifecycle

import (
	"context"
	"database/sql"
	"log/slog"
	"maps"
	"slices"

	"github.com/erazemk/najdeno/internal/clock"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// SettingsService reads and updates the global settings record.
type SettingsService struct {
	db    *sql.DB
	clock clock.Clock
	inst  instruments
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(db *sql.DB, clk clock.Clock) *SettingsService {
	return &SettingsService{db: db, clock: clk, inst: newInstruments("lifecycle/settings")}
}

// Init stores defaults for any setting that has never been set.
func (s *SettingsService) Init(ctx context.Context) error {
	return store.EnsureDefaultSettings(ctx, s.db)
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	return store.LoadSettings(ctx, s.db)
}

// Update validates every value and commits all of them, or none. Each
// changed key gets its own audit entry.
func (s *SettingsService) Update(ctx context.Context, actorID int64, values map[string]string) (_ model.Settings, err error) {
	ctx, sp := s.inst.start(ctx, "settings.update")
	defer func() { s.inst.finish(ctx, sp, err) }()

	now := s.clock.Now()
	var (
		next    model.Settings
		changed []string
	)
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := store.LoadSettings(ctx, tx)
		if err != nil {
			return err
		}
		next, err = current.Apply(values)
		if err != nil {
			return err
		}
		if err := store.SaveSettings(ctx, tx, next); err != nil {
			return err
		}

		before, after := current.Values(), next.Values()
		for _, key := range slices.Sorted(maps.Keys(after)) {
			if before[key] == after[key] {
				continue
			}
			err := audit(ctx, tx, model.AuditEntry{
				ActorID:      actorID,
				Action:       model.AuditUpdateSettings,
				TargetType:   model.TargetSettings,
				BeforeStatus: before[key],
				AfterStatus:  after[key],
				Reason:       key,
				CreatedAt:    now,
			})
			if err != nil {
				return err
			}
			changed = append(changed, key)
		}
		return nil
	})
	if err != nil {
		return model.Settings{}, err
	}

	if len(changed) > 0 {
		s.inst.committed(ctx, model.AuditUpdateSettings)
	}
	slog.Info("settings updated", "actor", actorID, "changed", changed)
	return next, nil
}
