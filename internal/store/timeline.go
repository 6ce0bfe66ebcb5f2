package store

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

// AddTimelineEvent appends an event to an item's timeline.
func AddTimelineEvent(ctx context.Context, q Querier, itemID int64, action, description string, actorID int64, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_timeline (item_id, action, description, actor_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		itemID, action, description, actorID, at,
	)
	if err != nil {
		return fmt.Errorf("adding timeline event: %w", err)
	}
	return nil
}

// ListTimeline returns an item's timeline in the order it was written.
func ListTimeline(ctx context.Context, q Querier, itemID int64) ([]model.TimelineEvent, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, item_id, action, description, actor_id, created_at
		 FROM item_timeline WHERE item_id = ? ORDER BY id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing timeline: %w", err)
	}
	defer rows.Close()

	var events []model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Action, &e.Description, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning timeline event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
