package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

const itemColumns = `id, reference_number, title, description, category, color, condition,
	location, date, status, verification_status, reporter_id, admin_notes,
	created_at, updated_at, verified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(&item.ID, &item.ReferenceNumber, &item.Title, &item.Description, &item.Category,
		&item.Color, &item.Condition, &item.Location, &item.Date, &item.Status, &item.VerificationStatus,
		&item.ReporterID, &item.AdminNotes, &item.CreatedAt, &item.UpdatedAt, &item.VerifiedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CreateItem inserts a new item and returns its id.
func CreateItem(ctx context.Context, q Querier, item *model.Item) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (reference_number, title, description, category, color, condition,
		                    location, date, status, verification_status, reporter_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ReferenceNumber, item.Title, item.Description, item.Category, item.Color, item.Condition,
		item.Location, item.Date, item.Status, item.VerificationStatus, item.ReporterID, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: reference number %s already in use", model.ErrConflict, item.ReferenceNumber)
		}
		return 0, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting item id: %w", err)
	}
	return id, nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ItemFilter narrows an item listing. Zero values match everything.
type ItemFilter struct {
	Status             model.ItemStatus
	VerificationStatus model.VerificationStatus
	ReporterID         int64
	Limit              int
	Offset             int
}

// ListItems returns items matching the filter, newest first.
func ListItems(ctx context.Context, q Querier, f ItemFilter) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.VerificationStatus != "" {
		query += ` AND verification_status = ?`
		args = append(args, f.VerificationStatus)
	}
	if f.ReporterID > 0 {
		query += ` AND reporter_id = ?`
		args = append(args, f.ReporterID)
	}

	query += ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, f.Limit, f.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// SetItemStatus moves an item to status to, provided it is currently in one
// of the from statuses. Returns model.ErrConflict if it is not.
func SetItemStatus(ctx context.Context, q Querier, id int64, from []model.ItemStatus, to model.ItemStatus, now time.Time) error {
	args := []any{to, now, id}
	for _, s := range from {
		args = append(args, s)
	}
	result, err := q.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}
	return expectOne(result, fmt.Errorf("%w: item %d is no longer %s", model.ErrConflict, id, joinStatuses(from)))
}

// SetItemVerification moves an item's verification status from from to to.
// Returns model.ErrConflict if the item has left from in the meantime.
func SetItemVerification(ctx context.Context, q Querier, id int64, from, to model.VerificationStatus, notes string, now time.Time) error {
	var verifiedAt *time.Time
	if to == model.VerificationApproved || to == model.VerificationRejected {
		verifiedAt = &now
	}

	result, err := q.ExecContext(ctx,
		`UPDATE items SET verification_status = ?, admin_notes = ?, updated_at = ?, verified_at = COALESCE(?, verified_at)
		 WHERE id = ? AND verification_status = ?`,
		to, notes, now, verifiedAt, id, from,
	)
	if err != nil {
		return fmt.Errorf("updating item verification: %w", err)
	}
	return expectOne(result, fmt.Errorf("%w: item %d verification is no longer %s", model.ErrConflict, id, from))
}

// ResubmitItemDetails replaces an item's descriptive fields and returns its
// verification to pending, provided it is still awaiting more information.
func ResubmitItemDetails(ctx context.Context, q Querier, id int64, d model.ItemDetails, now time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET title = ?, description = ?, category = ?, color = ?, condition = ?,
		                  location = ?, date = ?, verification_status = ?, updated_at = ?
		 WHERE id = ? AND verification_status = ?`,
		d.Title, d.Description, d.Category, d.Color, d.Condition, d.Location, d.Date,
		model.VerificationPending, now, id, model.VerificationNeedsInfo,
	)
	if err != nil {
		return fmt.Errorf("resubmitting item: %w", err)
	}
	return expectOne(result, fmt.Errorf("%w: item %d is not awaiting more information", model.ErrConflict, id))
}

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func joinStatuses[S ~string](statuses []S) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, " or ")
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	query += ` LIMIT ? OFFSET ?`
	return query, append(args, limit, max(offset, 0))
}
