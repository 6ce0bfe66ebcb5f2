package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/najdeno/internal/model"
)

const claimColumns = `c.id, c.item_id, c.claimant_id, c.verification_details, c.claimed_color,
	c.claimed_condition, c.claimed_location, c.claimed_date, c.status, c.reason,
	c.hold_expires_at, c.created_at, c.updated_at, c.resolved_at,
	i.title AS item_title, i.reference_number AS item_reference_number`

const claimFrom = ` FROM claims c JOIN items i ON i.id = c.item_id`

func scanClaim(row rowScanner) (*model.Claim, error) {
	c := &model.Claim{}
	err := row.Scan(&c.ID, &c.ItemID, &c.ClaimantID, &c.VerificationDetails, &c.ClaimedColor,
		&c.ClaimedCondition, &c.ClaimedLocation, &c.ClaimedDate, &c.Status, &c.Reason,
		&c.HoldExpiresAt, &c.CreatedAt, &c.UpdatedAt, &c.ResolvedAt,
		&c.ItemTitle, &c.ItemReferenceNumber)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateClaim inserts a new pending claim and returns its id.
func CreateClaim(ctx context.Context, q Querier, itemID, claimantID int64, f model.VerificationFields, now time.Time) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO claims (item_id, claimant_id, verification_details, claimed_color, claimed_condition,
		                     claimed_location, claimed_date, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		itemID, claimantID, f.VerificationDetails, f.Color, f.Condition, f.Location, f.Date,
		model.ClaimPending, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("creating claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting claim id: %w", err)
	}
	return id, nil
}

// GetClaim returns a claim by ID, or nil if it does not exist.
func GetClaim(ctx context.Context, q Querier, id int64) (*model.Claim, error) {
	c, err := scanClaim(q.QueryRowContext(ctx,
		`SELECT `+claimColumns+claimFrom+` WHERE c.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	return c, nil
}

// ClaimFilter narrows a claim listing. Zero values match everything.
type ClaimFilter struct {
	ItemID     int64
	ClaimantID int64
	Statuses   []model.ClaimStatus
	Limit      int
	Offset     int
}

// ListClaims returns claims matching the filter, newest first.
func ListClaims(ctx context.Context, q Querier, f ClaimFilter) ([]model.Claim, error) {
	query := `SELECT ` + claimColumns + claimFrom + ` WHERE 1=1`
	var args []any

	if f.ItemID > 0 {
		query += ` AND c.item_id = ?`
		args = append(args, f.ItemID)
	}
	if f.ClaimantID > 0 {
		query += ` AND c.claimant_id = ?`
		args = append(args, f.ClaimantID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND c.status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}

	query += ` ORDER BY c.created_at DESC, c.id DESC`
	query, args = paginate(query, args, f.Limit, f.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// ClaimUpdate describes a claim status transition.
type ClaimUpdate struct {
	From          model.ClaimStatus
	To            model.ClaimStatus
	Reason        string
	HoldExpiresAt *time.Time
	Now           time.Time
}

// SetClaimStatus applies u to a claim, provided the claim is still in u.From.
// Returns model.ErrConflict when the claim has moved on or when the new status
// would give the item a second locking claim.
func SetClaimStatus(ctx context.Context, q Querier, id int64, u ClaimUpdate) error {
	var resolvedAt *time.Time
	if u.To.Terminal() {
		resolvedAt = &u.Now
	}

	result, err := q.ExecContext(ctx,
		`UPDATE claims SET status = ?, reason = ?, hold_expires_at = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		u.To, u.Reason, u.HoldExpiresAt, resolvedAt, u.Now, id, u.From,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: item already has an approved or held claim", model.ErrConflict)
		}
		return fmt.Errorf("updating claim status: %w", err)
	}
	return expectOne(result, fmt.Errorf("%w: claim %d is no longer %s", model.ErrConflict, id, u.From))
}

// ResubmitClaimFields replaces a claim's verification fields and returns it
// to pending, provided it is still awaiting more information.
func ResubmitClaimFields(ctx context.Context, q Querier, id int64, f model.VerificationFields, now time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE claims SET verification_details = ?, claimed_color = ?, claimed_condition = ?,
		                   claimed_location = ?, claimed_date = ?, status = ?, reason = '', updated_at = ?
		 WHERE id = ? AND status = ?`,
		f.VerificationDetails, f.Color, f.Condition, f.Location, f.Date,
		model.ClaimPending, now, id, model.ClaimNeedsInfo,
	)
	if err != nil {
		return fmt.Errorf("resubmitting claim: %w", err)
	}
	return expectOne(result, fmt.Errorf("%w: claim %d is not awaiting more information", model.ErrConflict, id))
}

// ListExpiredHolds returns claims on hold whose hold expired at or before now.
func ListExpiredHolds(ctx context.Context, q Querier, now time.Time) ([]model.Claim, error) {
	held, err := ListClaims(ctx, q, ClaimFilter{Statuses: []model.ClaimStatus{model.ClaimOnHold}})
	if err != nil {
		return nil, err
	}

	var expired []model.Claim
	for _, c := range held {
		if HoldExpired(&c, now) {
			expired = append(expired, c)
		}
	}
	return expired, nil
}

// HoldExpired reports whether c is on hold with an expiry at or before now.
func HoldExpired(c *model.Claim, now time.Time) bool {
	return c.Status == model.ClaimOnHold && c.HoldExpiresAt != nil && !c.HoldExpiresAt.After(now)
}
