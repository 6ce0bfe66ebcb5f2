package store

import (
	"context"
	"fmt"

	"github.com/erazemk/najdeno/internal/model"
)

// GetStats counts items and claims by state for the admin dashboard.
func GetStats(ctx context.Context, q Querier) (model.Stats, error) {
	var s model.Stats
	err := q.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM items WHERE verification_status = ?),
		   (SELECT COUNT(*) FROM items WHERE verification_status = ?),
		   (SELECT COUNT(*) FROM claims WHERE status = ?),
		   (SELECT COUNT(*) FROM claims WHERE status = ?),
		   (SELECT COUNT(*) FROM items WHERE status = ?),
		   (SELECT COUNT(*) FROM items WHERE status = ?),
		   (SELECT COUNT(*) FROM items WHERE status = ?),
		   (SELECT COUNT(*) FROM users WHERE deleted_at IS NULL)`,
		model.VerificationPending, model.VerificationApproved,
		model.ClaimPending, model.ClaimApproved,
		model.ItemStatusOnHold, model.ItemStatusClaimed, model.ItemStatusReturned,
	).Scan(&s.PendingItems, &s.ApprovedItems, &s.PendingClaims, &s.ApprovedClaims,
		&s.ItemsOnHold, &s.ItemsClaimed, &s.ItemsReturned, &s.Users)
	if err != nil {
		return s, fmt.Errorf("counting stats: %w", err)
	}
	return s, nil
}

// GetUserActivity counts the items userID reported, the claims they made and
// the claims of theirs that were approved.
func GetUserActivity(ctx context.Context, q Querier, userID int64) (model.UserActivity, error) {
	a := model.UserActivity{UserID: userID}
	err := q.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM items WHERE reporter_id = ?),
		   (SELECT COUNT(*) FROM claims WHERE claimant_id = ?),
		   (SELECT COUNT(*) FROM claims WHERE claimant_id = ? AND status = ?)`,
		userID, userID, userID, model.ClaimApproved,
	).Scan(&a.ItemsReported, &a.ClaimsMade, &a.ItemsWon)
	if err != nil {
		return a, fmt.Errorf("counting user activity: %w", err)
	}
	return a, nil
}
