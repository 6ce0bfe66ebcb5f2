package model

// Stats are the counts shown on the admin dashboard.
type Stats struct {
	PendingItems   int `json:"pending_items"`
	ApprovedItems  int `json:"approved_items"`
	PendingClaims  int `json:"pending_claims"`
	ApprovedClaims int `json:"approved_claims"`
	ItemsOnHold    int `json:"items_on_hold"`
	ItemsClaimed   int `json:"items_claimed"`
	ItemsReturned  int `json:"items_returned"`
	Users          int `json:"users"`
}

// UserActivity summarizes what one user has done.
type UserActivity struct {
	UserID        int64 `json:"user_id"`
	ItemsReported int   `json:"items_reported"`
	ClaimsMade    int   `json:"claims_made"`
	ItemsWon      int   `json:"items_won"`
}
