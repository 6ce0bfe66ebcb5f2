package model

import "time"

// Notification is a message queued for a user about one of their items or claims.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ItemID    int64     `json:"item_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification types.
const (
	NotifyItemApproved    = "item_approved"
	NotifyItemRejected    = "item_rejected"
	NotifyItemNeedsInfo   = "item_needs_info"
	NotifyClaimSubmitted  = "claim_submitted"
	NotifyClaimApproved   = "claim_approved"
	NotifyClaimDenied     = "claim_denied"
	NotifyClaimNeedsInfo  = "claim_needs_info"
	NotifyClaimOnHold     = "claim_on_hold"
	NotifyClaimHoldLapsed = "claim_hold_expired"
)
