package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MinVerificationDetails is the minimum length, in characters, of a claim's
// free-text verification details.
const MinVerificationDetails = 20

// Claim is a user's assertion that a found item belongs to them.
type Claim struct {
	ID                  int64       `json:"id"`
	ItemID              int64       `json:"item_id"`
	ClaimantID          int64       `json:"claimant_id"`
	VerificationDetails string      `json:"verification_details"`
	ClaimedColor        string      `json:"claimed_color"`
	ClaimedCondition    string      `json:"claimed_condition"`
	ClaimedLocation     string      `json:"claimed_location"`
	ClaimedDate         string      `json:"claimed_date"`
	Status              ClaimStatus `json:"status"`
	Reason              string      `json:"reason,omitempty"`
	HoldExpiresAt       *time.Time  `json:"hold_expires_at,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
	ResolvedAt          *time.Time  `json:"resolved_at,omitempty"`

	// Joined fields (not always populated).
	ItemTitle           string `json:"item_title,omitempty"`
	ItemReferenceNumber string `json:"item_reference_number,omitempty"`
}

// ClaimStatus is the adjudication state of a claim.
type ClaimStatus string

// Claim statuses.
const (
	ClaimPending   ClaimStatus = "pending"
	ClaimApproved  ClaimStatus = "approved"
	ClaimDenied    ClaimStatus = "denied"
	ClaimOnHold    ClaimStatus = "on_hold"
	ClaimNeedsInfo ClaimStatus = "needs_info"
)

// Locks reports whether a claim in this status reserves its item.
// At most one claim per item may be in a locking status.
func (s ClaimStatus) Locks() bool {
	return s == ClaimApproved || s == ClaimOnHold
}

// Terminal reports whether no further transition is possible.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimApproved || s == ClaimDenied
}

// System-generated denial reasons.
const (
	ReasonItemAlreadyClaimed = "item already claimed"
	ReasonHoldExpired        = "hold expired"
	ReasonItemArchived       = "item archived"
)

// VerificationFields are the attributes a claimant submits for manual
// comparison against the original report.
type VerificationFields struct {
	VerificationDetails string `json:"verification_details"`
	Color               string `json:"color"`
	Condition           string `json:"condition"`
	Location            string `json:"location"`
	Date                string `json:"date"`
}

// Trimmed returns f with surrounding whitespace removed from every field.
func (f VerificationFields) Trimmed() VerificationFields {
	return VerificationFields{
		VerificationDetails: strings.TrimSpace(f.VerificationDetails),
		Color:               strings.TrimSpace(f.Color),
		Condition:           strings.TrimSpace(f.Condition),
		Location:            strings.TrimSpace(f.Location),
		Date:                strings.TrimSpace(f.Date),
	}
}

// Validate applies the claim submission rules.
func (f VerificationFields) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(f.VerificationDetails)) < MinVerificationDetails {
		return validationf("verification details must be at least %d characters", MinVerificationDetails)
	}
	switch {
	case isBlank(f.Color):
		return validationf("color required")
	case isBlank(f.Condition):
		return validationf("condition required")
	case isBlank(f.Location):
		return validationf("location required")
	case isBlank(f.Date):
		return validationf("date required")
	}
	return nil
}
