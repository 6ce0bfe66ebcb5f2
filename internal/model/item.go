package model

import (
	"strings"
	"time"
)

// Item is a lost or found object report tracked through verification and claiming.
type Item struct {
	ID                 int64              `json:"id"`
	ReferenceNumber    string             `json:"reference_number"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Category           string             `json:"category"`
	Color              string             `json:"color"`
	Condition          string             `json:"condition"`
	Location           string             `json:"location"`
	Date               string             `json:"date"`
	Status             ItemStatus         `json:"status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	ReporterID         int64              `json:"reporter_id"`
	AdminNotes         string             `json:"admin_notes,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`

	// Populated only by full-detail reads.
	Timeline []TimelineEvent `json:"timeline,omitempty"`
}

// ItemStatus is the physical/claim state of an item.
type ItemStatus string

// Item statuses.
const (
	ItemStatusLost     ItemStatus = "lost"
	ItemStatusFound    ItemStatus = "found"
	ItemStatusOnHold   ItemStatus = "on_hold"
	ItemStatusClaimed  ItemStatus = "claimed"
	ItemStatusReturned ItemStatus = "returned"
	ItemStatusArchived ItemStatus = "archived"
)

// Locked reports whether a claim holds or has won the item.
func (s ItemStatus) Locked() bool {
	return s == ItemStatusOnHold || s == ItemStatusClaimed
}

// VerificationStatus is the admin review state of an item report.
type VerificationStatus string

// Verification statuses.
const (
	VerificationPending   VerificationStatus = "pending"
	VerificationApproved  VerificationStatus = "approved"
	VerificationRejected  VerificationStatus = "rejected"
	VerificationNeedsInfo VerificationStatus = "needs_info"
)

// ItemKind selects the initial status of a submitted report.
type ItemKind string

// Item kinds.
const (
	ItemKindLost  ItemKind = "lost"
	ItemKindFound ItemKind = "found"
)

// ItemDetails holds the human-entered descriptive fields of a report.
type ItemDetails struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Condition   string `json:"condition"`
	Location    string `json:"location"`
	Date        string `json:"date"`
}

// Validate checks that the required descriptive fields are present.
func (d ItemDetails) Validate() error {
	switch {
	case isBlank(d.Title):
		return validationf("title required")
	case isBlank(d.Description):
		return validationf("description required")
	case isBlank(d.Category):
		return validationf("category required")
	case isBlank(d.Location):
		return validationf("location required")
	case isBlank(d.Date):
		return validationf("date required")
	}
	return nil
}

// Trimmed returns d with surrounding whitespace removed from every field.
func (d ItemDetails) Trimmed() ItemDetails {
	return ItemDetails{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Category:    strings.TrimSpace(d.Category),
		Color:       strings.TrimSpace(d.Color),
		Condition:   strings.TrimSpace(d.Condition),
		Location:    strings.TrimSpace(d.Location),
		Date:        strings.TrimSpace(d.Date),
	}
}

// InitialStatus returns the item status a new report of this kind starts in.
func (k ItemKind) InitialStatus() (ItemStatus, error) {
	switch k {
	case ItemKindLost:
		return ItemStatusLost, nil
	case ItemKindFound:
		return ItemStatusFound, nil
	}
	return "", validationf("kind must be %q or %q", ItemKindLost, ItemKindFound)
}

// PubliclyVisible reports whether the item may appear in public listings.
func (i *Item) PubliclyVisible() bool {
	return i.VerificationStatus == VerificationApproved && i.Status == ItemStatusFound
}

// TimelineEvent is one append-only entry in an item's history.
type TimelineEvent struct {
	ID          int64     `json:"id"`
	ItemID      int64     `json:"item_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	ActorID     int64     `json:"actor_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Timeline actions.
const (
	TimelineReported          = "reported"
	TimelineVerified          = "verified"
	TimelineRejected          = "rejected"
	TimelineMoreInfoRequested = "more_info_requested"
	TimelineResubmitted       = "resubmitted"
	TimelineMarkedFound       = "marked_found"
	TimelineClaimSubmitted    = "claim_submitted"
	TimelineClaimed           = "claimed"
	TimelineClaimDenied       = "claim_denied"
	TimelineOnHold            = "on_hold"
	TimelineHoldExpired       = "hold_expired"
	TimelineReturned          = "returned"
	TimelineArchived          = "archived"
)
