package model

import "time"

// AuditEntry is an immutable record of one state-changing action.
type AuditEntry struct {
	ID           int64      `json:"id"`
	ActorID      int64      `json:"actor_id"`
	Action       string     `json:"action"`
	TargetType   TargetType `json:"target_type"`
	TargetID     int64      `json:"target_id"`
	BeforeStatus string     `json:"before_status,omitempty"`
	AfterStatus  string     `json:"after_status,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TargetType names the kind of record an audit entry refers to.
type TargetType string

// Audit target types.
const (
	TargetItem     TargetType = "item"
	TargetClaim    TargetType = "claim"
	TargetSettings TargetType = "settings"
)

// SystemActor is the actor id recorded for scheduler-driven transitions.
const SystemActor int64 = 0

// Audit actions.
const (
	AuditSubmitItem       = "submit_item"
	AuditApproveItem      = "approve_item"
	AuditRejectItem       = "reject_item"
	AuditRequestItemInfo  = "request_item_info"
	AuditResubmitItem     = "resubmit_item"
	AuditMarkFound        = "mark_found"
	AuditMarkReturned     = "mark_returned"
	AuditArchiveItem      = "archive_item"
	AuditSubmitClaim      = "submit_claim"
	AuditApproveClaim     = "approve_claim"
	AuditDenyClaim        = "deny_claim"
	AuditAutoDenyClaim    = "auto_deny_claim"
	AuditRequestClaimInfo = "request_claim_info"
	AuditResubmitClaim    = "resubmit_claim"
	AuditHoldClaim        = "hold_claim"
	AuditExpireHold       = "expire_hold"
	AuditClaimItem        = "claim_item"
	AuditHoldItem         = "hold_item"
	AuditReleaseItem      = "release_item"
	AuditUpdateSettings   = "update_settings"
)

// AuditFilter narrows an audit log listing. Zero values match everything.
type AuditFilter struct {
	Action     string
	TargetType TargetType
	TargetID   int64
	Limit      int
	Offset     int
}
