package model

import "fmt"

// ItemAction is an admin decision on a pending item report. Each variant
// carries exactly the fields it needs.
type ItemAction interface {
	itemAction()
	// Validate checks the variant's own fields.
	Validate() error
}

// ApproveItem publishes a report.
type ApproveItem struct{ Notes string }

// RejectItem refuses a report.
type RejectItem struct{ Reason string }

// RequestItemInfo asks the reporter for more detail.
type RequestItemInfo struct{ Message string }

func (ApproveItem) itemAction()     {}
func (RejectItem) itemAction()      {}
func (RequestItemInfo) itemAction() {}

func (ApproveItem) Validate() error { return nil }

func (a RejectItem) Validate() error {
	if isBlank(a.Reason) {
		return validationf("reason required to reject an item")
	}
	return nil
}

func (a RequestItemInfo) Validate() error {
	if isBlank(a.Message) {
		return validationf("message required to request more information")
	}
	return nil
}

// ClaimAction is an admin decision on a claim.
type ClaimAction interface {
	claimAction()
	Validate() error
}

// ApproveClaim awards the item to the claimant.
type ApproveClaim struct{ Notes string }

// DenyClaim refuses the claim.
type DenyClaim struct{ Reason string }

// RequestClaimInfo asks the claimant to resubmit verification fields.
type RequestClaimInfo struct{ Message string }

// HoldClaim reserves the item for this claim for Days days.
type HoldClaim struct{ Days int }

func (ApproveClaim) claimAction()     {}
func (DenyClaim) claimAction()        {}
func (RequestClaimInfo) claimAction() {}
func (HoldClaim) claimAction()        {}

func (ApproveClaim) Validate() error { return nil }

func (a DenyClaim) Validate() error {
	if isBlank(a.Reason) {
		return validationf("reason required to deny a claim")
	}
	return nil
}

func (a RequestClaimInfo) Validate() error {
	if isBlank(a.Message) {
		return validationf("message required to request more information")
	}
	return nil
}

func (a HoldClaim) Validate() error {
	if a.Days < MinHoldPeriodDays || a.Days > MaxHoldPeriodDays {
		return validationf("hold days must be between %d and %d", MinHoldPeriodDays, MaxHoldPeriodDays)
	}
	return nil
}

// ParseItemAction builds an ItemAction from its wire name and free text.
func ParseItemAction(name, text string) (ItemAction, error) {
	switch name {
	case "approve":
		return ApproveItem{Notes: text}, nil
	case "reject":
		return RejectItem{Reason: text}, nil
	case "request_info", "needs_info":
		return RequestItemInfo{Message: text}, nil
	}
	return nil, validationf("unknown item action %q", name)
}

// ParseClaimAction builds a ClaimAction from its wire name, free text and
// hold days. defaultHoldDays is used for a hold when days is nil.
func ParseClaimAction(name, text string, days *int, defaultHoldDays int) (ClaimAction, error) {
	switch name {
	case "approve":
		return ApproveClaim{Notes: text}, nil
	case "deny":
		return DenyClaim{Reason: text}, nil
	case "request_info":
		return RequestClaimInfo{Message: text}, nil
	case "hold":
		if days == nil {
			return HoldClaim{Days: defaultHoldDays}, nil
		}
		return HoldClaim{Days: *days}, nil
	}
	return nil, validationf("unknown claim action %q", name)
}

// ActionName returns the audit action name for an item or claim action.
func ActionName(a any) string {
	switch a.(type) {
	case ApproveItem:
		return AuditApproveItem
	case RejectItem:
		return AuditRejectItem
	case RequestItemInfo:
		return AuditRequestItemInfo
	case ApproveClaim:
		return AuditApproveClaim
	case DenyClaim:
		return AuditDenyClaim
	case RequestClaimInfo:
		return AuditRequestClaimInfo
	case HoldClaim:
		return AuditHoldClaim
	}
	return fmt.Sprintf("%T", a)
}
