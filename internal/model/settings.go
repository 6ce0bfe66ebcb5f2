package model

import (
	"net/mail"
	"sort"
	"strconv"
	"strings"
)

// Recognized settings keys.
const (
	SettingHoldPeriodDays   = "hold_period_days"
	SettingBlurLevel        = "blur_level"
	SettingAdminEmail       = "admin_email"
	SettingHoldExpiryPolicy = "hold_expiry_policy"
)

// Hold period bounds, in days.
const (
	MinHoldPeriodDays = 1
	MaxHoldPeriodDays = 365
)

// BlurLevel is how strongly public listings are redacted by the presentation layer.
type BlurLevel string

// Blur levels.
const (
	BlurLow    BlurLevel = "low"
	BlurMedium BlurLevel = "medium"
	BlurHigh   BlurLevel = "high"
)

// ExpiryPolicy decides what happens to an item when its hold lapses.
type ExpiryPolicy string

// Expiry policies.
const (
	// ExpiryRevert returns the item to found so others may claim it.
	ExpiryRevert ExpiryPolicy = "revert"
	// ExpiryArchive retires the item.
	ExpiryArchive ExpiryPolicy = "archive"
)

// Settings is the validated global configuration record.
type Settings struct {
	HoldPeriodDays   int          `json:"hold_period_days"`
	BlurLevel        BlurLevel    `json:"blur_level"`
	AdminEmail       string       `json:"admin_email"`
	HoldExpiryPolicy ExpiryPolicy `json:"hold_expiry_policy"`
}

// DefaultSettings returns the values used on first use.
func DefaultSettings() Settings {
	return Settings{
		HoldPeriodDays:   7,
		BlurLevel:        BlurMedium,
		AdminEmail:       "admin@example.edu",
		HoldExpiryPolicy: ExpiryRevert,
	}
}

// Values returns the settings as key/value strings for storage.
func (s Settings) Values() map[string]string {
	return map[string]string{
		SettingHoldPeriodDays:   strconv.Itoa(s.HoldPeriodDays),
		SettingBlurLevel:        string(s.BlurLevel),
		SettingAdminEmail:       s.AdminEmail,
		SettingHoldExpiryPolicy: string(s.HoldExpiryPolicy),
	}
}

// Apply validates every key/value pair and returns a copy of s with all of
// them applied. Any invalid pair fails the whole set.
func (s Settings) Apply(values map[string]string) (Settings, error) {
	if len(values) == 0 {
		return s, validationf("no settings given")
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := s
	for _, key := range keys {
		value := strings.TrimSpace(values[key])
		switch key {
		case SettingHoldPeriodDays:
			days, err := strconv.Atoi(value)
			if err != nil {
				return s, validationf("%s must be an integer", key)
			}
			if days < MinHoldPeriodDays || days > MaxHoldPeriodDays {
				return s, validationf("%s must be between %d and %d", key, MinHoldPeriodDays, MaxHoldPeriodDays)
			}
			out.HoldPeriodDays = days
		case SettingBlurLevel:
			level := BlurLevel(strings.ToLower(value))
			if level != BlurLow && level != BlurMedium && level != BlurHigh {
				return s, validationf("%s must be one of low, medium, high", key)
			}
			out.BlurLevel = level
		case SettingAdminEmail:
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != value {
				return s, validationf("%s must be a plain email address", key)
			}
			out.AdminEmail = value
		case SettingHoldExpiryPolicy:
			policy := ExpiryPolicy(strings.ToLower(value))
			if policy != ExpiryRevert && policy != ExpiryArchive {
				return s, validationf("%s must be %q or %q", key, ExpiryRevert, ExpiryArchive)
			}
			out.HoldExpiryPolicy = policy
		default:
			return s, validationf("unknown setting %q", key)
		}
	}
	return out, nil
}
