package enums

import "fmt"

// SubscriptionStatus captures where a subscription sits in its lifecycle.
type SubscriptionStatus string

const (
	// SubscriptionStatusDraft is the initial state assigned by the ordering
	// subsystem; no orders are created until activation.
	SubscriptionStatusDraft SubscriptionStatus = "draft"
	// SubscriptionStatusActive means orders are created automatically per
	// the recurrence rule.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusPaused suspends order creation until resumed.
	SubscriptionStatusPaused SubscriptionStatus = "paused"
	// SubscriptionStatusEnded is terminal; no transition leaves it.
	SubscriptionStatusEnded SubscriptionStatus = "ended"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusDraft,
	SubscriptionStatusActive,
	SubscriptionStatusPaused,
	SubscriptionStatusEnded,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusEnded
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
