package subscriptions

import (
	"fmt"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
)

// allowedTransitions is the full lifecycle graph. ENDED is terminal and has
// no outgoing edges; a draft can only be activated.
var allowedTransitions = map[enums.SubscriptionStatus][]enums.SubscriptionStatus{
	enums.SubscriptionStatusDraft:  {enums.SubscriptionStatusActive},
	enums.SubscriptionStatusActive: {enums.SubscriptionStatusPaused, enums.SubscriptionStatusEnded},
	enums.SubscriptionStatusPaused: {enums.SubscriptionStatusActive, enums.SubscriptionStatusEnded},
	enums.SubscriptionStatusEnded:  {},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to enums.SubscriptionStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to enums.SubscriptionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot transition subscription from %s to %s", from, to))
}
