package quota

import (
	"context"
	"os"
	"strconv"
	"time"

	"aidash-backend/subscriptions"
)

// DefaultFreeLimit is used when FREE_LIMIT is unset.
const DefaultFreeLimit = 5

// Entitlement is the computed state the gate decides on: two independent
// facts about what the user may do right now.
type Entitlement struct {
	HasActiveSubscription bool `json:"hasActiveSubscription"`
	RemainingFreeUses     int  `json:"remainingFreeUses"`
}

// SubscriptionStore yields the current subscription row for a user.
type SubscriptionStore interface {
	GetByUserID(ctx context.Context, userID int) (*subscriptions.Subscription, error)
}

// UsageStore reads and mutates the per-user free-tier counter.
type UsageStore interface {
	Get(ctx context.Context, userID int) (*UsageRecord, error)
	Increment(ctx context.Context, userID int) error
}

// Checker computes the entitlement for a user id.
type Checker struct {
	Subs      SubscriptionStore
	Usage     UsageStore
	FreeLimit int
	now       func() time.Time
}

func NewChecker(subs SubscriptionStore, usage UsageStore) *Checker {
	return &Checker{
		Subs:      subs,
		Usage:     usage,
		FreeLimit: freeLimitFromEnv(),
		now:       time.Now,
	}
}

func freeLimitFromEnv() int {
	if v := os.Getenv("FREE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return DefaultFreeLimit
}

// Check looks up the subscription first: an active, unexpired one
// short-circuits to unlimited without touching the usage ledger. Otherwise
// the remaining allotment is FREE_LIMIT minus the recorded count, floored at
// zero; a user with no record yet has the full allotment.
func (c *Checker) Check(ctx context.Context, userID int) (Entitlement, error) {
	sub, err := c.Subs.GetByUserID(ctx, userID)
	if err != nil {
		return Entitlement{}, err
	}
	if sub.IsActive(c.now()) {
		return Entitlement{HasActiveSubscription: true, RemainingFreeUses: c.FreeLimit}, nil
	}

	rec, err := c.Usage.Get(ctx, userID)
	if err != nil {
		return Entitlement{}, err
	}
	remaining := c.FreeLimit
	if rec != nil {
		remaining = c.FreeLimit - rec.Count
		if remaining < 0 {
			remaining = 0
		}
	}
	return Entitlement{HasActiveSubscription: false, RemainingFreeUses: remaining}, nil
}
