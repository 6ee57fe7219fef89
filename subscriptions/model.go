package subscriptions

import "time"

// Status of a subscription. Transitions are driven exclusively by billing
// provider webhooks and checkout confirmations, never by direct user action.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusCanceled Status = "CANCELED"
	StatusPastDue  Status = "PAST_DUE"
)

const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

type Subscription struct {
	ID                     int        `json:"id"`
	UserID                 int        `json:"user_id"`
	Provider               string     `json:"provider"`
	ProviderSubscriptionID string     `json:"provider_subscription_id"`
	Status                 Status     `json:"status"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// IsActive reports whether the subscription entitles the user right now:
// status ACTIVE and the paid period has not elapsed. A nil period end means
// the provider has not reported one yet and counts as current.
func (s *Subscription) IsActive(now time.Time) bool {
	if s == nil || s.Status != StatusActive {
		return false
	}
	return s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.After(now)
}
