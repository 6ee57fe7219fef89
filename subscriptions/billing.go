package subscriptions

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// billingStore is the persistence surface the provider services share.
// *Repository implements it; tests substitute an in-memory fake.
type billingStore interface {
	GetByUserID(ctx context.Context, userID int) (*Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*Subscription, error)
	Upsert(ctx context.Context, s *Subscription) error
	UpdateStatusByProviderSubscriptionID(ctx context.Context, providerSubID string, status Status, periodEnd *time.Time) error
	UpdateStatusByUserID(ctx context.Context, userID int, status Status, periodEnd *time.Time) error
}

// recordPendingCheckout writes the in-flight checkout row for the user. An
// ACTIVE row is left untouched: entitlement only changes through provider
// webhooks, and opening a new checkout must not revoke what the user
// already paid for.
func recordPendingCheckout(ctx context.Context, store billingStore, pending *Subscription) error {
	existing, err := store.GetByUserID(ctx, pending.UserID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == StatusActive {
		log.Info().Int("user_id", pending.UserID).Str("provider", pending.Provider).
			Msg("checkout started while subscription active; keeping current row")
		return nil
	}
	return store.Upsert(ctx, pending)
}

// applyProviderTransition updates the row keyed by the provider's
// subscription id. Events for ids we never recorded are acknowledged and
// ignored; sandboxes and stale retries reach the same webhook endpoint.
func applyProviderTransition(ctx context.Context, store billingStore, providerSubID string, status Status, periodEnd *time.Time) error {
	existing, err := store.GetByProviderSubscriptionID(ctx, providerSubID)
	if err != nil {
		return err
	}
	if existing == nil {
		log.Warn().Str("subscription", providerSubID).Msg("webhook for unknown subscription ignored")
		return nil
	}
	return store.UpdateStatusByProviderSubscriptionID(ctx, providerSubID, status, periodEnd)
}
