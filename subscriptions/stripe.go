package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

var (
	ErrStripeDisabled = errors.New("stripe is not configured")
	ErrMissingPrice   = errors.New("price_id is required")
)

// StripeService creates checkout sessions and applies webhook-driven status
// transitions. When STRIPE_SECRET_KEY is unset the constructor returns nil
// and the billing routes answer 500.
type StripeService struct {
	repo          billingStore
	webhookSecret string
	priceID       string
	successURL    string
	cancelURL     string
	sc            *client.API
}

func NewStripeFromEnv(repo *Repository) *StripeService {
	key := os.Getenv("STRIPE_SECRET_KEY")
	if key == "" {
		return nil
	}
	success := os.Getenv("STRIPE_SUCCESS_URL")
	if success == "" {
		success = "http://localhost:3000/dashboard?checkout=success"
	}
	cancel := os.Getenv("STRIPE_CANCEL_URL")
	if cancel == "" {
		cancel = "http://localhost:3000/dashboard?checkout=cancel"
	}
	sc := &client.API{}
	sc.Init(key, nil)
	return &StripeService{
		repo:          repo,
		webhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		priceID:       os.Getenv("STRIPE_PRICE_ID"),
		successURL:    success,
		cancelURL:     cancel,
		sc:            sc,
	}
}

// CreateOrder opens a subscription-mode checkout session for the user and
// records a PENDING subscription row, unless the user already holds an
// ACTIVE one. The session carries the user id as client reference so the
// completion webhook can find its owner.
func (s *StripeService) CreateOrder(ctx context.Context, userID int, priceID string) (string, error) {
	if s == nil {
		return "", ErrStripeDisabled
	}
	if priceID == "" {
		priceID = s.priceID
	}
	if priceID == "" {
		return "", ErrMissingPrice
	}
	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(strconv.Itoa(userID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
	}
	sess, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("stripe: checkout session failed")
		return "", err
	}
	pending := &Subscription{
		UserID:   userID,
		Provider: ProviderStripe,
		Status:   StatusPending,
	}
	if err := recordPendingCheckout(ctx, s.repo, pending); err != nil {
		// The checkout already exists at Stripe; the completion webhook will
		// upsert the row again. Known gap: no compensating cancellation.
		log.Error().Err(err).Int("user_id", userID).Msg("stripe: pending subscription write failed")
	}
	return sess.URL, nil
}

// HandleWebhook verifies the signature and applies the status transition for
// the events we care about. Everything else is acknowledged and ignored.
func (s *StripeService) HandleWebhook(ctx context.Context, r *http.Request) error {
	if s == nil {
		return ErrStripeDisabled
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return err
	}
	var event stripe.Event
	if s.webhookSecret != "" {
		event, err = webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.webhookSecret)
		if err != nil {
			return err
		}
	} else {
		// No webhook secret configured (local development): accept unverified.
		log.Warn().Msg("stripe: webhook signature not verified, STRIPE_WEBHOOK_SECRET unset")
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		userID, err := strconv.Atoi(sess.ClientReferenceID)
		if err != nil || userID == 0 {
			return errors.New("checkout session without client reference")
		}
		if sess.Subscription == nil {
			// The session expansion lacks the subscription object; flip the
			// pending row without blanking a stored provider id.
			log.Info().Int("user_id", userID).Msg("stripe: checkout completed")
			if existing, err := s.repo.GetByUserID(ctx, userID); err != nil {
				return err
			} else if existing != nil {
				return s.repo.UpdateStatusByUserID(ctx, userID, StatusActive, nil)
			}
			return s.repo.Upsert(ctx, &Subscription{
				UserID:   userID,
				Provider: ProviderStripe,
				Status:   StatusActive,
			})
		}
		sub := &Subscription{
			UserID:                 userID,
			Provider:               ProviderStripe,
			ProviderSubscriptionID: sess.Subscription.ID,
			Status:                 StatusActive,
		}
		if end := s.periodEnd(sess.Subscription.ID); end != nil {
			sub.CurrentPeriodEnd = end
		}
		log.Info().Int("user_id", userID).Str("subscription", sub.ProviderSubscriptionID).
			Msg("stripe: checkout completed")
		return s.repo.Upsert(ctx, sub)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		end := time.Unix(sub.CurrentPeriodEnd, 0)
		return applyProviderTransition(ctx, s.repo, sub.ID, mapStripeStatus(sub.Status), &end)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		log.Info().Str("subscription", sub.ID).Msg("stripe: subscription canceled")
		return applyProviderTransition(ctx, s.repo, sub.ID, StatusCanceled, nil)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return err
		}
		if inv.Subscription == nil {
			return nil
		}
		log.Warn().Str("subscription", inv.Subscription.ID).Msg("stripe: payment failed")
		return applyProviderTransition(ctx, s.repo, inv.Subscription.ID, StatusPastDue, nil)
	}
	return nil
}

// periodEnd fetches the subscription's current period end; nil when the
// lookup fails (a later subscription.updated event fills it in).
func (s *StripeService) periodEnd(subscriptionID string) *time.Time {
	sub, err := s.sc.Subscriptions.Get(subscriptionID, nil)
	if err != nil {
		log.Warn().Err(err).Str("subscription", subscriptionID).Msg("stripe: period end lookup failed")
		return nil
	}
	end := time.Unix(sub.CurrentPeriodEnd, 0)
	return &end
}

func mapStripeStatus(status stripe.SubscriptionStatus) Status {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return StatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return StatusCanceled
	default:
		return StatusPending
	}
}
