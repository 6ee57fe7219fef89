package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrPayPalDisabled = errors.New("paypal is not configured")
	ErrMissingPlan    = errors.New("plan_id is required")
)

// PayPalService creates billing subscriptions and applies webhook-driven
// status transitions. Nil when the PAYPAL_* env vars are missing.
type PayPalService struct {
	repo      billingStore
	client    *paypal.Client
	planID    string
	webhookID string
	returnURL string
	cancelURL string
}

func NewPayPalFromEnv(repo *Repository) *PayPalService {
	clientID := os.Getenv("PAYPAL_CLIENT_ID")
	secret := os.Getenv("PAYPAL_CLIENT_SECRET")
	if clientID == "" || secret == "" {
		return nil
	}
	base := paypal.APIBaseSandBox
	if os.Getenv("PAYPAL_ENV") == "live" {
		base = paypal.APIBaseLive
	}
	c, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		log.Error().Err(err).Msg("paypal: client init failed")
		return nil
	}
	returnURL := os.Getenv("PAYPAL_RETURN_URL")
	if returnURL == "" {
		returnURL = "http://localhost:3000/dashboard?paypal=success"
	}
	cancelURL := os.Getenv("PAYPAL_CANCEL_URL")
	if cancelURL == "" {
		cancelURL = "http://localhost:3000/dashboard?paypal=cancel"
	}
	return &PayPalService{
		repo:      repo,
		client:    c,
		planID:    os.Getenv("PAYPAL_PLAN_ID"),
		webhookID: os.Getenv("PAYPAL_WEBHOOK_ID"),
		returnURL: returnURL,
		cancelURL: cancelURL,
	}
}

// CreateSubscription starts a PayPal billing subscription and records it as
// PENDING unless the user already holds an ACTIVE row; the caller redirects
// the user to the returned approval link and the ACTIVATED webhook flips
// the row to ACTIVE.
func (s *PayPalService) CreateSubscription(ctx context.Context, userID int, planID string) (subscriptionID, approvalURL string, err error) {
	if s == nil {
		return "", "", ErrPayPalDisabled
	}
	if planID == "" {
		planID = s.planID
	}
	if planID == "" {
		return "", "", ErrMissingPlan
	}
	if _, err := s.client.GetAccessToken(ctx); err != nil {
		return "", "", err
	}
	resp, err := s.client.CreateSubscription(ctx, paypal.SubscriptionBase{
		PlanID:   planID,
		CustomID: strconv.Itoa(userID),
		ApplicationContext: &paypal.ApplicationContext{
			ReturnURL: s.returnURL,
			CancelURL: s.cancelURL,
		},
	})
	if err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("paypal: create subscription failed")
		return "", "", err
	}
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
		}
	}
	pending := &Subscription{
		UserID:                 userID,
		Provider:               ProviderPayPal,
		ProviderSubscriptionID: resp.ID,
		Status:                 StatusPending,
	}
	if err := recordPendingCheckout(ctx, s.repo, pending); err != nil {
		log.Error().Err(err).Int("user_id", userID).Msg("paypal: pending subscription write failed")
	}
	return resp.ID, approvalURL, nil
}

type paypalEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID          string `json:"id"`
		CustomID    string `json:"custom_id"`
		BillingInfo struct {
			NextBillingTime time.Time `json:"next_billing_time"`
		} `json:"billing_info"`
	} `json:"resource"`
}

// HandleWebhook verifies the event signature against the configured webhook
// id and applies the subscription status transition.
func (s *PayPalService) HandleWebhook(ctx context.Context, r *http.Request) error {
	if s == nil {
		return ErrPayPalDisabled
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return err
	}
	if s.webhookID != "" {
		if _, err := s.client.GetAccessToken(ctx); err != nil {
			return err
		}
		r.Body = io.NopCloser(bytes.NewReader(payload))
		verify, err := s.client.VerifyWebhookSignature(ctx, r, s.webhookID)
		if err != nil {
			return err
		}
		if verify.VerificationStatus != "SUCCESS" {
			return errors.New("invalid webhook signature")
		}
	}

	var event paypalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}

	switch event.EventType {
	case "BILLING.SUBSCRIPTION.ACTIVATED":
		var periodEnd *time.Time
		if !event.Resource.BillingInfo.NextBillingTime.IsZero() {
			t := event.Resource.BillingInfo.NextBillingTime
			periodEnd = &t
		}
		if userID, err := strconv.Atoi(event.Resource.CustomID); err == nil && userID > 0 {
			sub := &Subscription{
				UserID:                 userID,
				Provider:               ProviderPayPal,
				ProviderSubscriptionID: event.Resource.ID,
				Status:                 StatusActive,
				CurrentPeriodEnd:       periodEnd,
			}
			log.Info().Int("user_id", userID).Str("subscription", event.Resource.ID).
				Msg("paypal: subscription activated")
			return s.repo.Upsert(ctx, sub)
		}
		return applyProviderTransition(ctx, s.repo, event.Resource.ID, StatusActive, periodEnd)

	case "BILLING.SUBSCRIPTION.CANCELLED", "BILLING.SUBSCRIPTION.EXPIRED":
		log.Info().Str("subscription", event.Resource.ID).Msg("paypal: subscription canceled")
		return applyProviderTransition(ctx, s.repo, event.Resource.ID, StatusCanceled, nil)

	case "BILLING.SUBSCRIPTION.SUSPENDED", "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		log.Warn().Str("subscription", event.Resource.ID).Msg("paypal: subscription past due")
		return applyProviderTransition(ctx, s.repo, event.Resource.ID, StatusPastDue, nil)
	}
	return nil
}
