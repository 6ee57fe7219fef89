package subscriptions

import (
	"encoding/json"
	"testing"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		in   stripe.SubscriptionStatus
		want Status
	}{
		{stripe.SubscriptionStatusActive, StatusActive},
		{stripe.SubscriptionStatusTrialing, StatusActive},
		{stripe.SubscriptionStatusPastDue, StatusPastDue},
		{stripe.SubscriptionStatusUnpaid, StatusPastDue},
		{stripe.SubscriptionStatusCanceled, StatusCanceled},
		{stripe.SubscriptionStatusIncomplete, StatusPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapStripeStatus(tt.in), "status %s", tt.in)
	}
}

func TestPayPalEventParsing(t *testing.T) {
	payload := `{
		"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"resource": {
			"id": "I-ABC123",
			"custom_id": "42",
			"billing_info": {"next_billing_time": "2026-09-01T10:00:00Z"}
		}
	}`
	var event paypalEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	assert.Equal(t, "BILLING.SUBSCRIPTION.ACTIVATED", event.EventType)
	assert.Equal(t, "I-ABC123", event.Resource.ID)
	assert.Equal(t, "42", event.Resource.CustomID)
	assert.Equal(t, 2026, event.Resource.BillingInfo.NextBillingTime.Year())
}
