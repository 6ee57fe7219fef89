package subscriptions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aidash-backend/login"
)

// Store is the read side the query handlers need.
type Store interface {
	GetByUserID(ctx context.Context, userID int) (*Subscription, error)
}

type Handler struct {
	Store  Store
	Stripe *StripeService
	PayPal *PayPalService
	now    func() time.Time
}

func NewHandler(store Store, stripe *StripeService, paypal *PayPalService) *Handler {
	return &Handler{Store: store, Stripe: stripe, PayPal: paypal, now: time.Now}
}

// RegisterRoutes mounts the authenticated billing routes. Webhooks are
// mounted separately on the public router.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/subscription", h.Get)
	r.GET("/subscription/check", h.Check)
	r.POST("/create-order", h.CreateOrder)
	r.POST("/paypal/create-subscription", h.CreatePayPalSubscription)
}

func (h *Handler) RegisterWebhookRoutes(r gin.IRouter) {
	r.POST("/webhooks/stripe", h.StripeWebhook)
	r.POST("/webhooks/paypal", h.PayPalWebhook)
}

// Get returns the caller's subscription record, or null when none exists.
func (h *Handler) Get(c *gin.Context) {
	ident := login.IdentityFrom(c)
	sub, err := h.Store.GetByUserID(c.Request.Context(), ident.UserID)
	if err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("subscription: lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sub})
}

// Check answers the dashboard's paywall query.
func (h *Handler) Check(c *gin.Context) {
	ident := login.IdentityFrom(c)
	sub, err := h.Store.GetByUserID(c.Request.Context(), ident.UserID)
	if err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("subscription: check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isPro": sub.IsActive(h.now())})
}

type createOrderRequest struct {
	PriceID string `json:"price_id"`
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	// Body is optional; the configured default price is used when absent.
	_ = c.ShouldBindJSON(&req)

	ident := login.IdentityFrom(c)
	url, err := h.Stripe.CreateOrder(c.Request.Context(), ident.UserID, req.PriceID)
	if err != nil {
		if errors.Is(err, ErrMissingPrice) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("create-order failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

type createPayPalSubscriptionRequest struct {
	PlanID string `json:"plan_id"`
}

func (h *Handler) CreatePayPalSubscription(c *gin.Context) {
	var req createPayPalSubscriptionRequest
	_ = c.ShouldBindJSON(&req)

	ident := login.IdentityFrom(c)
	subID, approvalURL, err := h.PayPal.CreateSubscription(c.Request.Context(), ident.UserID, req.PlanID)
	if err != nil {
		if errors.Is(err, ErrMissingPlan) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("paypal create-subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscription_id": subID,
		"approval_url":    approvalURL,
	})
}

// StripeWebhook acknowledges with 400 on verification or handling failure so
// the provider retries.
func (h *Handler) StripeWebhook(c *gin.Context) {
	if err := h.Stripe.HandleWebhook(c.Request.Context(), c.Request); err != nil {
		if errors.Is(err, ErrStripeDisabled) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
			return
		}
		log.Error().Err(err).Msg("stripe webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) PayPalWebhook(c *gin.Context) {
	if err := h.PayPal.HandleWebhook(c.Request.Context(), c.Request); err != nil {
		if errors.Is(err, ErrPayPalDisabled) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
			return
		}
		log.Error().Err(err).Msg("paypal webhook rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
