package quota

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aidash-backend/login"
)

// Requirement classifies a gated operation.
type Requirement int

const (
	// FreeTierLimited operations consume the free allotment unless the user
	// subscribes.
	FreeTierLimited Requirement = iota
	// SubscriptionOnly operations need a paid subscription outright.
	SubscriptionOnly
)

// Reason a request was denied.
type Reason string

const (
	ReasonUnauthenticated      Reason = "UNAUTHENTICATED"
	ReasonSubscriptionRequired Reason = "SUBSCRIPTION_REQUIRED"
	ReasonLimitExceeded        Reason = "LIMIT_EXCEEDED"
)

// HTTPStatus maps a deny reason to its response code.
func (r Reason) HTTPStatus() int {
	if r == ReasonUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// Decision is the uniform allow/deny result the gate produces.
type Decision struct {
	Allowed     bool
	Reason      Reason
	Entitlement Entitlement
}

const decisionKey = "quota_decision"

// Gate composes the session identity with the entitlement state to decide
// whether an operation may proceed. It holds no request-to-request state.
type Gate struct {
	Checker *Checker
	Usage   UsageStore
}

func NewGate(checker *Checker, usage UsageStore) *Gate {
	return &Gate{Checker: checker, Usage: usage}
}

// Decide is a pure function of the current entitlement state:
// no identity denies outright; subscription-only operations deny
// non-subscribers; free-tier operations deny when the allotment is gone.
func (g *Gate) Decide(ctx context.Context, ident *login.Identity, req Requirement) (Decision, error) {
	if ident == nil {
		return Decision{Reason: ReasonUnauthenticated}, nil
	}
	ent, err := g.Checker.Check(ctx, ident.UserID)
	if err != nil {
		return Decision{}, err
	}
	if req == SubscriptionOnly && !ent.HasActiveSubscription {
		return Decision{Reason: ReasonSubscriptionRequired, Entitlement: ent}, nil
	}
	if req == FreeTierLimited && !ent.HasActiveSubscription && ent.RemainingFreeUses == 0 {
		return Decision{Reason: ReasonLimitExceeded, Entitlement: ent}, nil
	}
	return Decision{Allowed: true, Entitlement: ent}, nil
}

// Middleware runs the gate as the authorize stage of the request pipeline
// (identify -> gate -> handle). On deny it terminates with the mapped status;
// on allow it stashes the decision for the handler.
func (g *Gate) Middleware(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := login.IdentityFrom(c)
		dec, err := g.Decide(c.Request.Context(), ident, req)
		if err != nil {
			log.Error().Err(err).Msg("gate: entitlement check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
			return
		}
		if !dec.Allowed {
			ev := log.Info().Str("reason", string(dec.Reason))
			if ident != nil {
				ev = ev.Int("user_id", ident.UserID)
			}
			ev.Msg("gate: deny")
			c.AbortWithStatusJSON(dec.Reason.HTTPStatus(), gin.H{"error": string(dec.Reason)})
			return
		}
		c.Set(decisionKey, dec)
		c.Next()
	}
}

// DecisionFrom returns the decision stored by Middleware.
func DecisionFrom(c *gin.Context) (Decision, bool) {
	v, ok := c.Get(decisionKey)
	if !ok {
		return Decision{}, false
	}
	dec, ok := v.(Decision)
	return dec, ok
}

// Consume records one free-tier use. Handlers call it only after the gated
// operation itself succeeded, and only for non-subscribers, so a failed
// downstream call never burns quota.
func (g *Gate) Consume(ctx context.Context, ident *login.Identity, dec Decision) error {
	if dec.Entitlement.HasActiveSubscription {
		return nil
	}
	if err := g.Usage.Increment(ctx, ident.UserID); err != nil {
		return err
	}
	log.Debug().Int("user_id", ident.UserID).
		Int("remaining", dec.Entitlement.RemainingFreeUses-1).
		Msg("gate: usage consumed")
	return nil
}
