package checkout

import (
	"sync"

	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
)

// Reason identifies which precondition blocked a checkout attempt.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonEmptyCart       Reason = "empty_cart"
	ReasonPolicyRequired  Reason = "policy_required"
	ReasonCartUnavailable Reason = "cart_unavailable"
	ReasonSignInRequired  Reason = "sign_in_required"
)

// Decision is the outcome of one gate evaluation.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	Reason         Reason `json:"reason,omitempty"`
	Message        string `json:"message,omitempty"`
	SignInRequired bool   `json:"sign_in_required,omitempty"`
}

type cartReader interface {
	TotalItemCount() int
	Flags() (canCheckout bool, message string, invalidItems int)
}

type authChecker interface {
	Authenticated() bool
}

// Gate blocks navigation into checkout while the cart is known to be
// unpurchasable. Preconditions run in a fixed order and the first
// failure wins, each with its own message.
type Gate struct {
	cart cartReader
	auth authChecker
	logg *logger.Logger

	// policyRequired gates on the terms checkbox; hosts without a
	// policy step disable it through configuration.
	policyRequired bool

	mu            sync.Mutex
	pendingSignIn bool
}

// NewGate builds the eligibility gate.
func NewGate(cart cartReader, auth authChecker, logg *logger.Logger, policyRequired bool) (*Gate, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout gate requires a cart reader")
	}
	if auth == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout gate requires a session checker")
	}
	return &Gate{
		cart:           cart,
		auth:           auth,
		logg:           logg,
		policyRequired: policyRequired,
	}, nil
}

// Attempt evaluates the preconditions for one checkout request. When
// only authentication is missing, the intent is deferred: a one-shot
// latch is armed and the caller is told to open the sign-in flow.
func (g *Gate) Attempt(policyAccepted bool) Decision {
	if g.cart.TotalItemCount() == 0 {
		return Decision{Reason: ReasonEmptyCart, Message: "your cart is empty"}
	}
	if g.policyRequired && !policyAccepted {
		return Decision{Reason: ReasonPolicyRequired, Message: "please accept the terms of sale to continue"}
	}
	if canCheckout, message, _ := g.cart.Flags(); !canCheckout {
		if message == "" {
			message = "some items in your cart are currently unavailable"
		}
		return Decision{Reason: ReasonCartUnavailable, Message: message}
	}
	if !g.auth.Authenticated() {
		g.mu.Lock()
		g.pendingSignIn = true
		g.mu.Unlock()
		return Decision{
			Reason:         ReasonSignInRequired,
			Message:        "please sign in to complete your order",
			SignInRequired: true,
		}
	}
	return Decision{Allowed: true}
}

// ResumeAfterSignIn consumes the deferred checkout intent, if any, and
// re-runs the gate. The second return reports whether an intent was
// pending at all; without one the sign-in was unrelated to checkout.
func (g *Gate) ResumeAfterSignIn(policyAccepted bool) (Decision, bool) {
	g.mu.Lock()
	pending := g.pendingSignIn
	g.pendingSignIn = false
	g.mu.Unlock()

	if !pending {
		return Decision{}, false
	}
	return g.Attempt(policyAccepted), true
}

// DismissSignIn clears the deferred intent when the shopper abandons
// the sign-in dialog.
func (g *Gate) DismissSignIn() {
	g.mu.Lock()
	g.pendingSignIn = false
	g.mu.Unlock()
}

// SignInPending reports whether a checkout intent is waiting on
// authentication.
func (g *Gate) SignInPending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingSignIn
}
