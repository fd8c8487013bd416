package controllers

import (
	"net/http"

	"github.com/lunastore/storefront/api/responses"
	"github.com/lunastore/storefront/api/validators"
	"github.com/lunastore/storefront/internal/checkout"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
)

type checkoutRequest struct {
	PolicyAccepted bool `json:"policy_accepted"`
}

// CheckoutAttempt runs the eligibility gate. The verdict is data, not
// an error: a blocked attempt still answers 200 with the reason and
// message so the client can render it inline.
func CheckoutAttempt(gate *checkout.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout gate unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision := gate.Attempt(payload.PolicyAccepted)
		if logg != nil && !decision.Allowed {
			ctx := logg.WithField(r.Context(), "reason", string(decision.Reason))
			logg.Info(ctx, "checkout.blocked")
		}
		responses.WriteSuccess(w, decision)
	}
}

// CheckoutDismissSignIn clears a deferred checkout intent when the
// shopper abandons the sign-in dialog.
func CheckoutDismissSignIn(gate *checkout.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gate == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout gate unavailable"))
			return
		}
		gate.DismissSignIn()
		responses.WriteSuccess(w, map[string]bool{"pending": false})
	}
}
