package controllers

import (
	"net/http"

	"github.com/lunastore/storefront/api/responses"
	"github.com/lunastore/storefront/api/validators"
	"github.com/lunastore/storefront/internal/checkout"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
	"github.com/lunastore/storefront/pkg/session"
)

type sessionRequest struct {
	Token          string `json:"token" validate:"required"`
	PolicyAccepted bool   `json:"policy_accepted"`
}

type sessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	Checkout      *checkout.Decision `json:"checkout,omitempty"`
}

// SessionCreate stores the backend-issued access token. If a checkout
// intent was deferred behind sign-in, the gate re-runs and its verdict
// rides along in the response.
func SessionCreate(mgr *session.Manager, gate *checkout.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgr == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable"))
			return
		}

		var payload sessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := mgr.SetToken(payload.Token); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := sessionResponse{Authenticated: mgr.Authenticated()}
		if gate != nil {
			if decision, resumed := gate.ResumeAfterSignIn(payload.PolicyAccepted); resumed {
				resp.Checkout = &decision
			}
		}
		responses.WriteSuccess(w, resp)
	}
}

// SessionDestroy drops the token and any deferred checkout intent.
func SessionDestroy(mgr *session.Manager, gate *checkout.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mgr == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session manager unavailable"))
			return
		}
		mgr.Clear()
		if gate != nil {
			gate.DismissSignIn()
		}
		responses.WriteSuccess(w, sessionResponse{Authenticated: false})
	}
}
