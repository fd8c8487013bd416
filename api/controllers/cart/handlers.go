package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lunastore/storefront/api/responses"
	"github.com/lunastore/storefront/api/validators"
	cartstore "github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/internal/reconcile"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
)

// CartFetch returns the current cart view: lines, totals, cart-wide
// eligibility flags, and the active toast if any.
func CartFetch(store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}
		responses.WriteSuccess(w, newCartView(store))
	}
}

// CartAdd adds a line to the cart and schedules the remote push when
// the session allows it.
func CartAdd(orch *reconcile.Orchestrator, store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil || store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := orch.AddItem(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"line": line,
			"cart": newCartView(store),
		})
	}
}

// CartUpdateQuantity routes a quantity edit through the debounced
// pipeline. The response reflects the optimistic local state; the
// remote correction lands asynchronously.
func CartUpdateQuantity(pipeline *reconcile.Pipeline, store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pipeline == nil || store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartItemID := chi.URLParam(r, "id")
		if cartItemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required"))
			return
		}

		var payload UpdateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := pipeline.RequestQuantity(r.Context(), cartItemID, payload.Quantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartView(store))
	}
}

// CartRemove deletes a line locally and, for synced lines, remotely in
// the background. Removing an absent id is a no-op.
func CartRemove(orch *reconcile.Orchestrator, store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil || store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		cartItemID := chi.URLParam(r, "id")
		if cartItemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart item id is required"))
			return
		}

		orch.RemoveLine(r.Context(), cartItemID)
		responses.WriteSuccess(w, newCartView(store))
	}
}

// CartClear empties the cart; used after a completed checkout.
func CartClear(store *cartstore.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}
		store.Clear(r.Context())
		responses.WriteSuccess(w, newCartView(store))
	}
}
