package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/api/responses"
	"github.com/dripspot/dripspot-backend/api/validators"
	shopsvc "github.com/dripspot/dripspot-backend/internal/shops"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	"github.com/dripspot/dripspot-backend/pkg/logger"
)

type discountToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ShopDiscountToggle flips the member-discount flag on a shop the caller owns.
func ShopDiscountToggle(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		userID, err := actingUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shopID, err := uuid.Parse(chi.URLParam(r, "shopID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop id"))
			return
		}

		var payload discountToggleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.ToggleDiscount(r.Context(), userID, shopID, *payload.Enabled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, snapshot)
	}
}
