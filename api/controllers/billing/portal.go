package billing

import (
	"net/http"

	"github.com/dripspot/dripspot-backend/api/responses"
	"github.com/dripspot/dripspot-backend/api/validators"
	portalsvc "github.com/dripspot/dripspot-backend/internal/portal"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	"github.com/dripspot/dripspot-backend/pkg/logger"
)

type portalSessionRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	ReturnURL  string `json:"return_url" validate:"omitempty,url"`
}

// PortalSessionCreate opens the hosted billing portal for a customer the
// acting user owns.
func PortalSessionCreate(svc portalsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "portal service unavailable"))
			return
		}

		userID, err := actingUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload portalSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), userID, portalsvc.SessionInput{
			CustomerID: payload.CustomerID,
			ReturnURL:  payload.ReturnURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
