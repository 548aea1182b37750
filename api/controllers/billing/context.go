package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/api/middleware"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

func actingUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return userID, nil
}
