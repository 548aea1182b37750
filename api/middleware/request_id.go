package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Inbound ids are caller-controlled; anything oversized or blank is replaced.
const maxRequestIDLength = 64

// RequestID tags every request with an id, honoring a sane inbound one so
// Stripe webhook deliveries and client retries stay traceable end to end.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if reqID == "" || len(reqID) > maxRequestIDLength {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
