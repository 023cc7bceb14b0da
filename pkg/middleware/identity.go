package middleware

import (
	"net/http"

	"villa-booking/pkg/utils"

	"go.uber.org/zap"
)

const (
	guestIDHeader        = "X-Guest-Id"
	idempotencyKeyHeader = "Idempotency-Key"
)

// Identity attaches the verified guest identity supplied by the upstream
// identity provider. Token verification is out of scope here: the gateway
// in front of the engine authenticates the caller and forwards the subject
// identifier in X-Guest-Id. Requests without one are rejected.
func Identity(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID := r.Header.Get(guestIDHeader)
			if guestID == "" {
				logger.Warn("Missing guest identity",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
				)
				utils.ResponseUnauthorized(w, "Missing guest identity")
				return
			}

			ctx := utils.SetGuestContext(r.Context(), guestID)

			// Optional command idempotency key, so client retries of the
			// command itself are deduplicated.
			if key := r.Header.Get(idempotencyKeyHeader); key != "" {
				ctx = utils.SetRequestKeyContext(ctx, key)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
