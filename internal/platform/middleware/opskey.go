package middleware

import (
	"log/slog"
	"net/http"

	"vitae/pkg/secrets"
)

// OpsKeyHeader carries the operator key on guarded endpoints.
const OpsKeyHeader = "X-Ops-Key"

// RequireOpsKey guards operator endpoints (metrics) with a bcrypt-hashed
// key. Only the hash is configured; the plaintext never leaves the
// operator's hands.
func RequireOpsKey(keyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(OpsKeyHeader)
			if key == "" || secrets.Verify(key, keyHash) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "ops key mismatch",
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "ops key required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
