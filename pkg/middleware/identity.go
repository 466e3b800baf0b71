package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/meridianhq/crm-backoffice/pkg/composables"
	"github.com/meridianhq/crm-backoffice/pkg/configuration"
	"github.com/meridianhq/crm-backoffice/pkg/httpapi"
)

// RequestParams captures transport-level request details in the context.
func RequestParams() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := &composables.Params{
				IP:        clientIP(r),
				UserAgent: r.UserAgent(),
				Request:   r,
				Writer:    w,
			}
			next.ServeHTTP(w, r.WithContext(composables.WithParams(r.Context(), params)))
		})
	}
}

// ProvideIdentity reads the tenant and user the external auth layer forwards
// in trusted headers. Authentication and permission checks happen upstream;
// this service only needs to know who the caller is.
func ProvideIdentity() mux.MiddlewareFunc {
	conf := configuration.Use()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(conf.TenantIDHeader)))
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "IDENTITY_MISSING_TENANT", "missing or malformed tenant header", nil)
				return
			}
			userID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(conf.UserIDHeader)))
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "IDENTITY_MISSING_USER", "missing or malformed user header", nil)
				return
			}

			ctx := composables.WithTenantID(r.Context(), tenantID)
			ctx = composables.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
