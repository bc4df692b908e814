/*
middleware.go - Admin authentication and actor propagation

PURPOSE:
  Every /hub route is admin-only. RequireAdmin gates requests on a shared
  bearer token; ActorID pulls the acting admin's identity out of the
  X-Admin-Id header so handlers can attribute mutations without every
  request body repeating it.

TOKEN CHECK:
  Authorization: Bearer <token>, compared in constant time. A missing or
  wrong token gets a 403 envelope with code FORBIDDEN. An empty configured
  token disables the gate (local development only).

SEE ALSO:
  - server.go: where the middleware is mounted
  - config/config.go: admin_token
*/
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const actorKey contextKey = "hub.actor"

// HeaderAdminID carries the acting admin's identifier.
const HeaderAdminID = "X-Admin-Id"

// RequireAdmin gates requests on the shared admin bearer token and stores
// the X-Admin-Id header value in the request context.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
					writeError(w, http.StatusForbidden, "admin access required", "FORBIDDEN")
					return
				}
			}
			if actor := r.Header.Get(HeaderAdminID); actor != "" {
				r = r.WithContext(context.WithValue(r.Context(), actorKey, actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorID returns the acting admin from the request: the explicit body value
// wins, then the X-Admin-Id header.
func ActorID(r *http.Request, bodyValue string) string {
	if bodyValue != "" {
		return bodyValue
	}
	if actor, ok := r.Context().Value(actorKey).(string); ok {
		return actor
	}
	return ""
}
