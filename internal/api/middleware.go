/**
 * @description
 * This file contains custom middleware for the HTTP router. Middlewares are used
 * to process requests before they reach the final handler, perfect for tasks like
 * authentication, logging, or adding context to a request.
 *
 * @dependencies
 * - crypto/subtle, net, net/http, strings: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
)

// internalAPIKeyHeader carries the shared key for server-to-server calls.
const internalAPIKeyHeader = "X-Internal-Api-Key"

// InternalAuthMiddleware creates a middleware that validates the shared
// internal API key on mutating endpoints. When no key is configured the
// middleware is a passthrough, which keeps local development friction-free.
func InternalAuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(internalAPIKeyHeader)
			if provided == "" {
				// Accept "Bearer <key>" as well, for clients that only
				// know how to set an Authorization header.
				auth := r.Header.Get("Authorization")
				provided = strings.TrimPrefix(auth, "Bearer ")
				if provided == auth {
					provided = ""
				}
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				http.Error(w, "Invalid or missing API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr extracts the caller's IP for rate limiting. Proxied requests are
// identified by the first hop in X-Forwarded-For.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
