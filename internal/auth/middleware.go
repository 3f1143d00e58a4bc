package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Identity headers set by the gateway after session resolution. Backend
// services read these instead of any ambient session state.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// UserID returns the caller identity threaded through by the gateway, or ""
// when the request is unauthenticated.
func UserID(r *http.Request) string {
	return r.Header.Get(HeaderUserID)
}

func UserRole(r *http.Request) string {
	return r.Header.Get(HeaderUserRole)
}

// Middleware resolves bearer tokens against the session store and injects
// identity headers. Inbound identity headers are always stripped so callers
// cannot forge them. When required is false, unauthenticated requests pass
// through with no identity.
func Middleware(store SessionStore, required bool, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(HeaderUserID)
		r.Header.Del(HeaderUserRole)

		token := bearerToken(r)
		if token == "" {
			if required {
				writeUnauthorized(w, logger)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		session, err := store.Get(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrNoSession) {
				if required {
					writeUnauthorized(w, logger)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			logger.Error("session lookup failed", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
			return
		}

		r.Header.Set(HeaderUserID, session.UserID)
		r.Header.Set(HeaderUserRole, session.Role)
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"}); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
