package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/kuchikomi/internal/auth"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Error codes written by the auth middleware.
const (
	errCodeAuthFailed   = "auth_failed"
	errCodeTokenExpired = "token_expired"
)

// OptionalAuth identifies the viewer from an "Authorization: Bearer" header.
// Requests without the header continue anonymously. A header carrying an
// invalid or expired token is rejected with 401.
func OptionalAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				writeAuthError(w, r, errCodeAuthFailed, "Authorization header must use the Bearer scheme")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				code, message := errCodeAuthFailed, "Invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					code, message = errCodeTokenExpired, "Token has expired"
				}
				slog.DebugContext(r.Context(), "rejected bearer token", "error", err)
				writeAuthError(w, r, code, message)
				return
			}

			viewerID := claims.ViewerID()
			reportViewer(r.Context(), viewerID)
			next.ServeHTTP(w, r.WithContext(SetViewerID(r.Context(), viewerID)))
		})
	}
}

// RequireViewer rejects anonymous requests with 401. It must run inside OptionalAuth.
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetViewerID(r.Context()) == "" {
			writeAuthError(w, r, errCodeAuthFailed, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeAuthError writes the API error envelope for a 401 response.
func writeAuthError(w http.ResponseWriter, r *http.Request, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	w.Header().Set("WWW-Authenticate", `Bearer realm="kuchikomi"`)
	writeJSONError(w, http.StatusUnauthorized, code, message)
}

// writeJSONError writes {"error":{"code","message"}} with the given status.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]map[string]string{
		"error": {"code": code, "message": message},
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}
