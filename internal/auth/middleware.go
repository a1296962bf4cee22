package auth

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// Middleware attaches the caller named by a Bearer token to the request
// context. Requests without a token continue anonymously; requests with a
// bad token are rejected with 401.
func Middleware(tokens *TokenManager, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				rejectUnauthorized(w)
				return
			}
			caller, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				log.WithError(err).Debug("rejected session token")
				rejectUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"invalid session token"}` + "\n"))
}
