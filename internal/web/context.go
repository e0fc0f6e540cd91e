package web

import (
	"net/http"

	"github.com/JonMunkholm/evsync/internal/core"
)

// requestMetadata stores the client address and user agent on the request
// context so they reach the sync run history.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), r.RemoteAddr) // after TrustedRealIP
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
