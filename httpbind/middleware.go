package httpbind

import (
	"context"
	"net/http"

	"github.com/sessionkit/sessionkit"
	"github.com/sessionkit/sessionkit/store"
)

type userContextKey struct{}

// UserFromContext returns the payload stored by RequireSession.
func UserFromContext(ctx context.Context) (store.UserPayload, bool) {
	user, ok := ctx.Value(userContextKey{}).(store.UserPayload)
	return user, ok
}

// RequireSession guards routes behind a valid session. Allowed requests carry
// the user payload in the context; unauthenticated requests get the cookie
// cleared and a redirect to the login page with the original path preserved;
// a store outage answers 503 without touching the cookie.
func RequireSession(facade *sessionkit.AuthFacade, binding sessionkit.CookieBinding) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := facade.RequireSession(r)

			switch decision.Kind {
			case sessionkit.DecisionAllow:
				ctx := context.WithValue(r.Context(), userContextKey{}, decision.User)
				next.ServeHTTP(w, r.WithContext(ctx))
			case sessionkit.DecisionRedirect:
				binding.ClearCookie(w)
				http.Redirect(w, r, decision.Location, decision.Status)
			default:
				http.Error(w, "session store unavailable", decision.Status)
			}
		})
	}
}
