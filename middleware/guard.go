package middleware

import (
	"net/http"

	admission "github.com/oriolmontcreus/cms-sub000"
	"github.com/oriolmontcreus/cms-sub000/permission"
)

const unauthorizedBody = "unauthorized"

// Guard returns middleware that reads the session cookie, admits the caller
// through engine for required and stores the identity in the request
// context. The wrapped handler is not called on rejection.
func Guard(engine *admission.Engine, required permission.Mask) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}

			token, ok := sessionToken(r, engine.CookieName())
			if !ok {
				// Counted and audited as a missing token.
				_, _ = engine.Admit(r.Context(), "", required)
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}

			identity, err := engine.Admit(r.Context(), token, required)
			if err != nil {
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}

			ctx := admission.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth guards with the default role, [permission.Developer].
func RequireAuth(engine *admission.Engine) func(http.Handler) http.Handler {
	return Guard(engine, permission.Developer)
}

// RequireClient admits any authenticated account.
func RequireClient(engine *admission.Engine) func(http.Handler) http.Handler {
	return Guard(engine, permission.Client)
}

// RequireDeveloper admits developers and super admins.
func RequireDeveloper(engine *admission.Engine) func(http.Handler) http.Handler {
	return Guard(engine, permission.Developer)
}

// RequireSuperAdmin admits super admins only.
func RequireSuperAdmin(engine *admission.Engine) func(http.Handler) http.Handler {
	return Guard(engine, permission.SuperAdmin)
}

func sessionToken(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
