package identity

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// Middleware enforces identity assertions on routes.
type Middleware struct {
	store *Store
}

// NewMiddleware constructs Middleware.
func NewMiddleware(store *Store) Middleware {
	return Middleware{store: store}
}

// Authenticate resolves the bearer token, when present, into a context
// identity. Requests without a token pass through anonymously; the Require
// middlewares below decide whether that is acceptable.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.store.Resolve(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWith(r.Context(), id)))
	})
}

// RequireAuth rejects anonymous requests.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if id.Role != RoleAdmin {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireBankAccess admits admins and bank-affiliated users whose bank id
// matches the named URL parameter.
func (m Middleware) RequireBankAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if id.Role == RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			bankID, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil || id.UserType != UserTypeBank || id.BankID != bankID {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	// Websocket clients cannot set headers from browsers, so the token may
	// arrive as a query parameter instead.
	return r.URL.Query().Get("token")
}
