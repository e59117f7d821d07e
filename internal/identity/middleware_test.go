package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func withIdentity(r *http.Request, id Identity) *http.Request {
	return r.WithContext(ContextWith(r.Context(), id))
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewStore(client, time.Hour)
	mw := NewMiddleware(store)

	token, err := store.Issue(context.Background(), Identity{UserID: 5, Role: RoleUser})
	require.NoError(t, err)

	var got Identity
	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = FromContext(r.Context())
	})

	cases := []struct {
		name     string
		decorate func(r *http.Request)
		wantHit  bool
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, true},
		{"query token", func(r *http.Request) { q := r.URL.Query(); q.Set("token", token); r.URL.RawQuery = q.Encode() }, true},
		{"anonymous passes through", func(r *http.Request) {}, false},
		{"garbage token passes through", func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found = Identity{}, false
			req := httptest.NewRequest(http.MethodGet, "/requests", nil)
			tc.decorate(req)
			mw.Authenticate(next).ServeHTTP(httptest.NewRecorder(), req)

			require.Equal(t, tc.wantHit, found)
			if tc.wantHit {
				require.EqualValues(t, 5, got.UserID)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	mw := Middleware{}

	rec := httptest.NewRecorder()
	mw.RequireAuth(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), Identity{UserID: 1})
	mw.RequireAuth(okHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	mw := Middleware{}

	rec := httptest.NewRecorder()
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), Identity{UserID: 1, Role: RoleUser})
	mw.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), Identity{UserID: 1, Role: RoleAdmin})
	mw.RequireAdmin(okHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireBankAccess(t *testing.T) {
	mw := Middleware{}

	cases := []struct {
		name string
		id   Identity
		anon bool
		want int
	}{
		{"anonymous", Identity{}, true, http.StatusUnauthorized},
		{"admin always allowed", Identity{Role: RoleAdmin}, false, http.StatusOK},
		{"matching bank operator", Identity{Role: RoleUser, UserType: UserTypeBank, BankID: 3}, false, http.StatusOK},
		{"other bank operator", Identity{Role: RoleUser, UserType: UserTypeBank, BankID: 9}, false, http.StatusForbidden},
		{"plain donor", Identity{Role: RoleUser, UserType: "donor"}, false, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.With(mw.RequireBankAccess("bankID")).Patch("/inventory/{bankID}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPatch, "/inventory/3", nil)
			if !tc.anon {
				req = withIdentity(req, tc.id)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
