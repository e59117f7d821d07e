package inventory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/lifelink/lifelink/internal/identity"
)

func newTestRouter(t *testing.T, actor *identity.Identity) (chi.Router, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, repo, staticBanks{known: map[int64]bool{1: true}}, nil, nil, nil)
	handler := NewHandler(logger, svc, identity.Middleware{}, nil)

	r := chi.NewRouter()
	if actor != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(identity.ContextWith(req.Context(), *actor)))
			})
		})
	}
	handler.MountRoutes(r)
	return r, repo
}

func patchInventory(t *testing.T, r chi.Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPatchAppliesDeltaAndReturnsInventory(t *testing.T) {
	admin := &identity.Identity{UserID: 1, Role: identity.RoleAdmin}
	r, _ := newTestRouter(t, admin)

	rec := patchInventory(t, r, "/inventory/1", `{"bloodType":"A+","units":12}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body inventoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Inventory, 1)
	require.Equal(t, 12, body.Inventory[0].Units)

	// Action omitted defaults to set: repeating the call is idempotent.
	rec = patchInventory(t, r, "/inventory/1", `{"bloodType":"A+","units":12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 12, body.Inventory[0].Units)
}

func TestPatchValidation(t *testing.T) {
	admin := &identity.Identity{UserID: 1, Role: identity.RoleAdmin}
	r, _ := newTestRouter(t, admin)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing units", "/inventory/1", `{"bloodType":"A+"}`, http.StatusBadRequest},
		{"missing blood type", "/inventory/1", `{"units":3}`, http.StatusBadRequest},
		{"unknown action", "/inventory/1", `{"bloodType":"A+","units":3,"action":"increment"}`, http.StatusBadRequest},
		{"invalid blood type", "/inventory/1", `{"bloodType":"C+","units":3}`, http.StatusBadRequest},
		{"negative units", "/inventory/1", `{"bloodType":"A+","units":-4}`, http.StatusBadRequest},
		{"non numeric bank", "/inventory/abc", `{"bloodType":"A+","units":3}`, http.StatusBadRequest},
		{"unknown bank", "/inventory/9", `{"bloodType":"A+","units":3}`, http.StatusNotFound},
		{"malformed json", "/inventory/1", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := patchInventory(t, r, tc.path, tc.body)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestPatchRequiresBankAccess(t *testing.T) {
	// Anonymous caller.
	r, _ := newTestRouter(t, nil)
	rec := patchInventory(t, r, "/inventory/1", `{"bloodType":"A+","units":3}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Operator of a different bank.
	other := &identity.Identity{UserID: 2, Role: identity.RoleUser, UserType: identity.UserTypeBank, BankID: 9}
	r, _ = newTestRouter(t, other)
	rec = patchInventory(t, r, "/inventory/1", `{"bloodType":"A+","units":3}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Matching operator.
	operator := &identity.Identity{UserID: 2, Role: identity.RoleUser, UserType: identity.UserTypeBank, BankID: 1}
	r, _ = newTestRouter(t, operator)
	rec = patchInventory(t, r, "/inventory/1", `{"bloodType":"A+","units":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetInventoryIsPublic(t *testing.T) {
	r, repo := newTestRouter(t, nil)
	_, err := repo.ApplyDelta(context.Background(), 1, "O-", ActionSet, 6)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/inventory/1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body inventoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Inventory, 1)
	require.Equal(t, "O-", body.Inventory[0].BloodType)
}
