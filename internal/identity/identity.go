// Package identity is the authentication assertion boundary: it resolves
// bearer tokens into "caller is user U with role R / user_type T / bank B"
// and enforces that assertion on routes. Account management itself lives
// outside this service.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// Roles and user types understood by the authorization middleware.
const (
	RoleAdmin    = "admin"
	RoleUser     = "user"
	UserTypeBank = "bank"
)

// Identity is the resolved caller assertion attached to a request.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	UserType string `json:"user_type"`
	BankID   int64  `json:"bank_id,omitempty"`
}

// ErrInvalidCredentials indicates login failure.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)

// ErrTokenUnknown indicates an expired or revoked bearer token.
var ErrTokenUnknown = fmt.Errorf("%w: unknown token", httpx.ErrUnauthorized)

const tokenKeyPrefix = "auth:token:"

// Store keeps issued bearer tokens in Redis with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a Store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Issue creates an opaque token for the identity.
func (s *Store) Issue(ctx context.Context, id Identity) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	payload, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, tokenKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("identity: store token: %w", err)
	}
	return token, nil
}

// Resolve looks a token up and refreshes its TTL.
func (s *Store) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenUnknown
	}
	raw, err := s.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Identity{}, ErrTokenUnknown
	}
	if err != nil {
		return Identity{}, fmt.Errorf("identity: resolve token: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return Identity{}, fmt.Errorf("identity: decode token payload: %w", err)
	}
	_ = s.client.Expire(ctx, tokenKeyPrefix+token, s.ttl).Err()
	return id, nil
}

// Revoke discards a token.
func (s *Store) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKeyPrefix+token).Err()
}

// Service authenticates credentials against the users table and issues
// tokens through the Store.
type Service struct {
	pool  *pgxpool.Pool
	store *Store
}

// NewService builds Service.
func NewService(pool *pgxpool.Pool, store *Store) *Service {
	return &Service{pool: pool, store: store}
}

// Login verifies email/password and returns a bearer token plus the
// resolved identity.
func (s *Service) Login(ctx context.Context, email, password string) (string, Identity, error) {
	var (
		id     Identity
		hashed string
		bankID *int64
	)
	err := s.pool.QueryRow(ctx, `SELECT id, name, password_hash, role, user_type, bank_id
FROM users WHERE email = $1`, email).
		Scan(&id.UserID, &id.Name, &hashed, &id.Role, &id.UserType, &bankID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", Identity{}, fmt.Errorf("identity: lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return "", Identity{}, ErrInvalidCredentials
	}
	if bankID != nil {
		id.BankID = *bankID
	}
	token, err := s.store.Issue(ctx, id)
	if err != nil {
		return "", Identity{}, err
	}
	return token, id, nil
}

// Logout revokes the token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.Revoke(ctx, token)
}

type contextKey struct{}

// ContextWith attaches the identity to the context.
func ContextWith(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached by the middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
