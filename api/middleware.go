package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/disaster-intake-api/databases"
)

// TokenTTL is how long a minted bearer token is valid
const TokenTTL = 12 * time.Hour

const tokenIssuer = "disaster-intake-api"

var (
	errTokenRevoked = errors.New("token revoked")
	errInactive     = errors.New("responder is not active")
)

// MiddlewareDB authenticates responders against the responders collection.
// Basic auth is only accepted by the token endpoint; everything else takes
// the signed bearer token it returns.
type MiddlewareDB struct {
	DB     databases.ResponderDatabase
	Secret []byte

	authenticator auth.Authenticator
	cache         store.Cache
	now           func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewMiddlewareDB returns an authenticator signing tokens with secret. An
// empty secret gets a random one, so tokens do not survive a restart.
func NewMiddlewareDB(db databases.ResponderDatabase, secret string) *MiddlewareDB {
	if secret == "" {
		zap.S().Warn("JWT_SECRET is not set, using a random signing key")
		secret = uuid.NewString() + uuid.NewString()
	}
	m := &MiddlewareDB{
		DB:      db,
		Secret:  []byte(secret),
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
	m.SetupGoGuardian()
	return m
}

// SetupGoGuardian sets up the go-guardian strategies
func (m *MiddlewareDB) SetupGoGuardian() {
	m.authenticator = auth.New()
	m.cache = store.NewFIFO(context.Background(), TokenTTL)
	basicStrategy := basic.New(m.ValidateUser, m.cache)
	tokenStrategy := bearer.New(m.ValidateToken, m.cache)

	m.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	m.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// Middleware requires a valid bearer token and records the responder as the
// request's actor
func (m *MiddlewareDB) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w, r)
			return
		}
		if m.isRevoked(token) {
			unauthorized(w, r)
			return
		}
		user, err := m.authenticator.Strategy(bearer.CachedStrategyKey).Authenticate(r.Context(), r)
		if err != nil {
			unauthorized(w, r)
			return
		}
		zap.S().Debugw("responder authenticated", "responder_id", user.ID())
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), user.ID())))
	})
}

// CreateToken exchanges basic credentials for a bearer token
func (m *MiddlewareDB) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, _, ok := r.BasicAuth(); !ok {
		unauthorized(w, r)
		return
	}
	user, err := m.authenticator.Strategy(basic.StrategyKey).Authenticate(r.Context(), r)
	if err != nil {
		unauthorized(w, r)
		return
	}

	now := m.now()
	expires := now.Add(TokenTTL)
	claims := tokenClaims{
		Email: user.UserName(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   user.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if names := user.Extensions()["name"]; len(names) > 0 {
		claims.Name = names[0]
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		http.Error(w, "failed to sign token", http.StatusInternalServerError)
		return
	}

	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, token, user, r); err != nil {
		zap.S().Errorw("failed to cache token", "error", err)
	}

	response := map[string]string{
		"token":      token,
		"_id":        user.ID(),
		"expires_at": expires.UTC().Format(time.RFC3339),
	}
	responseBody, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(responseBody)
}

// RevokeToken revokes the request's bearer token
func (m *MiddlewareDB) RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	token, ok := bearerToken(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	expires := m.now().Add(TokenTTL)
	if claims, err := m.parse(token); err == nil && claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	m.mu.Lock()
	for t, exp := range m.revoked {
		if m.now().After(exp) {
			delete(m.revoked, t)
		}
	}
	m.revoked[token] = expires
	m.mu.Unlock()

	tokenStrategy := m.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, token, r); err != nil {
		zap.S().Warnw("failed to drop token from cache", "error", err)
	}
	w.Write([]byte(`{"revoked": true}`))
}

// ValidateUser checks basic credentials against the responders collection
func (m *MiddlewareDB) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	usernameHash := sha256.Sum256([]byte(email))

	responder, err := m.DB.FindOne(ctx, bson.M{"email": email})
	if err != nil {
		return nil, fmt.Errorf("no matching responder found")
	}

	expectedUsernameHash := sha256.Sum256([]byte(strings.ToLower(responder.Email)))
	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

	if err := bcrypt.CompareHashAndPassword([]byte(responder.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}
	if !usernameMatch {
		return nil, fmt.Errorf("invalid credentials")
	}
	if !responder.Active {
		return nil, errInactive
	}
	return auth.NewDefaultUser(responder.Email, responder.ID, nil, map[string][]string{"name": {responder.Name}}), nil
}

// ValidateToken verifies a bearer token minted by CreateToken. It is consulted
// when the token is not cached, e.g. after a restart with the same secret.
func (m *MiddlewareDB) ValidateToken(_ context.Context, _ *http.Request, token string) (auth.Info, error) {
	if m.isRevoked(token) {
		return nil, errTokenRevoked
	}
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	ext := map[string][]string{}
	if claims.Name != "" {
		ext["name"] = []string{claims.Name}
	}
	return auth.NewDefaultUser(claims.Email, claims.Subject, nil, ext), nil
}

func (m *MiddlewareDB) parse(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

func (m *MiddlewareDB) isRevoked(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[token]
	return ok
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	zap.S().Warnw("unauthorized", "url", r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error": "unauthorized"}`))
}
