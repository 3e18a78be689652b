package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quickgig/backend/internal/database"
)

// ============================================================================
// API KEY AUTHENTICATION
// ============================================================================

type contextKey string

const (
	ctxKeyID          contextKey = "api_key_id"
	ctxClientAddress  contextKey = "client_address"
	apiKeyPrefix                 = "qg_"
)

// keyStore is the lookup surface the authenticator needs.
type keyStore interface {
	GetAPIKey(ctx context.Context, keyID string) (*database.APIKeyRecord, error)
	CreateAPIKey(ctx context.Context, key *database.APIKeyRecord) error
}

// APIKeyAuth validates qg_<key_id>.<secret> keys against the api_keys table.
type APIKeyAuth struct {
	store  keyStore
	logger *log.Logger
}

// NewAPIKeyAuth creates the authenticator.
func NewAPIKeyAuth(store keyStore) *APIKeyAuth {
	return &APIKeyAuth{
		store:  store,
		logger: log.New(log.Writer(), "[AUTH] ", log.LstdFlags),
	}
}

// CreateKey mints a new API key for a client wallet. The full key is returned
// exactly once; only the bcrypt hash of the secret is persisted.
func (a *APIKeyAuth) CreateKey(ctx context.Context, clientAddress, name string) (*database.APIKeyRecord, string, error) {
	idBytes := make([]byte, 8)
	rand.Read(idBytes)
	keyID := hex.EncodeToString(idBytes) // 16 chars

	secretBytes := make([]byte, 24)
	rand.Read(secretBytes)
	secret := hex.EncodeToString(secretBytes) // 48 chars

	fullKey := fmt.Sprintf("%s%s.%s", apiKeyPrefix, keyID, secret)

	// Hash ONLY the secret part. The ID is used for lookup.
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	record := &database.APIKeyRecord{
		KeyID:         keyID,
		ClientAddress: clientAddress,
		Name:          name,
		KeyHash:       string(secretHash),
		IsActive:      true,
	}

	if err := a.store.CreateAPIKey(ctx, record); err != nil {
		return nil, "", err
	}

	return record, fullKey, nil
}

// Validate checks a full key and returns its record.
// Key format: qg_<key_id>.<secret>
func (a *APIKeyAuth) Validate(ctx context.Context, fullKey string) (*database.APIKeyRecord, error) {
	if !strings.HasPrefix(fullKey, apiKeyPrefix) {
		return nil, errors.New("invalid key format")
	}
	parts := strings.Split(strings.TrimPrefix(fullKey, apiKeyPrefix), ".")
	if len(parts) != 2 {
		return nil, errors.New("invalid key format")
	}

	keyID := parts[0]
	secret := parts[1]

	record, err := a.store.GetAPIKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("lookup failed: %w", err)
	}
	if record == nil {
		return nil, errors.New("invalid api key")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.KeyHash), []byte(secret)); err != nil {
		return nil, errors.New("invalid api key secret")
	}

	if !record.IsActive {
		return nil, errors.New("api key inactive")
	}
	if record.ExpiresAt != nil && time.Now().After(*record.ExpiresAt) {
		return nil, errors.New("api key expired")
	}

	return record, nil
}

// Middleware requires a valid API key on every request it wraps. The key is
// taken from Authorization: Bearer or the X-API-Key header.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fullKey := extractKey(r)
		if fullKey == "" {
			unauthorized(w, "missing api key")
			return
		}

		record, err := a.Validate(r.Context(), fullKey)
		if err != nil {
			a.logger.Printf("🚫 Rejected API key: %v", err)
			unauthorized(w, "invalid api key")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyID, record.KeyID)
		ctx = context.WithValue(ctx, ctxClientAddress, record.ClientAddress)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

// keyIDFromRequest parses the key id out of a presented API key without
// validating the secret. The rate limiter runs before auth, so it buckets on
// the claimed id; auth still rejects forged keys on the routes that need it.
func keyIDFromRequest(r *http.Request) string {
	fullKey := extractKey(r)
	if !strings.HasPrefix(fullKey, apiKeyPrefix) {
		return ""
	}
	keyID, _, found := strings.Cut(strings.TrimPrefix(fullKey, apiKeyPrefix), ".")
	if !found || keyID == "" {
		return ""
	}
	return keyID
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}

// KeyIDFromContext returns the authenticated key id, or "" when the request
// was not authenticated.
func KeyIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyID).(string)
	return id
}

// ClientAddressFromContext returns the wallet address the key belongs to.
func ClientAddressFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(ctxClientAddress).(string)
	return addr
}
