package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

// APIKeyHeader carries the partner API key.
const APIKeyHeader = "api_key"

// ScopePlaceOrder is required to place orders.
const ScopePlaceOrder = "orders:write"

// Authenticator checks API keys stored as HMAC-SHA256 hashes.
type Authenticator struct {
	keys   auth.Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given HMAC pepper.
func NewAuthenticator(keys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// Authenticate resolves key to its stored identity. Every failure is
// reported as errUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.HashKey(a.pepper, key)

	info, err := a.keys.FindByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, auth.ErrKeyNotFound) {
			zctx.From(ctx).Warn("API key lookup failed", zap.Error(err))
		}
		return nil, errUnauthorized
	}

	// The row must carry exactly the hash we computed.
	want, _ := hex.DecodeString(hash)
	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(want, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

type apiKeyCtx struct{}

// APIKeyFrom returns the key authenticated by Require.
func APIKeyFrom(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyCtx{}).(*auth.APIKeyInfo)
	return info, ok
}

// Require rejects requests without a valid API key granting scope.
func (a *Authenticator) Require(scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		info, err := a.Authenticate(ctx, r.Header.Get(APIKeyHeader))
		if err == nil && !info.HasScope(scope) {
			err = errUnauthorized
		}
		if err != nil {
			fail(w, r, err)
			return
		}

		ctx = context.WithValue(ctx, apiKeyCtx{}, info)
		ctx = zctx.With(ctx, zap.String("api_key", info.Name))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
