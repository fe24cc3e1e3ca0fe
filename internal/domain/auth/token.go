package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNoToken is returned when no customer token is available.
var ErrNoToken = errors.New("no customer token")

// TokenProvider yields the bearer token of the customer bound to ctx.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type bearerKey struct{}

// WithBearer binds a customer bearer token to ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFrom returns the token bound by WithBearer.
func BearerFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ContextTokens reads the token bound to the request context.
type ContextTokens struct{}

var _ TokenProvider = ContextTokens{}

// Token implements TokenProvider.
func (ContextTokens) Token(ctx context.Context) (string, error) {
	token, ok := BearerFrom(ctx)
	if !ok {
		return "", ErrNoToken
	}
	return token, nil
}

// StaticToken always yields the same token.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}
