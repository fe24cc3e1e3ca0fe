package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"bearer abc123", "abc123", true},
		{"  Bearer   abc123  ", "abc123", true},
		{"Basic abc123", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := ParseBearer(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextTokens(t *testing.T) {
	_, err := ContextTokens{}.Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)

	ctx := WithBearer(context.Background(), "tok")
	got, err := ContextTokens{}.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	_, err = ContextTokens{}.Token(WithBearer(context.Background(), ""))
	require.ErrorIs(t, err, ErrNoToken)
}

func TestStaticToken(t *testing.T) {
	got, err := StaticToken("svc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "svc", got)

	_, err = StaticToken("").Token(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
}
