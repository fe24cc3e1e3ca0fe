package loyaltyapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/loyalty"
)

func newBalanceServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loyalty/balance" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer customer-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Balance(t *testing.T) {
	srv := newBalanceServer(t, http.StatusOK,
		`{"currentBalance":1200,"tier":"Gold","tierMultiplier":1.5,"tierFreeShip":true,"nextTier":"Diamond"}`)
	c := NewClient(srv.URL+"/", auth.ContextTokens{}, Options{})

	ctx := auth.WithBearer(context.Background(), "customer-token")
	b, err := c.Balance(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1200), b.CurrentBalance)
	assert.Equal(t, loyalty.TierGold, b.Tier)
	assert.True(t, decimal.RequireFromString("1.5").Equal(b.TierMultiplier))
	assert.True(t, b.TierFreeShip)
}

func TestClient_Balance_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		c := NewClient("", auth.StaticToken("customer-token"), Options{})
		_, err := c.Balance(context.Background())
		require.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("no token", func(t *testing.T) {
		srv := newBalanceServer(t, http.StatusOK, `{}`)
		c := NewClient(srv.URL, auth.ContextTokens{}, Options{})
		_, err := c.Balance(context.Background())
		require.ErrorIs(t, err, auth.ErrNoToken)
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := newBalanceServer(t, http.StatusOK, `{}`)
		c := NewClient(srv.URL, auth.StaticToken("wrong"), Options{})
		_, err := c.Balance(context.Background())

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	})

	t.Run("server error", func(t *testing.T) {
		srv := newBalanceServer(t, http.StatusBadGateway, `upstream down`)
		c := NewClient(srv.URL, auth.StaticToken("customer-token"), Options{})
		_, err := c.Balance(context.Background())

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, "upstream down", statusErr.Body)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := newBalanceServer(t, http.StatusOK, `{"currentBalance":"lots"}`)
		c := NewClient(srv.URL, auth.StaticToken("customer-token"), Options{})
		_, err := c.Balance(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode balance")
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		t.Cleanup(srv.Close)

		c := NewClient(srv.URL, auth.StaticToken("customer-token"), Options{Timeout: 20 * time.Millisecond})
		_, err := c.Balance(context.Background())
		require.Error(t, err)
	})
}

func TestDecodeBalance(t *testing.T) {
	tests := []struct {
		name string
		body string
		want loyalty.Balance
	}{
		{
			name: "minimal",
			body: `{"currentBalance":50}`,
			want: loyalty.Balance{CurrentBalance: 50, Tier: loyalty.TierBronze, TierMultiplier: decimal.NewFromInt(1)},
		},
		{
			name: "nulls",
			body: `{"currentBalance":0,"tier":null,"tierMultiplier":null,"tierFreeShip":null}`,
			want: loyalty.Balance{TierMultiplier: decimal.NewFromInt(1)},
		},
		{
			name: "negative balance",
			body: `{"currentBalance":-10,"tier":"diamond"}`,
			want: loyalty.Balance{Tier: loyalty.TierDiamond, TierMultiplier: decimal.NewFromInt(1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBalance([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want.CurrentBalance, got.CurrentBalance)
			assert.Equal(t, tt.want.Tier, got.Tier)
			assert.Equal(t, tt.want.TierFreeShip, got.TierFreeShip)
			assert.True(t, tt.want.TierMultiplier.Equal(got.TierMultiplier))
		})
	}
}
