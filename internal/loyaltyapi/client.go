// Package loyaltyapi is a client of the loyalty service balance endpoint.
package loyaltyapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/loyalty"
)

const (
	balancePath     = "/loyalty/balance"
	maxResponseSize = 64 << 10
	defaultTimeout  = 5 * time.Second
)

// ErrNotConfigured is returned when the client has no base URL.
var ErrNotConfigured = errors.New("loyalty api not configured")

// StatusError is returned for a non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("loyalty api returned %d: %s", e.Code, e.Body)
}

// Options configure a Client.
type Options struct {
	// Timeout bounds a single request. Zero selects 5s.
	Timeout        time.Duration
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client fetches loyalty balances on behalf of the customer whose token
// the TokenProvider yields.
type Client struct {
	baseURL    string
	tokens     auth.TokenProvider
	httpClient *http.Client
}

var _ loyalty.BalanceSource = (*Client)(nil)

// NewClient creates a loyalty API client.
func NewClient(baseURL string, tokens auth.TokenProvider, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	var transportOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		transportOpts = append(transportOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(base, transportOpts...),
		},
	}
}

// Balance implements loyalty.BalanceSource.
func (c *Client) Balance(ctx context.Context) (*loyalty.Balance, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+balancePath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zctx.From(ctx).Warn("Loyalty balance request failed", zap.Error(err))
		return nil, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	b, err := DecodeBalance(body)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeBalance parses a balance response body. Unknown fields are ignored.
// A negative balance is reported as zero.
func DecodeBalance(data []byte) (*loyalty.Balance, error) {
	b := &loyalty.Balance{TierMultiplier: decimal.NewFromInt(1)}
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "currentBalance":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.CurrentBalance = max(v, 0)
		case "tier":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.Tier = loyalty.ParseTier(v)
		case "tierMultiplier":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Float64()
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.TierMultiplier = decimal.NewFromFloat(v)
		case "tierFreeShip":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Bool()
			if err != nil {
				return errors.Wrap(err, key)
			}
			b.TierFreeShip = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode balance")
	}
	return b, nil
}
