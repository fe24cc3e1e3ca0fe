package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/loyalty"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/domain/voucher"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/loyaltyapi"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// loyaltyTokens picks where balance lookups get their bearer token from.
func loyaltyTokens(cfg LoyaltyConfig) auth.TokenProvider {
	if cfg.ServiceToken != "" {
		return auth.StaticToken(cfg.ServiceToken)
	}
	return auth.ContextTokens{}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))
	if cfg.APIKeyPepper == "" {
		lg.Warn("API key pepper is empty, order placement keys are hashed without a secret")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	voucherRepo := postgres.NewVoucherRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Loyalty Balance API, authenticated with the shopper's own token.
	var balances loyalty.BalanceSource
	var loyaltyClient *loyaltyapi.Client
	if cfg.Loyalty.BaseURL != "" {
		loyaltyClient = loyaltyapi.NewClient(cfg.Loyalty.BaseURL, loyaltyTokens(cfg.Loyalty), loyaltyapi.Options{
			Timeout:        cfg.Loyalty.Timeout,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		})
		balances = loyaltyClient
	} else {
		lg.Info("Loyalty API not configured, point redemption disabled")
	}

	policy := shipping.NewPolicy(decimal.NewFromInt(cfg.Shipping.FreeThreshold))
	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Products: productRepo,
		Vouchers: voucher.NewRepoValidator(voucherRepo),
		Orders:   orderRepo,
		Balances: balances,
		Fees:     shipping.NewFlatFee(decimal.NewFromInt(cfg.Shipping.Fee)),
	}, checkout.Config{
		Calculator:     loyalty.NewCalculator(cfg.Loyalty.MinRedeemPoints),
		Policy:         policy,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	// Health checks.
	healthSvc := health.New()
	healthSvc.Register(health.Readiness, health.Check{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(pool),
	})
	if cfg.Loyalty.BaseURL != "" && cfg.Loyalty.HealthPath != "" {
		healthSvc.Register(health.Readiness, health.Check{
			Name:             "loyalty",
			Timeout:          cfg.Loyalty.Timeout,
			Func:             health.HTTPCheck(nil, cfg.Loyalty.BaseURL+cfg.Loyalty.HealthPath),
			FailureThreshold: 5,
		})
	}
	healthSvc.Register(health.Liveness, health.Check{
		Name: "goroutines",
		Func: health.GoroutineCountCheck(10000),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		Policy:       policy,
	}, handler.Deps{
		Products: productRepo,
		Carts:    cartRepo,
		Vouchers: voucher.NewRepoValidator(voucherRepo),
		Checkout: checkoutSvc,
		Keys:     handler.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "X-RateLimit-Remaining", "X-RateLimit-Reset"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening",
		zap.String("addr", cfg.Addr),
		zap.Bool("loyalty", loyaltyClient != nil),
		zap.String("free_shipping_threshold", policy.Threshold.String()),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
