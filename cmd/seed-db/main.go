// Command seed-db applies the schema and loads the demo catalog, vouchers
// and a partner API key.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/voucher"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "", "path to a catalog JSON file (defaults to the embedded demo catalog)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if apiKey == "" {
		lg.Fatal("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	lg := zctx.From(ctx)
	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := loadCatalog(catalogFile)
	if err != nil {
		return err
	}
	if err := seedProducts(ctx, postgres.NewProductRepository(pool), products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedVouchers(ctx, postgres.NewVoucherRepository(pool), time.Now()); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func loadCatalog(path string) ([]product.Product, error) {
	data := db.Catalog
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read catalog file")
		}
	}
	return decodeCatalog(data)
}

type productUpserter interface {
	Upsert(ctx context.Context, p product.Product) error
}

func seedProducts(ctx context.Context, repo productUpserter, products []product.Product) error {
	lg := zctx.From(ctx)
	lg.Info("Upserting products", zap.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
		lg.Info("Upserted product",
			zap.String("id", p.ID),
			zap.String("slug", p.Slug),
			zap.Int("variants", len(p.Variants)),
		)
	}
	return nil
}

// demoVouchers returns the vouchers of the demo shop. The launch campaign
// runs for 30 days from now.
func demoVouchers(now time.Time) []voucher.Rule {
	until := now.AddDate(0, 0, 30).UTC()
	return []voucher.Rule{
		{
			Code:         "SALE20K",
			DiscountType: voucher.DiscountFixed,
			Value:        decimal.NewFromInt(20000),
			Description:  "Giảm 20.000 ₫ cho mọi đơn hàng",
		},
		{
			Code:         "GIAM10",
			DiscountType: voucher.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  decimal.NewFromInt(50000),
			Description:  "Giảm 10%, tối đa 50.000 ₫",
		},
		{
			Code:         "MUA2TANG1",
			DiscountType: voucher.DiscountFreeLowest,
			Value:        decimal.NewFromInt(0),
			MinItems:     3,
			Description:  "Mua từ 3 sản phẩm, tặng sản phẩm rẻ nhất",
		},
		{
			Code:         "KHAITRUONG",
			DiscountType: voucher.DiscountPercentage,
			Value:        decimal.NewFromInt(15),
			MaxDiscount:  decimal.NewFromInt(100000),
			Description:  "Khai trương: giảm 15%, tối đa 100.000 ₫",
			ValidUntil:   &until,
			MaxUses:      500,
		},
	}
}

type voucherUpserter interface {
	Upsert(ctx context.Context, rules []voucher.Rule) error
}

func seedVouchers(ctx context.Context, repo voucherUpserter, now time.Time) error {
	rules := demoVouchers(now)
	if err := repo.Upsert(ctx, rules); err != nil {
		return err
	}
	for _, r := range rules {
		zctx.From(ctx).Info("Upserted voucher",
			zap.String("code", r.Code),
			zap.String("description", r.Description),
		)
	}
	return nil
}

type apiKeyUpserter interface {
	Upsert(ctx context.Context, info auth.APIKeyInfo) error
}

func seedAPIKey(ctx context.Context, repo apiKeyUpserter, apiKey, pepper string) error {
	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default partner key",
		Scopes:  []string{handler.ScopePlaceOrder},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return err
	}
	zctx.From(ctx).Info("Upserted API key", zap.String("id", info.ID), zap.String("name", info.Name))
	return nil
}
