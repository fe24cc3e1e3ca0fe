// Command voucher-ingest imports partner campaign voucher codes from
// gzipped files (one code per line). A code is imported only when enough
// of the files carry it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/voucher"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type options struct {
	DatabaseURL string
	DataDir     string
	Files       []string
	Scan        scanConfig
	BatchSize   int
	Default     voucher.Rule
	DryRun      bool
}

func parseFlags(args []string) (options, error) {
	var (
		opts         options
		defaultType  string
		defaultValue int64
		defaultCap   int64
	)

	fs := flag.NewFlagSet("voucher-ingest", flag.ContinueOnError)
	fs.StringVar(&opts.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	fs.StringVar(&opts.DataDir, "data-dir", "data", "directory searched for *.gz files when no files are given")
	fs.IntVar(&opts.Scan.MinFiles, "min-files", 2, "number of files a code must appear in")
	fs.IntVar(&opts.Scan.MinLen, "min-len", 8, "minimum code length")
	fs.IntVar(&opts.Scan.MaxLen, "max-len", 10, "maximum code length")
	fs.UintVar(&opts.Scan.BloomCapacity, "bloom-capacity", 10_000_000, "expected codes per file")
	fs.Float64Var(&opts.Scan.BloomFPR, "bloom-fpr", 0.001, "bloom filter false positive rate")
	fs.Uint64Var(&opts.Scan.ProgressEvery, "progress-every", 10_000_000, "log progress every N codes")
	fs.IntVar(&opts.BatchSize, "batch-size", 1000, "vouchers per database batch")
	fs.StringVar(&defaultType, "default-type", string(voucher.DiscountPercentage), "discount type for codes without a preset prefix")
	fs.Int64Var(&defaultValue, "default-value", 10, "discount value (percent or VND) for codes without a preset prefix")
	fs.Int64Var(&defaultCap, "default-max-discount", 50000, "VND cap of percentage discounts, 0 for none")
	fs.IntVar(&opts.Default.MinItems, "default-min-items", 0, "minimum items for codes without a preset prefix")
	fs.StringVar(&opts.Default.Description, "default-description", "Mã khuyến mãi đối tác", "description for codes without a preset prefix")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "find codes without writing them")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch t := voucher.DiscountType(defaultType); t {
	case voucher.DiscountPercentage, voucher.DiscountFixed, voucher.DiscountFreeLowest:
		opts.Default.DiscountType = t
	default:
		return opts, errors.Errorf("unknown discount type %q", defaultType)
	}
	if defaultValue < 0 || defaultCap < 0 {
		return opts, errors.New("default value and max discount must not be negative")
	}
	opts.Default.Value = decimal.NewFromInt(defaultValue)
	opts.Default.MaxDiscount = decimal.NewFromInt(defaultCap)

	opts.Files = fs.Args()
	if len(opts.Files) == 0 {
		matches, err := filepath.Glob(filepath.Join(opts.DataDir, "*.gz"))
		if err != nil {
			return opts, errors.Wrap(err, "glob data dir")
		}
		sort.Strings(matches)
		opts.Files = matches
	}
	if opts.DatabaseURL == "" {
		opts.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.DatabaseURL == "" && !opts.DryRun {
		return opts, errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	return opts, nil
}

func main() {
	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		lg.Fatal("Invalid arguments", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	if err := run(ctx, opts); err != nil {
		lg.Fatal("Voucher ingest failed", zap.Error(err))
	}
	lg.Info("Voucher ingest completed")
}

func run(ctx context.Context, opts options) error {
	lg := zctx.From(ctx)
	for _, f := range opts.Files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	codes, err := findCodes(ctx, opts.Files, opts.Scan)
	if err != nil {
		return errors.Wrap(err, "find codes")
	}
	lg.Info("Codes confirmed", zap.Int("count", len(codes)))
	if len(codes) == 0 || opts.DryRun {
		return nil
	}

	pool, err := postgres.NewPool(ctx, opts.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewVoucherRepository(pool)
	if err := writeVouchers(ctx, repo, codes, opts.Default, opts.BatchSize); err != nil {
		return errors.Wrap(err, "write vouchers")
	}
	return nil
}
