package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/loyalty"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/domain/voucher"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/checkout"

// Deps are the collaborators of a Service.
type Deps struct {
	Products product.Repository
	Vouchers voucher.Validator
	Orders   order.Repository
	// Balances may be nil, in which case loyalty is always unavailable.
	Balances loyalty.BalanceSource
	Fees     shipping.FeeSource
}

// Config tunes a Service. Zero values select defaults.
type Config struct {
	Calculator     *loyalty.Calculator
	Policy         shipping.Policy
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// QuoteRequest asks for the checkout summary of a cart.
type QuoteRequest struct {
	Store  *cart.Store
	Points int64
	// UseAll redeems the whole balance and ignores Points.
	UseAll bool
}

// Quote is a read-only checkout summary.
type Quote struct {
	Summary    Summary
	Redemption loyalty.Redemption
	// Balance is nil when LoyaltyAvailable is false.
	Balance          *loyalty.Balance
	LoyaltyAvailable bool
	// VoucherCode is the cart's voucher, empty when there is none.
	VoucherCode string
	// VoucherError is set when the cart's voucher no longer applies to the
	// cart; the summary then carries no voucher discount.
	VoucherError error
}

// PlaceOrderRequest places an order from a cart.
type PlaceOrderRequest struct {
	Store  *cart.Store
	Points int64
}

// Service runs quoting and order placement.
type Service struct {
	products product.Repository
	vouchers voucher.Validator
	orders   order.Repository
	balances loyalty.BalanceSource
	fees     shipping.FeeSource

	calc *loyalty.Calculator
	agg  Aggregator
	now  func() time.Time

	tracer        trace.Tracer
	quoteCount    metric.Int64Counter
	orderCount    metric.Int64Counter
	orderFailures metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Fees == nil {
		deps.Fees = shipping.NewFlatFee(decimal.NewFromInt(shipping.DefaultFee))
	}
	if cfg.Calculator == nil {
		cfg.Calculator = loyalty.NewCalculator(0)
	}
	if !cfg.Policy.Threshold.IsPositive() {
		cfg.Policy = shipping.DefaultPolicy()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}

	s := &Service{
		products: deps.Products,
		vouchers: deps.Vouchers,
		orders:   deps.Orders,
		balances: deps.Balances,
		fees:     deps.Fees,
		calc:     cfg.Calculator,
		agg:      Aggregator{Policy: cfg.Policy},
		now:      time.Now,
		tracer:   cfg.TracerProvider.Tracer(instrumentationName),
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	var err error
	if s.quoteCount, err = meter.Int64Counter("storefront.checkout.quotes",
		metric.WithDescription("Checkout quotes computed"),
	); err != nil {
		return nil, errors.Wrap(err, "quote counter")
	}
	if s.orderCount, err = meter.Int64Counter("storefront.checkout.orders",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "order counter")
	}
	if s.orderFailures, err = meter.Int64Counter("storefront.checkout.order_failures",
		metric.WithDescription("Rejected or failed order placements"),
	); err != nil {
		return nil, errors.Wrap(err, "order failure counter")
	}
	return s, nil
}

// Quote computes the summary for a cart and a requested point amount.
// The balance and the shipping fee are fetched concurrently. A failed
// balance fetch only disables the loyalty discount. The cart's voucher is
// re-checked against the current lines so the quoted total matches the
// order PlaceOrder would create.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (_ *Quote, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Quote")
	defer func() {
		recordSpan(span, rerr)
		span.End()
	}()

	balance, fee, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	var voucherErr error
	discount, err := s.checkVoucher(ctx, req.Store)
	if isVoucherError(err) {
		voucherErr, err = err, nil
		discount = decimal.NewFromInt(0)
	}
	if err != nil {
		return nil, err
	}

	q := s.quote(req, balance, fee, discount)
	q.VoucherCode = req.Store.VoucherCode()
	q.VoucherError = voucherErr
	span.SetAttributes(
		attribute.Bool("loyalty.available", q.LoyaltyAvailable),
		attribute.Int64("loyalty.points", q.Redemption.AppliedPoints),
	)
	s.quoteCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("loyalty.available", q.LoyaltyAvailable)))
	return q, nil
}

// PlaceOrder re-prices the cart from the catalog, redeems its voucher,
// persists the order and clears the cart.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *order.Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder")
	defer func() {
		recordSpan(span, rerr)
		if rerr != nil {
			s.orderFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(rerr))))
		}
		span.End()
	}()

	store := req.Store
	if store.Empty() {
		return nil, ErrEmptyCart
	}

	if err := s.refresh(ctx, store); err != nil {
		return nil, err
	}

	balance, fee, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if req.Points > 0 && !loyalty.Available(balance) {
		return nil, ErrLoyaltyUnavailable
	}

	items := store.Items()
	voucherCode := store.VoucherCode()
	voucherDiscount := decimal.NewFromInt(0)
	if voucherCode != "" {
		d, err := s.vouchers.Redeem(ctx, voucherCode, voucherItems(items))
		if err != nil {
			return nil, errors.Wrap(err, "redeem voucher")
		}
		voucherCode = d.Code
		voucherDiscount = d.Amount
	}

	redemption := s.calc.Redeem(req.Points, balance)
	summary := s.agg.Aggregate(Input{
		Subtotal:        store.Subtotal(),
		VoucherDiscount: voucherDiscount,
		LoyaltyDiscount: redemption.Discount,
		ShippingFee:     fee,
		TierFreeShip:    balance != nil && balance.TierFreeShip,
	})

	o := &order.Order{
		ID:              uuid.New().String(),
		Items:           orderItems(items),
		Subtotal:        summary.Subtotal,
		VoucherCode:     voucherCode,
		VoucherDiscount: summary.VoucherDiscount,
		PointsRedeemed:  redemption.AppliedPoints,
		LoyaltyDiscount: summary.LoyaltyDiscount,
		ShippingFee:     summary.ShippingFee,
		Total:           summary.Total,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if voucherCode != "" {
			s.release(ctx, voucherCode)
		}
		return nil, errors.Wrap(err, "create order")
	}

	store.Clear(ctx)

	span.SetAttributes(attribute.String("order.id", o.ID))
	s.orderCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("voucher", voucherCode != "")))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("cart_id", store.ID()),
		zap.String("total", o.Total.String()),
	)
	return o, nil
}

// checkVoucher recomputes the cart's voucher discount against its current
// lines, as PlaceOrder will. Voucher rejections are returned unwrapped.
func (s *Service) checkVoucher(ctx context.Context, store *cart.Store) (decimal.Decimal, error) {
	code := store.VoucherCode()
	if code == "" || s.vouchers == nil {
		return store.VoucherDiscount(), nil
	}

	d, err := s.vouchers.Check(ctx, code, voucherItems(store.Items()))
	if err != nil {
		if isVoucherError(err) {
			return decimal.Decimal{}, err
		}
		return decimal.Decimal{}, errors.Wrap(err, "check voucher")
	}
	return d.Amount, nil
}

func (s *Service) quote(req QuoteRequest, balance *loyalty.Balance, fee, voucherDiscount decimal.Decimal) *Quote {
	redemption := s.calc.Redeem(req.Points, balance)
	if req.UseAll {
		redemption = s.calc.UseAll(balance)
	}
	summary := s.agg.Aggregate(Input{
		Subtotal:        req.Store.Subtotal(),
		VoucherDiscount: voucherDiscount,
		LoyaltyDiscount: redemption.Discount,
		ShippingFee:     fee,
		TierFreeShip:    balance != nil && balance.TierFreeShip,
	})

	available := loyalty.Available(balance)
	if !available {
		balance = nil
	}
	return &Quote{
		Summary:          summary,
		Redemption:       redemption,
		Balance:          balance,
		LoyaltyAvailable: available,
	}
}

// release gives back the voucher use taken for an order that was not stored.
func (s *Service) release(ctx context.Context, code string) {
	if err := s.vouchers.Release(ctx, code); err != nil {
		zctx.From(ctx).Error("Voucher use not released",
			zap.String("voucher", code),
			zap.Error(err),
		)
	}
}

// fetch loads the loyalty balance and the shipping fee concurrently.
// The returned balance is nil when loyalty is unavailable.
func (s *Service) fetch(ctx context.Context) (*loyalty.Balance, decimal.Decimal, error) {
	var (
		balance *loyalty.Balance
		fee     decimal.Decimal
	)

	g, gctx := errgroup.WithContext(ctx)
	if s.balances != nil {
		g.Go(func() error {
			b, err := s.balances.Balance(gctx)
			if err != nil {
				zctx.From(ctx).Warn("Loyalty balance unavailable", zap.Error(err))
				return nil
			}
			balance = b
			return nil
		})
	}
	g.Go(func() error {
		f, err := s.fees.Fee(gctx)
		if err != nil {
			return errors.Wrap(err, "shipping fee")
		}
		fee = f
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, decimal.Decimal{}, err
	}
	return balance, fee, nil
}

// refresh re-reads every cart line from the catalog and updates its price.
func (s *Service) refresh(ctx context.Context, store *cart.Store) error {
	items := store.Items()

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: it.ProductID, VariantID: it.VariantID}
		}
		offer, ok := p.Offer(it.VariantID)
		if !ok {
			return &ProductNotFoundError{ProductID: it.ProductID, VariantID: it.VariantID}
		}
		if offer.Stock < it.Quantity {
			return &InsufficientStockError{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Requested: it.Quantity,
				Available: offer.Stock,
			}
		}
		store.RefreshPrice(ctx, it.ProductID, it.VariantID, offer.Price, offer.Stock)
	}
	return nil
}

func voucherItems(items []cart.LineItem) []voucher.Item {
	out := make([]voucher.Item, len(items))
	for i, it := range items {
		out[i] = voucher.Item{
			ProductID: it.ProductID,
			Price:     it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	return out
}

func orderItems(items []cart.LineItem) []order.Item {
	out := make([]order.Item, len(items))
	for i, it := range items {
		out[i] = order.Item{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			Name:        it.Name,
			VariantName: it.VariantName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		}
	}
	return out
}

func recordSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func failureReason(err error) string {
	var (
		notFound *ProductNotFoundError
		stock    *InsufficientStockError
	)
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrLoyaltyUnavailable):
		return "loyalty_unavailable"
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &stock):
		return "insufficient_stock"
	case isVoucherError(err):
		return "voucher"
	default:
		return "internal"
	}
}

func isVoucherError(err error) bool {
	return errors.Is(err, voucher.ErrInvalidVoucher) ||
		errors.Is(err, voucher.ErrVoucherExpired) ||
		errors.Is(err, voucher.ErrUsageLimitReached)
}
