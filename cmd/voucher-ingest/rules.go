package main

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/voucher"
)

// presetRules maps campaign code prefixes to the rule their codes grant.
var presetRules = map[string]voucher.Rule{
	"FREESHIP": {DiscountType: voucher.DiscountFixed, Value: decimal.NewFromInt(30000), Description: "Miễn phí vận chuyển (giảm 30.000 ₫)"},
	"GIAM50K":  {DiscountType: voucher.DiscountFixed, Value: decimal.NewFromInt(50000), Description: "Giảm 50.000 ₫"},
	"GIAM100K": {DiscountType: voucher.DiscountFixed, Value: decimal.NewFromInt(100000), Description: "Giảm 100.000 ₫"},
	"TET":      {DiscountType: voucher.DiscountPercentage, Value: decimal.NewFromInt(15), MaxDiscount: decimal.NewFromInt(150000), Description: "Tết: giảm 15%, tối đa 150.000 ₫"},
	"VIP":      {DiscountType: voucher.DiscountPercentage, Value: decimal.NewFromInt(20), MaxDiscount: decimal.NewFromInt(200000), Description: "Khách VIP: giảm 20%, tối đa 200.000 ₫"},
	"MUA3":     {DiscountType: voucher.DiscountFreeLowest, Value: decimal.NewFromInt(0), MinItems: 3, Description: "Mua 3 tặng sản phẩm rẻ nhất"},
}

// presetPrefixes lists presetRules keys, longest first, so that the most
// specific prefix wins.
var presetPrefixes = func() []string {
	out := make([]string, 0, len(presetRules))
	for p := range presetRules {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// ruleFor returns the rule for code: its preset when the prefix is known,
// otherwise fallback.
func ruleFor(code string, fallback voucher.Rule) voucher.Rule {
	rule := fallback
	for _, prefix := range presetPrefixes {
		if strings.HasPrefix(code, prefix) {
			rule = presetRules[prefix]
			break
		}
	}
	rule.Code = code
	return rule
}

type voucherUpserter interface {
	Upsert(ctx context.Context, rules []voucher.Rule) error
}

// writeVouchers upserts the rules for codes in batches of batchSize.
func writeVouchers(ctx context.Context, repo voucherUpserter, codes []string, fallback voucher.Rule, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	lg := zctx.From(ctx)
	lg.Info("Writing vouchers", zap.Int("count", len(codes)), zap.Int("batch_size", batchSize))

	batch := make([]voucher.Rule, 0, min(batchSize, len(codes)))
	written := 0
	for i, code := range codes {
		batch = append(batch, ruleFor(code, fallback))
		if len(batch) < batchSize && i+1 < len(codes) {
			continue
		}
		if err := repo.Upsert(ctx, batch); err != nil {
			return errors.Wrapf(err, "upsert batch at %d", written)
		}
		written += len(batch)
		batch = batch[:0]
		lg.Info("Write progress", zap.Int("written", written), zap.Int("total", len(codes)))
	}
	return nil
}
