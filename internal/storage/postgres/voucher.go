package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/voucher"
)

const (
	getVoucherByCodeSQL = `SELECT code, discount_type, value, min_items, description,
		valid_from, valid_until, max_uses, uses, max_discount
		FROM vouchers WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	// The usage guard lives in the WHERE clause so concurrent redemptions
	// of the last use cannot both succeed.
	incrementVoucherUsesSQL = `UPDATE vouchers SET uses = uses + 1
		WHERE UPPER(code) = UPPER($1) AND active = TRUE AND (max_uses = 0 OR uses < max_uses)`

	releaseVoucherUseSQL = `UPDATE vouchers SET uses = uses - 1
		WHERE UPPER(code) = UPPER($1) AND uses > 0`

	upsertVoucherSQL = `INSERT INTO vouchers (code, discount_type, value, min_items, max_discount,
		description, valid_from, valid_until, max_uses, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE)
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value, min_items = EXCLUDED.min_items,
			max_discount = EXCLUDED.max_discount, description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses, active = TRUE`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// FindByCode looks up an active voucher by its code (case-insensitive).
// Returns voucher.ErrInvalidVoucher when no matching active voucher exists.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Rule, error) {
	rows, err := r.pool.Query(ctx, getVoucherByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find voucher %q", code)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanVoucherRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrInvalidVoucher
		}
		return nil, errors.Wrapf(err, "find voucher %q", code)
	}
	return &rule, nil
}

// IncrementUses consumes one use of the voucher. It returns
// voucher.ErrUsageLimitReached when no use is left, including when the
// voucher was deactivated in the meantime.
func (r *VoucherRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, incrementVoucherUsesSQL, code)
	if err != nil {
		return errors.Wrapf(err, "increment uses of voucher %q", code)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrUsageLimitReached
	}
	return nil
}

// ReleaseUse gives back one use of the voucher. Uses never drop below zero.
func (r *VoucherRepository) ReleaseUse(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, releaseVoucherUseSQL, code); err != nil {
		return errors.Wrapf(err, "release use of voucher %q", code)
	}
	return nil
}

// Upsert stores rules in one batch. Existing vouchers keep their use count.
func (r *VoucherRepository) Upsert(ctx context.Context, rules []voucher.Rule) error {
	if len(rules) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rule := range rules {
		batch.Queue(upsertVoucherSQL,
			rule.Code, string(rule.DiscountType), rule.Value, rule.MinItems, rule.MaxDiscount,
			rule.Description, rule.ValidFrom, rule.ValidUntil, rule.MaxUses,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	for _, rule := range rules {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrapf(err, "upsert voucher %q", rule.Code)
		}
	}
	if err := br.Close(); err != nil {
		return errors.Wrap(err, "close batch")
	}
	return nil
}

func scanVoucherRule(row pgx.CollectableRow) (voucher.Rule, error) {
	var (
		rule         voucher.Rule
		discountType string
		value        decimal.Decimal
		minItems     int32
		validFrom    *time.Time
		validUntil   *time.Time
		maxUses      int32
		uses         int32
		maxDiscount  decimal.Decimal
	)
	err := row.Scan(
		&rule.Code, &discountType, &value, &minItems, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses, &maxDiscount,
	)
	rule.DiscountType = voucher.DiscountType(discountType)
	rule.Value = value
	rule.MinItems = int(minItems)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	rule.MaxDiscount = maxDiscount
	return rule, err
}
