package voucher

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Validator checks voucher codes against a cart.
type Validator interface {
	// Check computes the discount without consuming a use. It backs the
	// apply-voucher step of the cart.
	Check(ctx context.Context, code string, items []Item) (*Discount, error)
	// Redeem computes the discount and consumes one use. It runs at order
	// placement.
	Redeem(ctx context.Context, code string, items []Item) (*Discount, error)
	// Release returns the use taken by a Redeem whose order was never
	// stored.
	Release(ctx context.Context, code string) error
}

var _ Validator = (*RepoValidator)(nil)

// RepoValidator implements Validator on top of a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Check looks up the rule, verifies its validity window and remaining
// uses, and applies it to items.
func (v *RepoValidator) Check(ctx context.Context, code string, items []Item) (*Discount, error) {
	rule, err := v.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	d, err := Apply(rule, items)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Redeem is Check followed by consuming one use of the voucher.
func (v *RepoValidator) Redeem(ctx context.Context, code string, items []Item) (*Discount, error) {
	d, err := v.Check(ctx, code, items)
	if err != nil {
		return nil, err
	}

	if err := v.repo.IncrementUses(ctx, d.Code); err != nil {
		if errors.Is(err, ErrUsageLimitReached) {
			return nil, ErrUsageLimitReached
		}
		return nil, errors.Wrap(err, "increment voucher uses")
	}
	return d, nil
}

// Release gives back one use of code.
func (v *RepoValidator) Release(ctx context.Context, code string) error {
	if err := v.repo.ReleaseUse(ctx, strings.TrimSpace(code)); err != nil {
		return errors.Wrap(err, "release voucher use")
	}
	return nil
}

func (v *RepoValidator) lookup(ctx context.Context, code string) (*Rule, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidVoucher
	}

	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidVoucher) {
			return nil, ErrInvalidVoucher
		}
		return nil, errors.Wrap(err, "lookup voucher")
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrVoucherExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrVoucherExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrUsageLimitReached
	}
	return rule, nil
}
