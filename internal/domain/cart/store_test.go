package cart

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockPersister struct {
	saves []State
	err   error
}

func (m *mockPersister) Save(_ context.Context, _ string, state State) error {
	m.saves = append(m.saves, state)
	return m.err
}

func vnd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, vnd(want).Equal(got), "expected %d, got %s", want, got)
}

func newItem(productID, variantID string, price int64, qty, maxQty int) LineItem {
	return LineItem{
		ProductID:   productID,
		VariantID:   variantID,
		Name:        "Product " + productID,
		UnitPrice:   vnd(price),
		Quantity:    qty,
		MaxQuantity: maxQty,
		Image:       productID + ".jpg",
	}
}

func TestStore_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("appends in insertion order", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("b", "", 10, 1, 5))
		s.Add(ctx, newItem("a", "", 20, 1, 5))
		s.Add(ctx, newItem("a", "red", 30, 1, 5))

		items := s.Items()
		require.Len(t, items, 3)
		assert.Equal(t, Key{ProductID: "b"}, items[0].Key())
		assert.Equal(t, Key{ProductID: "a"}, items[1].Key())
		assert.Equal(t, Key{ProductID: "a", VariantID: "red"}, items[2].Key())
	})

	t.Run("same product and variant merges quantities", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("a", "red", 10, 2, 10))
		s.Add(ctx, newItem("a", "red", 10, 3, 10))

		items := s.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 5, items[0].Quantity)
	})

	t.Run("merge is clamped to max quantity", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("a", "", 10, 4, 5))
		s.Add(ctx, newItem("a", "", 10, 4, 5))

		assert.Equal(t, 5, s.Items()[0].Quantity)
	})

	t.Run("new item is clamped to max quantity", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("a", "", 10, 9, 3))

		assert.Equal(t, 3, s.Items()[0].Quantity)
	})

	t.Run("invalid items are ignored", func(t *testing.T) {
		p := &mockPersister{}
		s := NewStore("c1", State{}, p)
		s.Add(ctx, newItem("a", "", 10, 0, 3))
		s.Add(ctx, newItem("a", "", 10, -1, 3))
		s.Add(ctx, newItem("a", "", 10, 1, 0))
		s.Add(ctx, newItem("", "", 10, 1, 3))

		assert.True(t, s.Empty())
		assert.Empty(t, p.saves)
	})
}

func TestStore_UpdateQuantity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		qty     int
		wantQty int
		wantLen int
	}{
		{name: "within bounds", qty: 3, wantQty: 3, wantLen: 1},
		{name: "above max is clamped", qty: 50, wantQty: 5, wantLen: 1},
		{name: "zero removes", qty: 0, wantLen: 0},
		{name: "negative removes", qty: -2, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore("c1", State{}, nil)
			s.Add(ctx, newItem("a", "v", 10, 1, 5))

			s.UpdateQuantity(ctx, "a", "v", tt.qty)

			items := s.Items()
			require.Len(t, items, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.wantQty, items[0].Quantity)
			}
		})
	}

	t.Run("unknown item is ignored", func(t *testing.T) {
		p := &mockPersister{}
		s := NewStore("c1", State{}, p)
		s.UpdateQuantity(ctx, "missing", "", 3)

		assert.True(t, s.Empty())
		assert.Empty(t, p.saves)
	})
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s := NewStore("c1", State{}, nil)
	s.Add(ctx, newItem("a", "", 10, 1, 5))
	s.Add(ctx, newItem("a", "v", 10, 1, 5))

	s.Remove(ctx, "a", "")
	s.Remove(ctx, "a", "")

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "v", items[0].VariantID)

	s.Remove(ctx, "a", "v")
	assert.True(t, s.Empty())
	assert.Nil(t, s.State().Items)
}

func TestStore_SubtotalMatchesItems(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))
	s := NewStore("c1", State{}, nil)

	products := []string{"a", "b", "c"}
	variants := []string{"", "x"}
	for range 500 {
		pid := products[rng.IntN(len(products))]
		vid := variants[rng.IntN(len(variants))]
		switch rng.IntN(3) {
		case 0:
			s.Add(ctx, newItem(pid, vid, int64(1000*(1+rng.IntN(50))), 1+rng.IntN(4), 1+rng.IntN(8)))
		case 1:
			s.UpdateQuantity(ctx, pid, vid, rng.IntN(12)-2)
		case 2:
			s.Remove(ctx, pid, vid)
		}

		want := decimal.Zero
		seen := make(map[Key]bool)
		for _, item := range s.Items() {
			require.False(t, seen[item.Key()], "duplicate line %v", item.Key())
			seen[item.Key()] = true
			require.GreaterOrEqual(t, item.Quantity, 1)
			require.LessOrEqual(t, item.Quantity, item.MaxQuantity)
			want = want.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		require.True(t, want.Equal(s.Subtotal()), "subtotal %s, want %s", s.Subtotal(), want)
		require.True(t, s.Subtotal().Equal(s.Subtotal()))
	}
}

func TestStore_Voucher(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end subtotal and voucher", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("p1", "", 100000, 2, 10))
		assertAmount(t, 200000, s.Subtotal())

		s.ApplyVoucher(ctx, "SALE20K", vnd(20000))
		assertAmount(t, 20000, s.VoucherDiscount())
		assertAmount(t, 180000, s.Total())
		assert.Equal(t, "SALE20K", s.VoucherCode())
	})

	t.Run("discount is bounded by subtotal", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("p1", "", 10000, 1, 10))
		s.ApplyVoucher(ctx, "HUGE", vnd(999999))

		assertAmount(t, 10000, s.VoucherDiscount())
		assertAmount(t, 0, s.Total())
	})

	t.Run("negative discount is stored as zero", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("p1", "", 10000, 1, 10))
		s.ApplyVoucher(ctx, "NEG", vnd(-500))

		assertAmount(t, 0, s.VoucherDiscount())
		assertAmount(t, 10000, s.Total())
	})

	t.Run("clear and empty code drop the discount", func(t *testing.T) {
		s := NewStore("c1", State{}, nil)
		s.Add(ctx, newItem("p1", "", 10000, 1, 10))

		s.ApplyVoucher(ctx, "A", vnd(1000))
		s.ClearVoucher(ctx)
		assert.Empty(t, s.VoucherCode())
		assertAmount(t, 0, s.VoucherDiscount())

		s.ApplyVoucher(ctx, "B", vnd(1000))
		s.ApplyVoucher(ctx, "", vnd(1000))
		assert.Empty(t, s.VoucherCode())
		assertAmount(t, 0, s.State().VoucherDiscount)
	})

	t.Run("discount without code is ignored", func(t *testing.T) {
		s := NewStore("c1", State{VoucherDiscount: vnd(5000)}, nil)
		s.Add(ctx, newItem("p1", "", 10000, 1, 10))

		assertAmount(t, 0, s.VoucherDiscount())
	})
}

func TestStore_RefreshPrice(t *testing.T) {
	ctx := context.Background()
	s := NewStore("c1", State{}, nil)
	s.Add(ctx, newItem("a", "", 10000, 4, 10))
	s.Add(ctx, newItem("b", "", 5000, 1, 10))

	s.RefreshPrice(ctx, "a", "", vnd(12000), 2)
	items := s.Items()
	assertAmount(t, 12000, items[0].UnitPrice)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 2, items[0].MaxQuantity)

	s.RefreshPrice(ctx, "b", "", vnd(5000), 0)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	p := &mockPersister{}
	s := NewStore("c1", State{}, p)
	s.Add(ctx, newItem("a", "", 10000, 1, 10))
	s.ApplyVoucher(ctx, "A", vnd(1000))

	s.Clear(ctx)

	assert.True(t, s.Empty())
	assert.Empty(t, s.VoucherCode())
	require.NotEmpty(t, p.saves)
	assert.Empty(t, p.saves[len(p.saves)-1].Items)
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	p := &mockPersister{}
	s := NewStore("c1", State{}, p)

	s.Add(ctx, newItem("a", "", 10000, 1, 10))
	s.UpdateQuantity(ctx, "a", "", 3)
	s.ApplyVoucher(ctx, "A", vnd(1000))
	s.Remove(ctx, "a", "")

	require.Len(t, p.saves, 4)
	assert.Equal(t, 3, p.saves[1].Items[0].Quantity)
	assert.Equal(t, "A", p.saves[2].VoucherCode)
	assert.Empty(t, p.saves[3].Items)

	// Snapshots are copies, later mutations must not leak into them.
	assert.Equal(t, 1, p.saves[0].Items[0].Quantity)
}

func TestStore_PersistErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	p := &mockPersister{err: errors.New("disk full")}
	s := NewStore("c1", State{}, p)
	s.Add(ctx, newItem("a", "", 10000, 1, 10))

	assert.Equal(t, 1, s.Len(), "state must keep the change")
	entries := logs.FilterMessage("Persist cart").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "c1", entries[0].ContextMap()["cart_id"])
}
