package loyalty

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSource struct {
	release chan struct{}
	balance *Balance
	err     error
}

func newBlockingSource(b *Balance, err error) *blockingSource {
	return &blockingSource{release: make(chan struct{}), balance: b, err: err}
}

func (s *blockingSource) Balance(ctx context.Context) (*Balance, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.balance, s.err
}

func TestLoader_AppliesResult(t *testing.T) {
	l := NewLoader()
	src := newBlockingSource(&Balance{CurrentBalance: 1200, Tier: TierGold}, nil)

	gen := l.Start(context.Background(), src)
	assert.Equal(t, gen, l.Generation())
	assert.Nil(t, l.Current(), "nothing until the fetch resolves")

	close(src.release)
	l.Wait()

	require.NotNil(t, l.Current())
	assert.Equal(t, int64(1200), l.Current().CurrentBalance)
}

func TestLoader_CancelDiscardsInFlight(t *testing.T) {
	l := NewLoader()
	src := newBlockingSource(&Balance{CurrentBalance: 1200}, nil)

	l.Start(context.Background(), src)
	l.Cancel()
	close(src.release)
	l.Wait()

	assert.Nil(t, l.Current())
}

func TestLoader_LateResultIsStale(t *testing.T) {
	l := NewLoader()
	slow := newBlockingSource(&Balance{CurrentBalance: 1}, nil)
	fast := newBlockingSource(&Balance{CurrentBalance: 2}, nil)

	first := l.Start(context.Background(), slow)
	second := l.Start(context.Background(), fast)
	assert.Greater(t, second, first)

	close(fast.release)
	close(slow.release)
	l.Wait()

	require.NotNil(t, l.Current())
	assert.Equal(t, int64(2), l.Current().CurrentBalance)
}

func TestLoader_FailureLeavesNil(t *testing.T) {
	l := NewLoader()
	src := newBlockingSource(nil, errors.New("connection refused"))

	l.Start(context.Background(), src)
	close(src.release)
	l.Wait()

	assert.Nil(t, l.Current())
}
