package loyalty

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Loader fetches a balance in the background and keeps the latest result.
//
// Every Start and Cancel bumps a generation counter. A fetch only publishes
// its result if the generation it started with is still current.
type Loader struct {
	mu      sync.Mutex
	gen     uint64
	current *Balance
	wg      sync.WaitGroup
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Start begins fetching from src and returns the fetch generation.
// The previous snapshot is dropped until the new fetch resolves.
func (l *Loader) Start(ctx context.Context, src BalanceSource) uint64 {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.current = nil
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		b, err := src.Balance(ctx)
		if err != nil {
			zctx.From(ctx).Warn("Fetch loyalty balance", zap.Uint64("generation", gen), zap.Error(err))
			return
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.gen {
			return
		}
		l.current = b
	}()

	return gen
}

// Cancel discards any in-flight result.
func (l *Loader) Cancel() {
	l.mu.Lock()
	l.gen++
	l.mu.Unlock()
}

// Current returns the applied snapshot, or nil while loading, after a
// failure, or when nothing was started.
func (l *Loader) Current() *Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Generation returns the current generation.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// Wait blocks until every started fetch has returned.
func (l *Loader) Wait() {
	l.wg.Wait()
}
