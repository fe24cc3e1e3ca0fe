package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxFiles = 64

// scanConfig bounds which lines count as codes and sizes the filters.
type scanConfig struct {
	MinFiles      int
	MinLen        int
	MaxLen        int
	BloomCapacity uint
	BloomFPR      float64
	ProgressEvery uint64
}

func (c scanConfig) accept(code string) bool {
	return len(code) >= c.MinLen && len(code) <= c.MaxLen
}

// findCodes returns, sorted, the codes present in at least MinFiles of
// files. Pass 1 builds one bloom filter per file; pass 2 re-reads every
// file, keeps codes that enough other filters claim, and records in which
// files each was really seen.
func findCodes(ctx context.Context, files []string, cfg scanConfig) ([]string, error) {
	switch {
	case len(files) == 0:
		return nil, errors.New("no input files")
	case len(files) > maxFiles:
		return nil, errors.Errorf("at most %d input files are supported, got %d", maxFiles, len(files))
	case cfg.MinFiles < 1 || cfg.MinFiles > len(files):
		return nil, errors.Errorf("min files must be between 1 and %d, got %d", len(files), cfg.MinFiles)
	}

	lg := zctx.From(ctx)
	lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := buildFilters(ctx, files, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	lg.Info("Pass 2: confirming candidates", zap.Int("min_files", cfg.MinFiles))
	masks := make([]map[string]uint64, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			m, err := candidatesInFile(gctx, i, path, filters, cfg)
			if err != nil {
				return errors.Wrapf(err, "scan file %d", i+1)
			}
			masks[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint64)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	var codes []string
	for code, mask := range merged {
		if bits.OnesCount64(mask) >= cfg.MinFiles {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func buildFilters(ctx context.Context, files []string, cfg scanConfig) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomFPR)
			var count uint64
			err := streamGzFile(gctx, path, func(code string) {
				if !cfg.accept(code) {
					return
				}
				filter.AddString(code)
				count++
				if cfg.ProgressEvery > 0 && count%cfg.ProgressEvery == 0 {
					zctx.From(gctx).Info("Pass 1 progress", zap.Int("file", i+1), zap.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}
			zctx.From(gctx).Info("Pass 1 complete", zap.Int("file", i+1), zap.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// candidatesInFile marks the codes of file idx that at least MinFiles-1
// other filters may contain.
func candidatesInFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter, cfg scanConfig) (map[string]uint64, error) {
	candidates := make(map[string]uint64)
	bit := uint64(1) << uint(idx)
	need := cfg.MinFiles - 1

	err := streamGzFile(ctx, path, func(code string) {
		if !cfg.accept(code) {
			return
		}
		if _, ok := candidates[code]; ok {
			return
		}
		others := 0
		for j, f := range filters {
			if j == idx || others >= need {
				continue
			}
			if f.TestString(code) {
				others++
			}
		}
		if others >= need {
			candidates[code] = bit
		}
	})
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Pass 2 complete", zap.Int("file", idx+1), zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// streamGzFile calls fn for every trimmed line of a gzip-compressed file.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(strings.ToUpper(strings.TrimSpace(scanner.Text())))
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
