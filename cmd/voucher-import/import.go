package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/techstore/internal/catalog"
	"github.com/xenking/techstore/internal/domain/voucher"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	writeBatch    = 1000
	maxLineBytes  = 1 << 20
	// maxSources bounds the per-code source bitmask.
	maxSources = bits.UintSize
)

// source yields voucher records. Records that fail to decode are reported
// through bad and skipped.
type source interface {
	Name() string
	Each(ctx context.Context, fn func(v voucher.Voucher), bad func(err error)) error
}

// gzSource streams a gzipped file holding one voucher JSON object per line.
type gzSource struct {
	path string
}

func (s gzSource) Name() string { return s.path }

func (s gzSource) Each(ctx context.Context, fn func(v voucher.Voucher), bad func(err error)) error {
	f, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(err, "open %s", s.path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", s.path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		v, err := catalog.DecodeOne(data)
		if err != nil {
			bad(errors.Wrapf(err, "%s:%d", s.path, line))
			continue
		}
		fn(v)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", s.path)
	}
	return nil
}

// catalogSource adapts a voucher.Catalog. The list is loaded once and
// replayed on the second pass.
type catalogSource struct {
	name    string
	catalog voucher.Catalog

	once sync.Once
	list []voucher.Voucher
	err  error
}

func (s *catalogSource) Name() string { return s.name }

func (s *catalogSource) Each(ctx context.Context, fn func(v voucher.Voucher), _ func(err error)) error {
	s.once.Do(func() {
		s.list, s.err = s.catalog.List(ctx)
	})
	if s.err != nil {
		return errors.Wrapf(s.err, "list %s", s.name)
	}
	for _, v := range s.list {
		fn(v)
	}
	return nil
}

type collectResult struct {
	accepted   []voucher.Voucher
	duplicates []string
	invalid    int
}

// collect reads every source twice. Pass 1 builds one bloom filter of codes
// per source. Pass 2 accepts valid records whose code no other filter
// matches and holds the rest as candidates; a candidate is a duplicate when
// the exact code sets confirm it in two or more sources.
func collect(ctx context.Context, sources []source, expected uint) (*collectResult, error) {
	if len(sources) > maxSources {
		return nil, errors.Errorf("at most %d sources are supported", maxSources)
	}

	slog.Info("pass 1: building bloom filters", slog.Int("sources", len(sources)))
	filters, err := buildFilters(ctx, sources, expected)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: checking codes across sources")
	results := make([]sourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			r, err := scanSource(gctx, i, src, filters)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge candidate bitmasks from all sources.
	merged := make(map[string]uint)
	for _, r := range results {
		for code := range r.candidates {
			merged[code] |= r.bit
		}
	}

	res := &collectResult{}
	for _, r := range results {
		res.invalid += r.invalid
		res.accepted = append(res.accepted, r.accepted...)
		for code, v := range r.candidates {
			if bits.OnesCount(merged[code]) >= 2 {
				continue
			}
			// Bloom false positive.
			res.accepted = append(res.accepted, v)
		}
	}
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			res.duplicates = append(res.duplicates, code)
		}
	}

	slices.SortFunc(res.accepted, func(a, b voucher.Voucher) int {
		return strings.Compare(a.Code, b.Code)
	})
	slices.Sort(res.duplicates)
	return res, nil
}

// buildFilters creates one bloom filter per source, concurrently.
func buildFilters(ctx context.Context, sources []source, expected uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			var count uint64
			err := src.Each(ctx, func(v voucher.Voucher) {
				filter.AddString(v.Code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("source", src.Name()), slog.Uint64("codes", count))
				}
			}, func(error) {})
			if err != nil {
				return errors.Wrapf(err, "build filter for %s", src.Name())
			}

			slog.Info("pass 1 complete", slog.String("source", src.Name()), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

type sourceResult struct {
	bit        uint
	accepted   []voucher.Voucher
	candidates map[string]voucher.Voucher
	invalid    int
}

// scanSource validates the records of source idx and splits them into
// accepted ones and candidates another source's filter matches. Within a
// source the last record for a code wins.
func scanSource(ctx context.Context, idx int, src source, filters []*bloom.BloomFilter) (sourceResult, error) {
	r := sourceResult{
		bit:        uint(1) << uint(idx),
		candidates: make(map[string]voucher.Voucher),
	}
	own := make(map[string]voucher.Voucher)

	err := src.Each(ctx, func(v voucher.Voucher) {
		if err := v.Validate(); err != nil {
			r.invalid++
			slog.Warn("invalid voucher skipped",
				slog.String("source", src.Name()),
				slog.String("code", v.Code),
				slog.String("error", err.Error()),
			)
			return
		}
		own[v.Code] = v
	}, func(err error) {
		r.invalid++
		slog.Warn("undecodable record skipped", slog.String("error", err.Error()))
	})
	if err != nil {
		return sourceResult{}, errors.Wrapf(err, "scan %s", src.Name())
	}

	for code, v := range own {
		if seenElsewhere(code, idx, filters) {
			r.candidates[code] = v
			continue
		}
		r.accepted = append(r.accepted, v)
	}

	slog.Info("pass 2 complete",
		slog.String("source", src.Name()),
		slog.Int("valid", len(own)),
		slog.Int("candidates", len(r.candidates)),
		slog.Int("invalid", r.invalid),
	)
	return r, nil
}

func seenElsewhere(code string, idx int, filters []*bloom.BloomFilter) bool {
	for j, f := range filters {
		if j != idx && f.TestString(code) {
			return true
		}
	}
	return false
}

// upserter is implemented by *postgres.VoucherRepository.
type upserter interface {
	Upsert(ctx context.Context, vs []voucher.Voucher) (int, error)
}

// write upserts vouchers in batches.
func write(ctx context.Context, repo upserter, vs []voucher.Voucher) error {
	slog.Info("writing vouchers to database", slog.Int("count", len(vs)))

	written := 0
	for batch := range slices.Chunk(vs, writeBatch) {
		n, err := repo.Upsert(ctx, batch)
		if err != nil {
			return errors.Wrapf(err, "upsert batch at %d", written)
		}
		written += n
		slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(vs)))
	}
	return nil
}
