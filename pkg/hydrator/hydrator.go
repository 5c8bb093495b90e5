// Package hydrator enriches collected corporate numbers with their basic
// attributes, one sequential detail lookup at a time, appending each result
// to the enriched file as soon as it arrives.
package hydrator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hojin-tools/gbiz-collector/pkg/client"
	"github.com/hojin-tools/gbiz-collector/pkg/csvfile"
	"github.com/hojin-tools/gbiz-collector/pkg/normalize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Options controls one enrichment run.
type Options struct {
	// In is the identifier-bearing input CSV (usually the list file).
	In string

	// Out is the enriched CSV path.
	Out string

	// Sleep is the pause after each processed row. Zero disables pacing.
	Sleep time.Duration

	// Resume skips corporate numbers already present in Out.
	Resume bool

	// ProgressEvery emits a progress line every N processed rows (0 disables).
	ProgressEvery int

	// ProgressInterval emits a progress line after this much wall time
	// since the last one (0 disables). Combines with ProgressEvery.
	ProgressInterval time.Duration

	// Normalize folds width variants in corporation names before writing.
	Normalize bool
}

// Stats summarizes an enrichment run.
type Stats struct {
	// Done counts processed input rows (skipped-as-seen rows excluded).
	Done int

	// Added counts rows appended to the enriched file.
	Added int

	// Errors counts detail fetches that failed after retries.
	Errors int
}

// Runner performs enrichment runs against the registry API.
type Runner struct {
	api    *client.Client
	logger zerolog.Logger
}

// New creates a runner on top of an API client.
func New(api *client.Client) *Runner {
	return &Runner{
		api:    api,
		logger: log.With().Str("component", "hydrator").Logger(),
	}
}

// Run streams the input file in order and fetches detail for every new
// corporate number. Fetch failures are counted and logged, never fatal;
// the only error paths are an unreadable input file, a failed append to
// the output file, and context cancellation.
func (r *Runner) Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	seen := make(map[string]struct{})
	if opts.Resume {
		var err error
		if seen, err = csvfile.SeenNumbers(opts.Out); err != nil {
			return stats, err
		}
	}

	if _, err := os.Stat(opts.In); err != nil {
		return stats, fmt.Errorf("input file: %w", err)
	}

	totalRows, err := csvfile.CountRows(opts.In)
	if err != nil {
		return stats, err
	}

	// Approximate: the input may repeat numbers, so the resume count can
	// overshoot the rows it actually covers.
	target := totalRows - len(seen)
	if target < 0 {
		target = 0
	}
	total := target
	if total == 0 {
		total = totalRows
	}

	r.logger.Info().
		Str("in", opts.In).
		Int("total_rows", totalRows).
		Bool("resume", opts.Resume).
		Int("approx_target", target).
		Msg("Hydrate start")

	var limiter *rate.Limiter
	if opts.Sleep > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Sleep), 1)
	}

	t0 := time.Now()
	lastProgress := t0

	err = csvfile.EachRow(opts.In, func(row csvfile.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		number := strings.TrimSpace(row[csvfile.KeyColumn])
		if number == "" {
			return nil
		}
		if _, ok := seen[number]; ok {
			return nil
		}

		corp, err := r.api.Detail(ctx, number)
		switch {
		case err != nil:
			stats.Errors++
			r.logger.Warn().
				Str("corporate_number", number).
				Err(err).
				Msg("Detail fetch failed")
		case corp != nil:
			out := corp.Row()
			if out[csvfile.KeyColumn] == "" {
				out[csvfile.KeyColumn] = number
			}
			if opts.Normalize {
				out["name"] = normalize.Name(out["name"])
			}
			if err := csvfile.AppendRows(opts.Out, []csvfile.Row{out}, client.BasicFields); err != nil {
				return err
			}
			seen[number] = struct{}{}
			stats.Added++
		default:
			// Not found: no row, no error.
		}

		stats.Done++

		now := time.Now()
		byCount := opts.ProgressEvery > 0 && stats.Done%opts.ProgressEvery == 0
		byTime := opts.ProgressInterval > 0 && now.Sub(lastProgress) >= opts.ProgressInterval
		if stats.Done == 1 || byCount || byTime {
			r.logProgress(stats, total, t0)
			lastProgress = now
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	r.logProgress(stats, total, t0)
	r.logger.Info().
		Int("added", stats.Added).
		Int("errors", stats.Errors).
		Str("out", opts.Out).
		Msg("Hydrate complete")
	return stats, nil
}

// logProgress reports throughput and ETA from elapsed-since-start, not
// since the previous progress line.
func (r *Runner) logProgress(stats Stats, total int, t0 time.Time) {
	elapsed := time.Since(t0)
	seconds := elapsed.Seconds()
	if seconds <= 0 {
		seconds = 1e-6
	}
	throughput := float64(stats.Done) / seconds

	pct := 100.0
	if total > 0 {
		pct = float64(stats.Done) / float64(total) * 100
	}

	remain := total - stats.Done
	if remain < 0 {
		remain = 0
	}
	var eta time.Duration
	if throughput > 0 {
		eta = time.Duration(float64(remain) / throughput * float64(time.Second))
	}

	r.logger.Info().
		Int("done", stats.Done).
		Int("total", total).
		Float64("pct", pct).
		Int("added", stats.Added).
		Int("errors", stats.Errors).
		Float64("rate_per_sec", throughput).
		Str("eta", FormatHMS(eta)).
		Str("elapsed", FormatHMS(elapsed)).
		Msg("Hydrate progress")
}

// FormatHMS renders a duration as h:mm:ss.
func FormatHMS(d time.Duration) string {
	s := int(d.Seconds())
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
