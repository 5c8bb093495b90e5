package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/hojin-tools/gbiz-collector/pkg/csvfile"
	"github.com/hojin-tools/gbiz-collector/pkg/normalize"
)

// DumpOptions controls one collection run.
type DumpOptions struct {
	// Out is the list CSV path.
	Out string

	// Prefectures are the two-digit region codes to collect, in order.
	Prefectures []string

	CorporateType string
	ExistFlag     string
	Limit         int
	MaxPages      int

	// Sleep is the pause between prefectures.
	Sleep time.Duration

	// Resume skips corporate numbers already present in Out.
	Resume bool

	// Normalize folds width variants in corporation names before writing.
	Normalize bool
}

// AllPrefectures returns the fixed JIS X 0401 enumeration "01".."47".
func AllPrefectures() []string {
	prefs := make([]string, 0, 47)
	for i := 1; i <= 47; i++ {
		prefs = append(prefs, fmt.Sprintf("%02d", i))
	}
	return prefs
}

// Dump collects every configured prefecture into the list file, appending
// one row per new corporate number. Returns the number of rows added.
// Any unrecovered API failure aborts the run; rows appended before the
// failure stay on disk.
func (c *Collector) Dump(ctx context.Context, opts DumpOptions) (int, error) {
	seen := make(map[string]struct{})
	if opts.Resume {
		var err error
		if seen, err = csvfile.SeenNumbers(opts.Out); err != nil {
			return 0, err
		}
	}

	totalNew := 0
	for _, pref := range opts.Prefectures {
		got := 0
		q := ListQuery{
			Prefecture:    pref,
			CorporateType: opts.CorporateType,
			ExistFlag:     opts.ExistFlag,
			Limit:         opts.Limit,
			MaxPages:      opts.MaxPages,
		}

		err := c.Each(ctx, q, func(rec ListRecord) error {
			if rec.CorporateNumber == "" {
				return nil
			}
			if _, ok := seen[rec.CorporateNumber]; ok {
				return nil
			}

			name := rec.Name
			if opts.Normalize {
				name = normalize.Name(name)
			}

			row := csvfile.Row{
				csvfile.KeyColumn: rec.CorporateNumber,
				"name":            name,
			}
			if err := csvfile.AppendRows(opts.Out, []csvfile.Row{row}, ListFields); err != nil {
				return err
			}

			seen[rec.CorporateNumber] = struct{}{}
			got++
			totalNew++
			return nil
		})
		if err != nil {
			return totalNew, err
		}

		c.logger.Info().
			Str("prefecture", pref).
			Int("added", got).
			Int("total", totalNew).
			Msg("Prefecture collected")

		if opts.Sleep > 0 {
			select {
			case <-ctx.Done():
				return totalNew, ctx.Err()
			case <-time.After(opts.Sleep):
			}
		}
	}
	return totalNew, nil
}
