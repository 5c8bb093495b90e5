// Package collector drives the paginated list endpoint per prefecture and
// appends the resulting number/name pairs to the list file.
package collector

import (
	"context"
	"strings"

	"github.com/hojin-tools/gbiz-collector/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ListFields is the column order of the list file.
var ListFields = []string{"corporate_number", "name"}

// ListRecord is one entry of the corporation list.
type ListRecord struct {
	CorporateNumber string
	Name            string
}

// ListQuery selects corporations for one prefecture.
type ListQuery struct {
	Prefecture    string // JIS X 0401 two-digit code
	CorporateType string
	ExistFlag     string // "true", "false" or "" for no filter
	Limit         int    // page size, clamped to 1..5000
	MaxPages      int    // page ceiling, clamped to 1..10
}

// Collector fetches corporation lists from the registry API.
type Collector struct {
	api    *client.Client
	logger zerolog.Logger
}

// New creates a collector on top of an API client.
func New(api *client.Client) *Collector {
	return &Collector{
		api:    api,
		logger: log.With().Str("component", "collector").Logger(),
	}
}

// Each streams every corporation matching the query through fn, one page at
// a time. Iteration stops on an empty page, on a page shorter than the
// requested size (last page), or at the page ceiling. A prefecture with no
// matches yields no calls and no error. Errors from fn abort the iteration.
func (c *Collector) Each(ctx context.Context, q ListQuery, fn func(ListRecord) error) error {
	limit := clamp(q.Limit, 1, 5000)
	maxPages := clamp(q.MaxPages, 1, 10)

	for page := 1; page <= maxPages; page++ {
		resp, err := c.api.Search(ctx, client.SearchQuery{
			Prefecture:    q.Prefecture,
			CorporateType: q.CorporateType,
			ExistFlag:     q.ExistFlag,
			Limit:         limit,
			Page:          page,
		})
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return nil
		}

		for i := range resp.Items {
			rec := ListRecord{
				CorporateNumber: strings.TrimSpace(resp.Items[i].CorporateNumber),
				Name:            resp.Items[i].Name,
			}
			if err := fn(rec); err != nil {
				return err
			}
		}

		// A short page is the last page; the next request would come
		// back empty anyway.
		if len(resp.Items) < limit {
			return nil
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
