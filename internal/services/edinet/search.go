package edinet

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/models"
)

// Default lookback when a search gives no start date.
const defaultLookbackYears = 5

// SearchService runs filtered searches over the per-date list endpoint.
// The API has no server-side search, so the service iterates submission
// dates and filters client-side.
type SearchService struct {
	client *Client
	logger arbor.ILogger
}

// NewSearchService creates a search service over a filings client.
func NewSearchService(client *Client, logger arbor.ILogger) *SearchService {
	return &SearchService{client: client, logger: logger}
}

// Search iterates dates in the filter's window and collects matching
// filings. The iteration direction follows the search order so that a
// capped search keeps the documents nearest the preferred end of the
// window. A failed date is logged and skipped; the search only fails
// when the failure is systemic enough to surface from every date.
// Results are always returned newest-first.
func (s *SearchService) Search(ctx context.Context, filter *models.DocumentFilter) ([]models.FilingMetadata, error) {
	start, end := resolveWindow(filter)
	order := filter.SearchOrder
	if order == "" {
		order = models.SearchOrderNewestFirst
	}

	s.logger.Debug().
		Str("start", start.Format("2006-01-02")).
		Str("end", end.Format("2006-01-02")).
		Str("order", string(order)).
		Msg("Starting filings search")

	var matches []models.FilingMetadata

dates:
	for _, date := range dateRange(start, end, order) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		list, err := s.client.ListDocuments(ctx, date, ListTypeFull)
		if err != nil {
			s.logger.Warn().
				Str("date", date.Format("2006-01-02")).
				Err(err).
				Msg("Skipping date after list failure")
			continue
		}

		for i := range list.Results {
			doc := &list.Results[i]
			if !filter.Matches(doc) {
				continue
			}
			matches = append(matches, *doc)
			if filter.MaxDocuments > 0 && len(matches) >= filter.MaxDocuments {
				s.logger.Debug().
					Int("max_documents", filter.MaxDocuments).
					Msg("Document cap reached, stopping search")
				break dates
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SortKey() > matches[j].SortKey()
	})

	s.logger.Info().
		Int("matches", len(matches)).
		Msg("Filings search complete")
	return matches, nil
}

// resolveWindow fills in the filter's date defaults: end defaults to
// today, start to end minus the default lookback.
func resolveWindow(filter *models.DocumentFilter) (time.Time, time.Time) {
	end := time.Now()
	if filter.EndDate != nil {
		end = *filter.EndDate
	}
	start := end.AddDate(-defaultLookbackYears, 0, 0)
	if filter.StartDate != nil {
		start = *filter.StartDate
	}
	return truncateDay(start), truncateDay(end)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dateRange enumerates every day in [start, end], ordered newest-first
// or oldest-first.
func dateRange(start, end time.Time, order models.SearchOrder) []time.Time {
	if end.Before(start) {
		return nil
	}

	var dates []time.Time
	if order == models.SearchOrderOldestFirst {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	} else {
		for d := end; !d.Before(start); d = d.AddDate(0, 0, -1) {
			dates = append(dates, d)
		}
	}
	return dates
}
