// Package requests retrieves the public service-request feed: an HTTP CSV
// endpoint queried newest-created-first with a row cap.
package requests

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultRowLimit = 10000

	defaultMaxAttempts = 3
)

// Request is one service-request record as fetched. Immutable once fetched;
// the whole extent is superseded on the next run.
type Request struct {
	SRNumber         string
	SRType           string
	OwnerDepartment  string
	Status           string
	CreatedDate      *time.Time
	ClosedDate       *time.Time
	LastModifiedDate *time.Time
	Ward             sql.NullInt64
	CommunityArea    sql.NullInt64
}

// FetchError reports a network or parse failure on the primary feed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch request feed from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type FetcherConfig struct {
	Logger     *slog.Logger
	BaseURL    string
	HTTPClient *http.Client

	// RowLimit caps the number of records requested; defaults to DefaultRowLimit.
	RowLimit int

	// MaxAttempts bounds the retry loop around the whole GET. Each attempt
	// re-issues the identical query, so a retry never reorders rows.
	MaxAttempts int
}

func (cfg *FetcherConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if cfg.HTTPClient == nil {
		return errors.New("http client is required")
	}

	// Optional with defaults
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = DefaultRowLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return nil
}

type Fetcher struct {
	log *slog.Logger
	cfg FetcherConfig
}

func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Fetcher{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Fetch retrieves up to RowLimit records, newest first by creation time, with
// the three timestamp columns parsed. Transient HTTP failures are retried
// with exponential backoff; a malformed response body is permanent. Any
// terminal failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context) ([]Request, error) {
	feedURL := f.feedURL()
	f.log.Info("fetching request feed", "url", feedURL, "limit", f.cfg.RowLimit)

	rows, err := backoff.Retry(ctx, func() ([]Request, error) {
		return f.fetchOnce(ctx, feedURL)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(f.cfg.MaxAttempts)),
	)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	f.log.Info("fetched request feed", "rows", len(rows))
	return rows, nil
}

func (f *Fetcher) feedURL() string {
	q := url.Values{}
	q.Set("$order", "created_date DESC")
	q.Set("$limit", strconv.Itoa(f.cfg.RowLimit))
	return f.cfg.BaseURL + "?" + q.Encode()
}

func (f *Fetcher) fetchOnce(ctx context.Context, feedURL string) ([]Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := f.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	rows, err := parseFeed(resp.Body, f.cfg.RowLimit)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return rows, nil
}

// timestampLayouts are tried in order against the feed's date-time columns.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseFeed(body io.Reader, limit int) ([]Request, error) {
	r := csv.NewReader(body)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read feed header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}

	get := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	rows := make([]Request, 0, limit)
	for len(rows) < limit {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed row %d: %w", len(rows)+1, err)
		}

		rows = append(rows, Request{
			SRNumber:         get(row, "sr_number"),
			SRType:           get(row, "sr_type"),
			OwnerDepartment:  get(row, "owner_department"),
			Status:           get(row, "status"),
			CreatedDate:      parseTimestamp(get(row, "created_date")),
			ClosedDate:       parseTimestamp(get(row, "closed_date")),
			LastModifiedDate: parseTimestamp(get(row, "last_modified_date")),
			Ward:             parseNullInt(get(row, "ward")),
			CommunityArea:    parseNullInt(get(row, "community_area")),
		})
	}
	return rows, nil
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseNullInt(s string) sql.NullInt64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullInt64{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return sql.NullInt64{Int64: int64(f), Valid: true}
	}
	return sql.NullInt64{}
}
