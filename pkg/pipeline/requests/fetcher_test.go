package requests

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const feedBody = `sr_number,sr_type,owner_department,status,created_date,closed_date,last_modified_date,ward,community_area
SR24-001,Pothole in Street,CDOT,Completed,2024-03-04T10:00:00.000,2024-03-05T10:00:00.000,2024-03-05T10:00:00.000,42,8
SR24-002,Graffiti Removal,DSS,Open,2024-03-03T09:30:00.000,,2024-03-03T09:30:00.000,,35
SR24-003,Rodent Baiting,DSS,Completed,2024-03-01T08:00:00.000,2024-03-06T08:00:00.000,2024-03-06T08:00:00.000,1,
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestFetcher(t *testing.T, baseURL string, limit int) *Fetcher {
	t.Helper()
	f, err := NewFetcher(FetcherConfig{
		Logger:      testLogger(),
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{Timeout: 5 * time.Second},
		RowLimit:    limit,
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	return f
}

func TestFetch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fetches_and_parses_feed", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "created_date DESC", r.URL.Query().Get("$order"))
			require.Equal(t, "100", r.URL.Query().Get("$limit"))
			w.Write([]byte(feedBody))
		}))
		defer srv.Close()

		rows, err := newTestFetcher(t, srv.URL, 100).Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		first := rows[0]
		require.Equal(t, "SR24-001", first.SRNumber)
		require.Equal(t, "Pothole in Street", first.SRType)
		require.Equal(t, "CDOT", first.OwnerDepartment)
		require.NotNil(t, first.CreatedDate)
		require.Equal(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC), *first.CreatedDate)
		require.True(t, first.Ward.Valid)
		require.Equal(t, int64(42), first.Ward.Int64)

		open := rows[1]
		require.Nil(t, open.ClosedDate)
		require.False(t, open.Ward.Valid)
		require.False(t, rows[2].CommunityArea.Valid)
	})

	t.Run("caps_rows_at_limit", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(feedBody))
		}))
		defer srv.Close()

		rows, err := newTestFetcher(t, srv.URL, 2).Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, "SR24-001", rows[0].SRNumber)
		require.Equal(t, "SR24-002", rows[1].SRNumber)
	})

	t.Run("retries_transient_server_errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(feedBody))
		}))
		defer srv.Close()

		rows, err := newTestFetcher(t, srv.URL, 100).Fetch(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("persistent_failure_is_fetch_error", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestFetcher(t, srv.URL, 100).Fetch(ctx)
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("client_errors_are_not_retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := newTestFetcher(t, srv.URL, 100).Fetch(ctx)
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("malformed_body_is_permanent_fetch_error", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte("sr_number,status\n\"unterminated\n"))
		}))
		defer srv.Close()

		_, err := newTestFetcher(t, srv.URL, 100).Fetch(ctx)
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, int32(1), calls.Load())
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	require.Nil(t, parseTimestamp(""))
	require.Nil(t, parseTimestamp("not a date"))

	parsed := parseTimestamp("2024-03-04T10:00:00.500")
	require.NotNil(t, parsed)
	require.Equal(t, 500*int(time.Millisecond), parsed.Nanosecond())

	parsed = parseTimestamp("2024-03-04 10:00:00")
	require.NotNil(t, parsed)
	require.Equal(t, 10, parsed.Hour())
}
