package duck

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewDB(t *testing.T) {
	t.Parallel()

	t.Run("opens_file_backed_database", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		path := filepath.Join(t.TempDir(), "test.db")
		db, err := NewDB(ctx, path, testLogger())
		require.NoError(t, err)
		defer db.Close()

		require.NotEmpty(t, db.Catalog())
		require.NotEmpty(t, db.Schema())

		_, err = os.Stat(path)
		require.NoError(t, err)
	})

	t.Run("persists_data_across_reopen", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "test.db")

		db, err := NewDB(ctx, path, testLogger())
		require.NoError(t, err)

		conn, err := db.Conn(ctx)
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx, "INSERT INTO t VALUES (1), (2)")
		require.NoError(t, err)
		require.NoError(t, conn.Close())
		require.NoError(t, db.Close())

		db, err = NewDB(ctx, path, testLogger())
		require.NoError(t, err)
		defer db.Close()

		conn, err = db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		var count int64
		require.NoError(t, conn.QueryRowContext(ctx, "SELECT count(*) FROM t").Scan(&count))
		require.Equal(t, int64(2), count)
	})

	t.Run("connection_reports_parent_db", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		db, err := NewDB(ctx, filepath.Join(t.TempDir(), "test.db"), testLogger())
		require.NoError(t, err)
		defer db.Close()

		conn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		require.Equal(t, db, conn.DB())
	})
}
