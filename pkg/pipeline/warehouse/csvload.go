package warehouse

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Katharina-github/TicketPipeline/pkg/duck"
)

// loadViaCSV bulk-loads rows into a target table through a temp CSV file:
// the CSV is COPYd into an all-VARCHAR temp stage, then inserted into the
// typed target in one statement (OR REPLACE when replaceByKey is set, giving
// upsert-by-primary-key semantics). Empty CSV fields surface as NULLs after
// the cast, so absent values are an explicit marker, never an omitted column.
func loadViaCSV(
	ctx context.Context,
	log *slog.Logger,
	conn duck.Connection,
	table string,
	columns []string,
	replaceByKey bool,
	count int,
	writeRow func(*csv.Writer, int) error,
) error {
	loadStart := time.Now()
	defer func() {
		log.Debug("table load completed",
			"table", table,
			"rows", count,
			"duration", time.Since(loadStart).String())
	}()

	if count == 0 {
		return nil
	}

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("%s_load_*.csv", table))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	csvWriter := csv.NewWriter(tmpFile)
	for i := range count {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during CSV writing: %w", ctx.Err())
		default:
		}

		if err := writeRow(csvWriter, i); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", table, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error("failed to rollback transaction", "table", table, "error", err)
		}
	}()

	stageTable := fmt.Sprintf("%s_stage", table)
	colDefs := make([]string, 0, len(columns))
	for _, col := range columns {
		colDefs = append(colDefs, col+" VARCHAR")
	}
	createStageSQL := fmt.Sprintf("CREATE TEMP TABLE %s (%s)", stageTable, strings.Join(colDefs, ", "))
	if _, err := tx.ExecContext(ctx, createStageSQL); err != nil {
		return fmt.Errorf("failed to create stage table: %w", err)
	}

	copySQL := fmt.Sprintf("COPY %s FROM '%s' (FORMAT CSV, HEADER false)", stageTable, tmpFile.Name())
	if _, err := tx.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("failed to COPY FROM CSV: %w", err)
	}

	orReplace := ""
	if replaceByKey {
		orReplace = "OR REPLACE "
	}
	colList := strings.Join(columns, ", ")
	db := conn.DB()
	insertSQL := fmt.Sprintf("INSERT %sINTO %s.%s.%s (%s) SELECT %s FROM %s",
		orReplace, db.Catalog(), db.Schema(), table, colList, colList, stageTable)
	if _, err := tx.ExecContext(ctx, insertSQL); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", stageTable)); err != nil {
		log.Error("failed to drop stage table", "error", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CSV field encoding: the empty string is the NULL marker.

func csvTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func csvNullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func csvNullFloat(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'g', -1, 64)
}

func csvNullString(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

func csvInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
