// Package warehouse builds the fact/dimension schema in the embedded store
// and loads it, either from transformed rows (ETL) or as raw staging tables
// plus KPI views (ELT).
package warehouse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Katharina-github/TicketPipeline/pkg/duck"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/kpi"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/reference"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/requests"
)

type StoreConfig struct {
	Logger *slog.Logger
	DB     duck.DB
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	return nil
}

type Store struct {
	log *slog.Logger
	cfg StoreConfig
	db  duck.DB
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log: cfg.Logger,
		cfg: cfg,
		db:  cfg.DB,
	}, nil
}

// EnsureFactSchema drops and recreates the ETL target tables.
func (s *Store) EnsureFactSchema(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	stmts := []string{
		"DROP TABLE IF EXISTS " + FactTable,
		"DROP TABLE IF EXISTS " + DimTable,
		createFactSQL,
		createDimSQL,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure warehouse schema: %w", err)
		}
	}
	s.log.Info("warehouse schema ensured", "tables", []string{FactTable, DimTable})
	return nil
}

// LoadFacts derives the KPI and calendar columns for each request in-process
// and upserts the result into fact_requests keyed by sr_number. Duplicate
// keys within one batch collapse last-write-wins before the insert.
func (s *Store) LoadFacts(ctx context.Context, rows []requests.Request, rules kpi.Rules) error {
	s.log.Info("loading fact_requests", "rows", len(rows))
	rows = dedupeByKey(rows, func(r requests.Request) string { return r.SRNumber })

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = loadViaCSV(ctx, s.log, conn, FactTable, factColumns, true, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		derived := rules.Derive(r.Status, r.CreatedDate, r.ClosedDate)
		created := kpi.Split(r.CreatedDate)
		closed := kpi.Split(r.ClosedDate)
		return w.Write([]string{
			r.SRNumber,
			r.SRType,
			r.OwnerDepartment,
			r.Status,
			csvTime(r.CreatedDate),
			csvTime(r.ClosedDate),
			csvNullInt(created.DateKey),
			csvNullString(created.DateOnly),
			csvNullString(created.TimeOnly),
			csvNullInt(created.Hour),
			csvNullInt(created.DOW),
			csvNullInt(created.Month),
			csvNullInt(closed.DateKey),
			csvNullString(closed.DateOnly),
			csvNullString(closed.TimeOnly),
			csvNullInt(closed.Hour),
			csvNullInt(closed.DOW),
			csvNullInt(closed.Month),
			csvNullInt(r.Ward),
			csvNullInt(r.CommunityArea),
			csvNullFloat(derived.ResolutionTimeH),
			csvFloat(derived.SLATargetH),
			csvInt(derived.OpenFlag),
			csvInt(derived.SLAMet),
		})
	})
	if err != nil {
		return &LoadError{Table: FactTable, Err: err}
	}
	return nil
}

// LoadDimAreaExtended left-joins the area lookup against demographics on the
// canonical key (code and normalized name both matching) and upserts the
// result keyed by area code. Areas without a demographic match keep their row
// with null income/hardship. Rows whose code failed coercion cannot satisfy
// the primary key and are skipped with a warning.
func (s *Store) LoadDimAreaExtended(ctx context.Context, areas []reference.AreaRow, demographics []reference.DemographicsRow) error {
	s.log.Info("loading dim_area_extended", "areas", len(areas), "demographics", len(demographics))

	demoByKey := make(map[string]reference.DemographicsRow, len(demographics))
	for _, d := range demographics {
		if !d.Code.Valid {
			continue
		}
		demoByKey[fmt.Sprintf("%d|%s", d.Code.Int64, d.Name)] = d
	}

	type dimRow struct {
		area reference.AreaRow
		demo *reference.DemographicsRow
	}
	joined := make([]dimRow, 0, len(areas))
	skipped := 0
	for _, a := range areas {
		if !a.Code.Valid {
			skipped++
			continue
		}
		row := dimRow{area: a}
		if d, ok := demoByKey[fmt.Sprintf("%d|%s", a.Code.Int64, a.Name)]; ok {
			row.demo = &d
		}
		joined = append(joined, row)
	}
	if skipped > 0 {
		s.log.Warn("skipping area rows without a usable area code", "count", skipped)
	}
	joined = dedupeByKey(joined, func(r dimRow) string { return fmt.Sprintf("%d", r.area.Code.Int64) })

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = loadViaCSV(ctx, s.log, conn, DimTable, dimColumns, true, len(joined), func(w *csv.Writer, i int) error {
		r := joined[i]
		income, hardship := "", ""
		if r.demo != nil {
			income = csvNullFloat(r.demo.PerCapitaIncome)
			hardship = csvNullFloat(r.demo.HardshipIndex)
		}
		return w.Write([]string{
			csvNullInt(r.area.Code),
			r.area.Name,
			income,
			hardship,
		})
	})
	if err != nil {
		return &LoadError{Table: DimTable, Err: err}
	}
	return nil
}

// StageRequests full-replaces the raw request staging table (ELT mode).
func (s *Store) StageRequests(ctx context.Context, rows []requests.Request) error {
	s.log.Info("staging raw requests", "table", StgRequestsTable, "rows", len(rows))

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if err := s.replaceTable(ctx, conn, StgRequestsTable, createStgRequestsSQL); err != nil {
		return err
	}

	err = loadViaCSV(ctx, s.log, conn, StgRequestsTable, stgRequestsColumns, false, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{
			r.SRNumber,
			r.SRType,
			r.OwnerDepartment,
			r.Status,
			csvTime(r.CreatedDate),
			csvTime(r.ClosedDate),
			csvTime(r.LastModifiedDate),
			csvNullInt(r.Ward),
			csvNullInt(r.CommunityArea),
		})
	})
	if err != nil {
		return &LoadError{Table: StgRequestsTable, Err: err}
	}
	return nil
}

// StageAreaMap full-replaces the raw area lookup staging table (ELT mode).
func (s *Store) StageAreaMap(ctx context.Context, rows []reference.AreaRow) error {
	s.log.Info("staging area map", "table", StgAreaMapTable, "rows", len(rows))

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if err := s.replaceTable(ctx, conn, StgAreaMapTable, createStgAreaMapSQL); err != nil {
		return err
	}

	err = loadViaCSV(ctx, s.log, conn, StgAreaMapTable, stgAreaMapColumns, false, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{csvNullInt(r.Code), r.Name})
	})
	if err != nil {
		return &LoadError{Table: StgAreaMapTable, Err: err}
	}
	return nil
}

// StageDemographics full-replaces the raw demographics staging table (ELT mode).
func (s *Store) StageDemographics(ctx context.Context, rows []reference.DemographicsRow) error {
	s.log.Info("staging demographics", "table", StgDemographicsTable, "rows", len(rows))

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if err := s.replaceTable(ctx, conn, StgDemographicsTable, createStgDemographicsSQL); err != nil {
		return err
	}

	err = loadViaCSV(ctx, s.log, conn, StgDemographicsTable, stgDemographicsColumns, false, len(rows), func(w *csv.Writer, i int) error {
		r := rows[i]
		return w.Write([]string{
			csvNullInt(r.Code),
			r.Name,
			csvNullFloat(r.PerCapitaIncome),
			csvNullFloat(r.HardshipIndex),
		})
	})
	if err != nil {
		return &LoadError{Table: StgDemographicsTable, Err: err}
	}
	return nil
}

// EnsureViews (re)creates the ELT views over the staging tables. The fact
// view carries the same KPI arithmetic the ETL path computes in-process.
func (s *Store) EnsureViews(ctx context.Context, rules kpi.Rules) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	stmts := []string{
		rules.FactViewSQL(FactView, StgRequestsTable),
		createDimViewSQL,
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create view: %w", err)
		}
	}
	s.log.Info("views created", "views", []string{FactView, DimView})
	return nil
}

// CountRows returns the row count of one schema object.
func (s *Store) CountRows(ctx context.Context, object string) (int64, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	var count int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+object).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", object, err)
	}
	return count, nil
}

func (s *Store) replaceTable(ctx context.Context, conn duck.Connection, table, createSQL string) error {
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return &LoadError{Table: table, Err: err}
	}
	if _, err := conn.ExecContext(ctx, createSQL); err != nil {
		return &LoadError{Table: table, Err: err}
	}
	return nil
}

// dedupeByKey collapses repeated keys to their last occurrence so a batch
// with duplicate primary keys upserts last-write-wins in a single statement.
func dedupeByKey[T any](rows []T, key func(T) string) []T {
	last := make(map[string]int, len(rows))
	for i, r := range rows {
		last[key(r)] = i
	}
	if len(last) == len(rows) {
		return rows
	}
	out := make([]T, 0, len(last))
	for i, r := range rows {
		if last[key(r)] == i {
			out = append(out, r)
		}
	}
	return out
}
