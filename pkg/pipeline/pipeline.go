package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Katharina-github/TicketPipeline/pkg/duck"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/kpi"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/reference"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/requests"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/warehouse"
)

type Pipeline struct {
	log     *slog.Logger
	cfg     Config
	fetcher *requests.Fetcher
}

func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	fetcher, err := requests.NewFetcher(requests.FetcherConfig{
		Logger:     cfg.Logger,
		BaseURL:    cfg.FeedURL,
		HTTPClient: cfg.HTTPClient,
		RowLimit:   cfg.RowLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	return &Pipeline{
		log:     cfg.Logger,
		cfg:     cfg,
		fetcher: fetcher,
	}, nil
}

// Run executes one full idempotent rebuild of the target store. Every failure
// is logged with context and returned unchanged; the store connection is
// released on all exit paths.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	start := p.cfg.Clock.Now()
	p.log.Info("pipeline start", "mode", p.cfg.Mode, "store", p.cfg.StorePath)

	defer func() {
		elapsed := p.cfg.Clock.Since(start)
		if err != nil {
			p.log.Error("pipeline failed", "mode", p.cfg.Mode, "elapsed", elapsed.String(), "error", err)
		} else {
			p.log.Info("pipeline success", "mode", p.cfg.Mode, "elapsed", elapsed.String())
		}
	}()

	// Fresh store every run: removing the prior file is the explicit first
	// step of the state machine, not a side effect of opening it.
	if err := os.Remove(p.cfg.StorePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove prior store %s: %w", p.cfg.StorePath, err)
	}

	db, err := duck.NewDB(ctx, p.cfg.StorePath, p.log)
	if err != nil {
		return fmt.Errorf("failed to open store %s: %w", p.cfg.StorePath, err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			p.log.Error("failed to close store", "error", closeErr)
		}
	}()

	rows, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	areas, demographics, err := p.readReferences()
	if err != nil {
		return err
	}

	store, err := warehouse.NewStore(warehouse.StoreConfig{
		Logger: p.log,
		DB:     db,
	})
	if err != nil {
		return fmt.Errorf("failed to create warehouse store: %w", err)
	}

	rules := kpi.Rules{SLATargetHours: p.cfg.SLAHours}

	switch p.cfg.Mode {
	case ModeETL:
		if err := store.EnsureFactSchema(ctx); err != nil {
			return err
		}
		if err := store.LoadFacts(ctx, rows, rules); err != nil {
			return err
		}
		if err := store.LoadDimAreaExtended(ctx, areas, demographics); err != nil {
			return err
		}
		store.HealthCheck(ctx, warehouse.FactTable, warehouse.DimTable)
	case ModeELT:
		if err := store.StageRequests(ctx, rows); err != nil {
			return err
		}
		if err := store.StageDemographics(ctx, demographics); err != nil {
			return err
		}
		if err := store.StageAreaMap(ctx, areas); err != nil {
			return err
		}
		if err := store.EnsureViews(ctx, rules); err != nil {
			return err
		}
		store.HealthCheck(ctx, warehouse.StgRequestsTable, warehouse.FactView, warehouse.DimView)
	}

	return nil
}

func (p *Pipeline) readReferences() ([]reference.AreaRow, []reference.DemographicsRow, error) {
	p.log.Info("reading demographics reference", "path", p.cfg.DemographicsPath)
	demoTable, err := reference.ReadTable(p.cfg.DemographicsPath)
	if err != nil {
		return nil, nil, err
	}
	demographics, err := reference.ExtractDemographics(demoTable)
	if err != nil {
		return nil, nil, err
	}

	p.log.Info("reading area map reference", "path", p.cfg.AreaMapPath)
	mapTable, err := reference.ReadTable(p.cfg.AreaMapPath)
	if err != nil {
		return nil, nil, err
	}
	areas, err := reference.ExtractAreaMap(mapTable)
	if err != nil {
		return nil, nil, err
	}
	// Sanity expectation, logged rather than enforced.
	p.log.Info("area map rows", "rows", len(areas), "expected", "~77")

	return areas, demographics, nil
}
