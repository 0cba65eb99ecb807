package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/Katharina-github/TicketPipeline/pkg/pipeline"
)

const (
	defaultStorePathETL     = "warehouse_etl.db"
	defaultStorePathELT     = "warehouse_elt.db"
	defaultDemographicsPath = "data/raw/acs_community.csv"
	defaultAreaMapPath      = "data/raw/Boundaries_Community_Areas.csv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	modeFlag := flag.String("mode", string(pipeline.ModeETL), "pipeline mode: etl or elt")
	storePathFlag := flag.String("store-path", "", "path to the warehouse database file (or set DB_PATH_ETL / DB_PATH_ELT env var; defaults per mode)")
	feedURLFlag := flag.String("feed-url", pipeline.DefaultFeedURL, "request feed base URL (or set FEED_URL env var)")
	rowLimitFlag := flag.Int("row-limit", 10000, "maximum number of feed rows to fetch (or set ROW_LIMIT env var)")
	slaHoursFlag := flag.Float64("sla-hours", 72, "SLA resolution-time threshold in hours (or set SLA_HOURS env var)")
	fetchTimeoutFlag := flag.Duration("fetch-timeout", pipeline.DefaultFetchTimeout, "HTTP timeout for the feed fetch (or set FETCH_TIMEOUT env var)")
	demographicsPathFlag := flag.String("demographics-path", defaultDemographicsPath, "path to the demographics reference file (or set DEMO_ACS_PATH env var)")
	areaMapPathFlag := flag.String("area-map-path", defaultAreaMapPath, "path to the area map reference file (or set DEMO_MAP_PATH env var)")
	flag.Parse()

	// Override flags with environment variables if set
	if env := os.Getenv("FEED_URL"); env != "" {
		*feedURLFlag = env
	}
	if env := os.Getenv("ROW_LIMIT"); env != "" {
		limit, err := strconv.Atoi(env)
		if err != nil {
			return fmt.Errorf("invalid ROW_LIMIT %q: %w", env, err)
		}
		*rowLimitFlag = limit
	}
	if env := os.Getenv("SLA_HOURS"); env != "" {
		hours, err := strconv.ParseFloat(env, 64)
		if err != nil {
			return fmt.Errorf("invalid SLA_HOURS %q: %w", env, err)
		}
		*slaHoursFlag = hours
	}
	if env := os.Getenv("FETCH_TIMEOUT"); env != "" {
		timeout, err := time.ParseDuration(env)
		if err != nil {
			return fmt.Errorf("invalid FETCH_TIMEOUT %q: %w", env, err)
		}
		*fetchTimeoutFlag = timeout
	}
	if env := os.Getenv("DEMO_ACS_PATH"); env != "" {
		*demographicsPathFlag = env
	}
	if env := os.Getenv("DEMO_MAP_PATH"); env != "" {
		*areaMapPathFlag = env
	}

	mode := pipeline.Mode(*modeFlag)
	storePath := *storePathFlag
	if storePath == "" {
		switch mode {
		case pipeline.ModeETL:
			storePath = defaultStorePathETL
			if env := os.Getenv("DB_PATH_ETL"); env != "" {
				storePath = env
			}
		case pipeline.ModeELT:
			storePath = defaultStorePathELT
			if env := os.Getenv("DB_PATH_ELT"); env != "" {
				storePath = env
			}
		}
	}

	log := newLogger(*verboseFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := pipeline.New(pipeline.Config{
		Logger:           log,
		Mode:             mode,
		StorePath:        storePath,
		FeedURL:          *feedURLFlag,
		RowLimit:         *rowLimitFlag,
		SLAHours:         *slaHoursFlag,
		FetchTimeout:     *fetchTimeoutFlag,
		DemographicsPath: *demographicsPathFlag,
		AreaMapPath:      *areaMapPathFlag,
	})
	if err != nil {
		return err
	}

	return p.Run(ctx)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
