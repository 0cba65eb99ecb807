// Package pipeline sequences a full warehouse rebuild: fetch the request
// feed, read and resolve the reference tables, load the store in ETL or ELT
// mode, then report row counts.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/kpi"
	"github.com/Katharina-github/TicketPipeline/pkg/pipeline/requests"
)

// Mode selects where the KPI transform executes.
type Mode string

const (
	// ModeETL derives KPIs in application code before loading final tables.
	ModeETL Mode = "etl"
	// ModeELT loads raw staging tables and derives KPIs in store views.
	ModeELT Mode = "elt"
)

const (
	DefaultFeedURL      = "https://data.cityofchicago.org/resource/v6vf-nfxy.csv"
	DefaultFetchTimeout = 60 * time.Second
)

// Config is the immutable run configuration, constructed once at process
// start and passed to every component.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	Mode      Mode
	StorePath string

	FeedURL      string
	RowLimit     int
	FetchTimeout time.Duration
	HTTPClient   *http.Client

	SLAHours float64

	DemographicsPath string
	AreaMapPath      string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Mode != ModeETL && cfg.Mode != ModeELT {
		return fmt.Errorf("mode must be %q or %q (got %q)", ModeETL, ModeELT, cfg.Mode)
	}
	if cfg.StorePath == "" {
		return errors.New("store path is required")
	}
	if cfg.DemographicsPath == "" {
		return errors.New("demographics path is required")
	}
	if cfg.AreaMapPath == "" {
		return errors.New("area map path is required")
	}

	// Optional with defaults
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultFeedURL
	}
	if cfg.RowLimit <= 0 {
		cfg.RowLimit = requests.DefaultRowLimit
	}
	if cfg.SLAHours <= 0 {
		cfg.SLAHours = kpi.DefaultSLATargetHours
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return nil
}
