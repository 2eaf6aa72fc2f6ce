// package tasks implements the enrichment and playlist-selection pipeline.
//
// The core abstraction is Engine, which orchestrates history ingestion,
// catalog resolution, metadata and duration enrichment, and playlist builds.
// Provider failures on individual items are recorded in the error log and
// never abort a run; partial progress always persists.
package tasks

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/cratedig/cratedig/internal/repositories"
	"github.com/cratedig/cratedig/internal/services"
	"github.com/cratedig/cratedig/internal/shared"
	"golang.org/x/time/rate"
)

// Engine runs the pipeline stages against the configured providers and store.
type Engine struct {
	catalog services.Catalog
	history services.History
	links   services.LinkResolver
	scraper services.Scraper
	store   *repositories.Store
	logger  *log.Logger

	catalogLimiter *rate.Limiter
	historyLimiter *rate.Limiter

	cooldown     time.Duration // suppresses re-scans of tracks the catalog did not match
	recentWindow time.Duration // only tracks played this recently get resolved
	scrapeBudget int           // storefront pages fetched per run
	playlistSize int

	retryAttempts int
	retryBackoff  time.Duration

	now func() time.Time
}

// NewEngine creates an Engine. Zero values in cfg fall back to the embedded
// defaults.
func NewEngine(
	catalog services.Catalog,
	history services.History,
	links services.LinkResolver,
	scraper services.Scraper,
	store *repositories.Store,
	logger *log.Logger,
	cfg shared.PipelineConfig,
) *Engine {
	if cfg.CatalogRateLimit <= 0 {
		cfg.CatalogRateLimit = 5.0
	}
	if cfg.HistoryRateLimit <= 0 {
		cfg.HistoryRateLimit = 2.0
	}
	if cfg.ScanCooldownDays <= 0 {
		cfg.ScanCooldownDays = 14
	}
	if cfg.RecentWindowDays <= 0 {
		cfg.RecentWindowDays = 60
	}
	if cfg.ScrapeBudget <= 0 {
		cfg.ScrapeBudget = 4
	}
	if cfg.PlaylistSize <= 0 {
		cfg.PlaylistSize = 16
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		catalog:        catalog,
		history:        history,
		links:          links,
		scraper:        scraper,
		store:          store,
		logger:         logger,
		catalogLimiter: rate.NewLimiter(rate.Limit(cfg.CatalogRateLimit), 1),
		historyLimiter: rate.NewLimiter(rate.Limit(cfg.HistoryRateLimit), 1),
		cooldown:       time.Duration(cfg.ScanCooldownDays) * 24 * time.Hour,
		recentWindow:   time.Duration(cfg.RecentWindowDays) * 24 * time.Hour,
		scrapeBudget:   cfg.ScrapeBudget,
		playlistSize:   cfg.PlaylistSize,
		retryAttempts:  3,
		retryBackoff:   3 * time.Second,
		now:            time.Now,
	}
}

// recordFailure logs a non-fatal stage failure and appends it to the
// persistent error log.
func (e *Engine) recordFailure(stage, context string, err error) {
	e.logger.Warn("stage failure", "stage", stage, "context", context, "err", err)
	if logErr := e.store.Errors.Record(stage, context, err.Error()); logErr != nil {
		e.logger.Error("failed to record error", "err", logErr)
	}
}
