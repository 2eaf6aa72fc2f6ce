package main

import (
	"context"
	"net/http"
	"os"

	"github.com/cratedig/cratedig/internal/services"
	"github.com/cratedig/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	var catalogService services.Catalog
	if config.Credentials.Catalog.ClientID != "" && config.Credentials.Catalog.ClientSecret != "" {
		if svc, err := services.NewCatalogService(ctx, config.Credentials.Catalog, nil); err == nil {
			catalogService = svc
		} else {
			logger.Warn("catalog service unavailable", "error", err)
		}
	}

	var historyService services.History
	if config.Credentials.History.APIKey != "" {
		if svc, err := services.NewHistoryService(config.Credentials.History, nil); err == nil {
			historyService = svc
		} else {
			logger.Warn("history service unavailable", "error", err)
		}
	}

	linkService := services.NewLinkService(config.Credentials.Links, nil)
	scraper := services.NewStorefrontScraper(http.DefaultClient)

	opts := RunnerOpts{
		Config:  config,
		Catalog: catalogService,
		History: historyService,
		Links:   linkService,
		Scraper: scraper,
		Logger:  logger,
	}

	if _, err := os.Stat(config.Database.Path); err == nil {
		if db, err := shared.NewDatabase(config.Database.Path); err == nil {
			shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
			opts.DB = db
		} else {
			logger.Warn("failed to open database", "path", config.Database.Path, "error", err)
		}
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "cratedig",
		Usage:    "Enrich listening history and build weekly crate-digging playlists",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
