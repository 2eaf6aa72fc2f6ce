package main

import (
	"context"
	"fmt"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

// Ingest fetches new listening history. With --profile it targets one
// profile; otherwise it walks every approved profile.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if r.history == nil {
		return fmt.Errorf("%w: history service not initialized", shared.ErrServiceUnavailable)
	}

	var profiles []models.ListenerProfile
	if id := cmd.Int64("profile"); id != 0 {
		p, err := r.store.Profiles.Get(id)
		if err != nil {
			return fmt.Errorf("failed to load profile %d: %w", id, err)
		}
		profiles = []models.ListenerProfile{*p}
	} else {
		var err error
		if profiles, err = r.store.Profiles.Approved(); err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
	}

	if len(profiles) == 0 {
		return r.writePlain("No approved profiles to ingest.\n")
	}

	total := 0
	for _, p := range profiles {
		count, err := r.engine.IngestListener(ctx, p)
		total += count
		if err != nil {
			r.logger.Warn("ingest incomplete", "profile", p.ID, "user", p.HistoryID, "error", err)
			continue
		}
		r.logger.Info("ingested history", "profile", p.ID, "user", p.HistoryID, "events", count)
	}

	r.writePlain("Ingested %d new plays across %d profiles.\n", total, len(profiles))
	return nil
}

// Resolve matches recently played tracks against the catalog.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if r.catalog == nil {
		return fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	stats, err := r.engine.ResolveAll(ctx)
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	r.writePlain("Resolved %d/%d tracks (%d new records, %d unmatched, %d failed).\n",
		stats.Matched, stats.Attempted, stats.Created, stats.Unmatched, stats.Failed)
	return nil
}

// EnrichAll runs every enrichment stage in pipeline order: catalog
// resolution, metadata fetch, then the duration cascade.
func (r *Runner) EnrichAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if r.catalog == nil {
		return fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	if err := r.Resolve(ctx, cmd); err != nil {
		return err
	}
	if err := r.EnrichMetadata(ctx, cmd); err != nil {
		return err
	}
	return r.EnrichDurations(ctx, cmd)
}

// EnrichMetadata fetches audio features, popularity, and release dates for
// resolved tracks that have not been scanned yet.
func (r *Runner) EnrichMetadata(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if r.catalog == nil {
		return fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	stats, err := r.engine.FetchMetadata(ctx)
	if err != nil {
		return fmt.Errorf("metadata fetch failed: %w", err)
	}

	r.writePlain("Scanned %d tracks, removed %d stale records, %d failed.\n",
		stats.Scanned, stats.Deleted, stats.Failed)
	return nil
}

// EnrichDurations fills unknown track durations from every available source.
func (r *Runner) EnrichDurations(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	stats, err := r.engine.EnrichDurations(ctx)
	if err != nil {
		return fmt.Errorf("duration enrichment failed: %w", err)
	}

	r.writePlain("Durations filled: %d catalog, %d history, %d storefront, %d album avg, %d global avg, %d defaulted.\n",
		stats.FromCatalog, stats.FromHistory, stats.FromStorefront,
		stats.FromAlbumAvg, stats.FromGlobalAvg, stats.Defaulted)
	return nil
}

// EnrichStorefronts resolves storefront links for albums missing one.
func (r *Runner) EnrichStorefronts(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if r.links == nil {
		return fmt.Errorf("%w: link service not initialized", shared.ErrServiceUnavailable)
	}

	if err := r.engine.ResolveStorefronts(ctx); err != nil {
		return fmt.Errorf("storefront resolution failed: %w", err)
	}

	r.writePlain("Storefront resolution complete.\n")
	return nil
}

// RunAll runs the full pipeline: ingest, resolve, enrich, and build for
// every approved profile that is due.
func (r *Runner) RunAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if r.catalog == nil {
		return fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if r.history == nil {
		return fmt.Errorf("%w: history service not initialized", shared.ErrServiceUnavailable)
	}

	if err := r.engine.Run(ctx); err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	r.writePlain("Pipeline run complete.\n")
	return nil
}

// Errors prints recent entries from the persistent error log.
func (r *Runner) Errors(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	logged, err := r.store.Errors.Recent(cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to read error log: %w", err)
	}

	if len(logged) == 0 {
		return r.writePlain("No recorded failures.\n")
	}

	for _, e := range logged {
		r.writePlain("%s  [%s] %s: %s\n",
			e.LoggedAt.Format("2006-01-02 15:04"), e.Stage, e.Context, e.Message)
	}
	return nil
}
