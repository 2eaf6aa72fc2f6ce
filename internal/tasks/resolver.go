package tasks

import (
	"context"
	"fmt"

	"github.com/cratedig/cratedig/internal/match"
	"github.com/cratedig/cratedig/internal/models"
)

const searchLimit = 50

// Resolve attempts to match one track record against the catalog.
//
// The lookup cascades: a strict pass requires the album title to agree,
// a relaxed pass drops the album check for singles and retitled reissues.
// A transport error is returned as-is so the caller does not treat it as a
// completed no-match scan.
func (e *Engine) Resolve(ctx context.Context, rec models.TrackRecord) (models.ResolutionResult, error) {
	query := fmt.Sprintf("%s %s", rec.Artist, rec.Track)

	results, err := e.catalog.SearchTracks(ctx, query, searchLimit)
	if err != nil {
		return models.ResolutionResult{}, err
	}

	for _, strict := range []bool{true, false} {
		for _, c := range results {
			candidate := match.Candidate{Artist: c.Artist, Track: c.Name, Album: c.Album}
			if match.IsMatch(candidate, rec.Artist, rec.Album, rec.Track, strict) {
				return models.ResolutionResult{
					Matched:        true,
					CatalogTrackID: c.ID,
					CatalogAlbumID: c.AlbumID,
				}, nil
			}
		}
	}

	return models.ResolutionResult{}, nil
}

// ResolveStats summarizes one resolution pass.
type ResolveStats struct {
	Created   int // new track records from unseen triples
	Attempted int
	Matched   int
	Unmatched int
	Failed    int // transport failures, retried on the next run
}

// ResolveAll creates records for unseen triples and resolves every eligible
// unresolved record against the catalog.
//
// Only a completed lookup stamps the scan time: a no-match starts the re-scan
// cooldown, while a transport failure leaves the record untouched so the next
// run retries it.
func (e *Engine) ResolveAll(ctx context.Context) (ResolveStats, error) {
	var stats ResolveStats

	created, err := e.store.Tracks.CreateMissing()
	if err != nil {
		return stats, fmt.Errorf("failed to create track records: %w", err)
	}
	stats.Created = created

	candidates, err := e.store.Tracks.UnresolvedCandidates(e.cooldown, e.recentWindow, e.now())
	if err != nil {
		return stats, fmt.Errorf("failed to load candidates: %w", err)
	}

	e.logger.Info("resolving tracks", "created", created, "candidates", len(candidates))

	for _, rec := range candidates {
		if err := e.catalogLimiter.Wait(ctx); err != nil {
			return stats, err
		}
		stats.Attempted++

		result, err := e.Resolve(ctx, rec)
		if err != nil {
			stats.Failed++
			e.recordFailure("resolve", fmt.Sprintf("%s - %s", rec.Artist, rec.Track), err)
			continue
		}

		if !result.Matched {
			stats.Unmatched++
			if err := e.store.Tracks.StampIDScan(rec.ID, e.now()); err != nil {
				return stats, err
			}
			continue
		}

		stats.Matched++
		if err := e.store.Tracks.SetCatalogIDs(rec.ID, result.CatalogTrackID, result.CatalogAlbumID, e.now()); err != nil {
			return stats, err
		}
	}

	e.logger.Info("resolution finished",
		"matched", stats.Matched, "unmatched", stats.Unmatched, "failed", stats.Failed)

	return stats, nil
}
