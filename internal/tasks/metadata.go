package tasks

import (
	"context"
	"fmt"

	"github.com/cratedig/cratedig/internal/models"
)

const metadataBatchSize = 100

// PadReleaseDate completes a partial provider release date to YYYY-MM-DD.
// A bare year lands late in that year so year-boundary filters keep the
// album in its release year; a year-month lands on the first of the month.
func PadReleaseDate(s string) string {
	switch len(s) {
	case 4:
		return s + "-10-31"
	case 7:
		return s + "-01"
	default:
		return s
	}
}

// MetadataStats summarizes one metadata pass.
type MetadataStats struct {
	Scanned int
	Deleted int // records whose catalog ID the provider no longer knows
	Failed  int
}

// FetchMetadata scans resolved records that have no metadata yet, storing
// popularity, release date, audio features, and the provider duration.
//
// A record whose ID yields no feature vector has been dropped from the
// catalog; it is deleted so the next resolution pass can re-match it.
func (e *Engine) FetchMetadata(ctx context.Context) (MetadataStats, error) {
	var stats MetadataStats

	for {
		pending, err := e.store.Tracks.NeedingMetadata(metadataBatchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to load pending records: %w", err)
		}
		if len(pending) == 0 {
			return stats, nil
		}

		progressBefore := stats.Scanned + stats.Deleted

		ids := make([]string, len(pending))
		for i, rec := range pending {
			ids[i] = rec.CatalogTrackID
		}

		if err := e.catalogLimiter.Wait(ctx); err != nil {
			return stats, err
		}
		features, err := e.catalog.AudioFeatures(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			// The whole batch is lost this pass; the records stay pending
			// and the next run retries them.
			stats.Failed += len(pending)
			e.recordFailure("metadata", fmt.Sprintf("audio features batch of %d", len(pending)), err)
			return stats, nil
		}

		byID := make(map[string]models.AudioFeatures, len(features))
		durations := make(map[string]int, len(features))
		for _, f := range features {
			byID[f.ID] = models.AudioFeatures{
				Danceability:     f.Danceability,
				Energy:           f.Energy,
				Valence:          f.Valence,
				Tempo:            f.Tempo,
				Key:              f.Key,
				Mode:             f.Mode,
				Loudness:         f.Loudness,
				Speechiness:      f.Speechiness,
				Instrumentalness: f.Instrumentalness,
				Liveness:         f.Liveness,
			}
			durations[f.ID] = f.DurationMS
		}

		for _, rec := range pending {
			vector, known := byID[rec.CatalogTrackID]
			if !known {
				stats.Deleted++
				e.logger.Info("dropping record unknown to catalog",
					"artist", rec.Artist, "track", rec.Track, "catalog_id", rec.CatalogTrackID)
				if err := e.store.Tracks.DeleteByCatalogID(rec.CatalogTrackID); err != nil {
					return stats, err
				}
				continue
			}

			if err := e.catalogLimiter.Wait(ctx); err != nil {
				return stats, err
			}
			detail, err := e.catalog.Track(ctx, rec.CatalogTrackID)
			if err != nil {
				stats.Failed++
				e.recordFailure("metadata", fmt.Sprintf("%s - %s", rec.Artist, rec.Track), err)
				continue
			}

			err = e.store.Tracks.SetMetadata(
				rec.ID,
				detail.Popularity,
				durations[rec.CatalogTrackID],
				PadReleaseDate(detail.ReleaseDate),
				vector,
				e.now(),
			)
			if err != nil {
				return stats, err
			}
			stats.Scanned++
		}

		// Albums become visible once their tracks are resolved and scanned.
		if _, err := e.store.Albums.CreateMissing(); err != nil {
			return stats, fmt.Errorf("failed to create album records: %w", err)
		}

		// Every remaining record failed; leave them for the next run.
		if stats.Scanned+stats.Deleted == progressBefore {
			return stats, nil
		}
	}
}
