package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/cratedig/cratedig/internal/match"
	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/services"
	"github.com/cratedig/cratedig/internal/shared"
)

// EnrichStats summarizes one duration-enrichment pass, counting how many
// records each source filled.
type EnrichStats struct {
	FromCatalog    int
	FromHistory    int
	FromStorefront int
	FromAlbumAvg   int
	FromGlobalAvg  int
	Defaulted      int
}

// ResolveStorefronts looks up storefront links for albums that have none
// yet, bounded by the per-run scrape budget.
//
// Like catalog resolution, only a completed lookup stamps the scan time.
func (e *Engine) ResolveStorefronts(ctx context.Context) error {
	if e.links == nil {
		return nil
	}

	albums, err := e.store.Albums.NeedingStorefront(e.scrapeBudget)
	if err != nil {
		return fmt.Errorf("failed to load albums: %w", err)
	}

	for _, album := range albums {
		if err := e.catalogLimiter.Wait(ctx); err != nil {
			return err
		}

		links, err := e.links.StorefrontLinks(ctx, album.CatalogAlbumID)
		if err != nil {
			e.recordFailure("storefront", fmt.Sprintf("%s - %s", album.Artist, album.Album), err)
			continue
		}

		url, ok := links["bandcamp"]
		if !ok {
			if err := e.store.Albums.StampStorefrontScan(album.ID, e.now()); err != nil {
				return err
			}
			continue
		}

		if err := e.store.Albums.SetStorefrontURL(album.ID, url, e.now()); err != nil {
			return err
		}
	}

	return nil
}

// EnrichDurations fills unknown durations from progressively weaker sources:
// a catalog album search, the history provider, a storefront page scrape,
// then album and global averages, and finally the fixed default.
//
// Higher-confidence stages write through SetDurationIfUnknown, so a value
// confirmed earlier in the pass is never replaced by a weaker one.
func (e *Engine) EnrichDurations(ctx context.Context) (EnrichStats, error) {
	var stats EnrichStats

	if err := e.ResolveStorefronts(ctx); err != nil {
		return stats, err
	}

	missing, err := e.store.Tracks.MissingDuration()
	if err != nil {
		return stats, fmt.Errorf("failed to load records: %w", err)
	}

	e.logger.Info("enriching durations", "missing", len(missing))

	// Storefront track lists are fetched at most once per album per pass,
	// and the number of distinct pages fetched is capped by the scrape
	// budget. Scraping is the slow, fragile source; the cap keeps it from
	// dominating a run.
	scraped := make(map[string][]services.ScrapedTrack)

	for _, rec := range missing {
		ms, err := e.durationFromCatalog(ctx, rec)
		if err != nil {
			e.recordFailure("enrich", fmt.Sprintf("%s - %s", rec.Artist, rec.Track), err)
		} else if ms > 0 {
			stats.FromCatalog++
			if err := e.store.Tracks.SetDurationIfUnknown(rec.ID, ms); err != nil {
				return stats, err
			}
			continue
		}

		ms, err = e.durationFromHistory(ctx, rec)
		if err != nil {
			e.recordFailure("enrich", fmt.Sprintf("%s - %s", rec.Artist, rec.Track), err)
		} else if ms > 0 {
			stats.FromHistory++
			if err := e.store.Tracks.SetDurationIfUnknown(rec.ID, ms); err != nil {
				return stats, err
			}
			continue
		}

		ms, err = e.durationFromStorefront(ctx, rec, scraped)
		if err != nil {
			e.recordFailure("scrape", fmt.Sprintf("%s - %s", rec.Artist, rec.Album), err)
		} else if ms > 0 {
			stats.FromStorefront++
			if err := e.store.Tracks.SetDurationIfUnknown(rec.ID, ms); err != nil {
				return stats, err
			}
			continue
		}

		ms, source, err := e.durationFromAverages(rec)
		if err != nil {
			return stats, err
		}
		switch source {
		case "album":
			stats.FromAlbumAvg++
		case "global":
			stats.FromGlobalAvg++
		default:
			stats.Defaulted++
		}
		if err := e.store.Tracks.SetDurationIfUnknown(rec.ID, ms); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// durationFromCatalog searches the catalog for the record's album and takes
// the duration of the result whose album and title both match exactly after
// normalization. The exactness keeps mislabeled reissues out.
func (e *Engine) durationFromCatalog(ctx context.Context, rec models.TrackRecord) (int, error) {
	if e.catalog == nil {
		return 0, nil
	}
	if err := e.catalogLimiter.Wait(ctx); err != nil {
		return 0, err
	}

	results, err := e.catalog.SearchStructured(ctx, rec.Artist, rec.Album, "", 50)
	if err != nil {
		return 0, err
	}

	wantAlbum := match.Normalize(rec.Album)
	wantTrack := match.Normalize(rec.Track)

	for _, c := range results {
		if match.Normalize(c.Album) != wantAlbum {
			continue
		}
		if match.Normalize(c.Name) == wantTrack && c.DurationMS > 0 {
			return c.DurationMS, nil
		}
	}

	return 0, nil
}

func (e *Engine) durationFromHistory(ctx context.Context, rec models.TrackRecord) (int, error) {
	if e.history == nil {
		return 0, nil
	}
	if err := e.historyLimiter.Wait(ctx); err != nil {
		return 0, err
	}

	info, err := e.history.TrackInfo(ctx, rec.Artist, rec.Track, rec.Album)
	if errors.Is(err, shared.ErrTrackNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return info.DurationMS, nil
}

// durationFromStorefront matches the record against its album's scraped
// track listing. The cache doubles as the budget ledger: once it holds
// scrapeBudget pages, no further pages are fetched this run.
func (e *Engine) durationFromStorefront(ctx context.Context, rec models.TrackRecord, cache map[string][]services.ScrapedTrack) (int, error) {
	if e.scraper == nil {
		return 0, nil
	}
	album, err := e.store.Albums.GetByPair(rec.Artist, rec.Album)
	if errors.Is(err, shared.ErrAlbumNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if album.StorefrontURL == "" {
		return 0, nil
	}

	tracks, ok := cache[album.StorefrontURL]
	if !ok {
		if len(cache) >= e.scrapeBudget {
			return 0, nil
		}
		tracks, err = e.scraper.TrackList(ctx, album.StorefrontURL)
		if err != nil {
			cache[album.StorefrontURL] = nil
			if errors.Is(err, shared.ErrNoStructuredData) {
				return 0, nil
			}
			return 0, err
		}
		cache[album.StorefrontURL] = tracks
	}

	want := match.Normalize(rec.Track)
	for _, t := range tracks {
		if match.Normalize(t.Name) == want && t.DurationMS > 0 {
			return t.DurationMS, nil
		}
	}

	return 0, nil
}

// durationFromAverages falls back to the album average, then the global
// average, then the fixed default. Never returns zero.
func (e *Engine) durationFromAverages(rec models.TrackRecord) (int, string, error) {
	avg, err := e.store.Tracks.AlbumAverageDuration(rec.Artist, rec.Album)
	if err != nil {
		return 0, "", err
	}
	if avg > 0 {
		return avg, "album", nil
	}

	avg, err = e.store.Tracks.GlobalAverageDuration()
	if err != nil {
		return 0, "", err
	}
	if avg > 0 {
		return avg, "global", nil
	}

	return models.DefaultDurationMS, "default", nil
}
