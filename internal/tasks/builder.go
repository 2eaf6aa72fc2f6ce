package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cratedig/cratedig/internal/match"
	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
)

// placeholderTrack names a pick when an album is chosen but no concrete
// track title could be determined.
const placeholderTrack = "Track 1"

// BuildPlaylist turns a profile's ranked candidate albums into a playlist:
// one representative track per album, written to the destination playlist
// and persisted as picks.
//
// The destination is cleared first, then tracks append one by one, so a
// partial failure leaves a valid shorter playlist rather than a stale one.
func (e *Engine) BuildPlaylist(ctx context.Context, p models.ListenerProfile) ([]models.PlaylistPick, error) {
	candidates, err := e.BuildCandidates(p)
	if err != nil {
		return nil, err
	}

	e.logger.Info("building playlist", "listener", p.ID, "candidates", len(candidates))

	if p.PlaylistID != "" && e.catalog != nil {
		if err := e.catalogLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		if err := e.catalog.ReplacePlaylistTracks(ctx, p.PlaylistID, nil); err != nil {
			return nil, fmt.Errorf("failed to clear playlist: %w", err)
		}
	}

	// Representatives draw on a full year of history, not just the ranking
	// window, so a retrospective build can still reuse resolved tracks.
	builtAt := e.now()
	repFrom := builtAt.AddDate(0, 0, -365)

	var picks []models.PlaylistPick
	for _, candidate := range candidates {
		if len(picks) >= e.playlistSize {
			break
		}

		pick, err := e.pickForAlbum(ctx, p, candidate, repFrom, builtAt)
		if err != nil {
			e.recordFailure("build", fmt.Sprintf("%s - %s", candidate.Artist, candidate.Album), err)
			continue
		}
		if pick == nil {
			continue
		}

		pick.Listener = p.ID
		pick.Rank = len(picks) + 1
		pick.BuiltAt = builtAt

		if pick.CatalogTrackID != "" && p.PlaylistID != "" && e.catalog != nil {
			if err := e.catalogLimiter.Wait(ctx); err != nil {
				return nil, err
			}
			if err := e.catalog.AppendPlaylistTrack(ctx, p.PlaylistID, pick.CatalogTrackID); err != nil {
				e.recordFailure("build", fmt.Sprintf("%s - %s", pick.Artist, pick.Track), err)
				continue
			}
		}

		picks = append(picks, *pick)
	}

	if err := e.store.Picks.Replace(p.ID, picks); err != nil {
		return nil, err
	}

	e.logger.Info("playlist built", "listener", p.ID, "picks", len(picks))
	return picks, nil
}

// pickForAlbum selects the track that represents a candidate album.
// Compilation albums credited to various artists are looked up by album
// title alone. When the store has no resolved representative, the most
// played title (or the placeholder) goes through the search cascade, with a
// structured album search as the last resort. An album that resolves to
// nothing returns a nil pick and does not consume a playlist slot.
func (e *Engine) pickForAlbum(ctx context.Context, p models.ListenerProfile, candidate models.CandidateAlbum, from, to time.Time) (*models.PlaylistPick, error) {
	lookupArtist := candidate.Artist
	if lookupArtist == models.VariousArtists {
		lookupArtist = ""
	}

	rep, err := e.store.Events.RepresentativeTrack(p.ID, lookupArtist, candidate.Album, from, to)
	if err != nil {
		return nil, err
	}

	pick := &models.PlaylistPick{
		Artist: candidate.Artist,
		Album:  candidate.Album,
	}

	if rep != nil && rep.Resolved() {
		pick.Track = rep.Track
		pick.CatalogTrackID = rep.CatalogTrackID
		pick.CatalogAlbumID = rep.CatalogAlbumID
		return e.attachStorefront(pick)
	}

	pick.Track = placeholderTrack
	if rep != nil && rep.Track != "" {
		pick.Track = rep.Track
	}

	if e.catalog == nil {
		return nil, nil
	}

	if err := e.catalogLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	result, err := e.Resolve(ctx, models.TrackRecord{
		Artist: candidate.Artist,
		Album:  candidate.Album,
		Track:  pick.Track,
	})
	if err != nil {
		return nil, err
	}
	if result.Matched {
		pick.CatalogTrackID = result.CatalogTrackID
		pick.CatalogAlbumID = result.CatalogAlbumID
		return e.attachStorefront(pick)
	}

	if err := e.catalogLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	results, err := e.catalog.SearchStructured(ctx, lookupArtist, candidate.Album, "", searchLimit)
	if err != nil {
		return nil, err
	}

	wantAlbum := match.Normalize(candidate.Album)
	for _, c := range results {
		if match.Normalize(c.Album) != wantAlbum {
			continue
		}
		pick.Track = c.Name
		pick.CatalogTrackID = c.ID
		pick.CatalogAlbumID = c.AlbumID
		return e.attachStorefront(pick)
	}

	return nil, nil
}

func (e *Engine) attachStorefront(pick *models.PlaylistPick) (*models.PlaylistPick, error) {
	album, err := e.store.Albums.GetByPair(pick.Artist, pick.Album)
	if err != nil && !errors.Is(err, shared.ErrAlbumNotFound) {
		return nil, err
	}
	if album != nil {
		pick.StorefrontURL = album.StorefrontURL
	}

	return pick, nil
}

// Run executes the full pipeline for every approved profile that is due:
// ingest, resolve, metadata, duration enrichment, then per-profile builds.
func (e *Engine) Run(ctx context.Context) error {
	profiles, err := e.store.Profiles.Approved()
	if err != nil {
		return err
	}

	now := e.now()
	var due []models.ListenerProfile
	for _, p := range profiles {
		if profileDue(p, now) {
			due = append(due, p)
		}
	}

	e.logger.Info("pipeline run", "approved", len(profiles), "due", len(due))
	if len(due) == 0 {
		return nil
	}

	for _, p := range due {
		if _, err := e.IngestListener(ctx, p); err != nil {
			// Failed pages are logged inside the stream; anything that
			// surfaces here is cancellation or a store write failure, and
			// resolution proceeds on what landed.
			e.logger.Warn("ingestion incomplete", "listener", p.ID, "err", err)
			continue
		}
	}

	if _, err := e.ResolveAll(ctx); err != nil {
		return err
	}
	if _, err := e.FetchMetadata(ctx); err != nil {
		return err
	}
	if _, err := e.EnrichDurations(ctx); err != nil {
		return err
	}

	for _, p := range due {
		if _, err := e.BuildPlaylist(ctx, p); err != nil {
			e.recordFailure("build", p.HistoryID, err)
			continue
		}
		if p.Period == models.PeriodYear {
			if err := e.store.Profiles.MarkPopulated(p.ID, e.now()); err != nil {
				return err
			}
		}
	}

	return nil
}
