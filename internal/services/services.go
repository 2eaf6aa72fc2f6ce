// package services defines client interfaces for the external providers the
// pipeline talks to
//
// catalog (track metadata and playlists), history (listening events),
// links (cross-platform album links), storefront (album page scraping)
package services

import (
	"context"
	"time"
)

// Catalog is the track-metadata provider. Implementations authenticate with
// client credentials for reads and a user grant for playlist writes.
type Catalog interface {
	// SearchTracks runs a free-text track search and returns up to limit results.
	SearchTracks(ctx context.Context, query string, limit int) ([]CatalogTrack, error)

	// SearchStructured runs a field-qualified search. Empty fields are omitted
	// from the query.
	SearchStructured(ctx context.Context, artist, album, track string, limit int) ([]CatalogTrack, error)

	// Track retrieves a single track by its catalog ID.
	Track(ctx context.Context, trackID string) (*CatalogTrack, error)

	// AudioFeatures retrieves the audio-feature vectors for up to 100 tracks.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]TrackFeatures, error)

	// ReplacePlaylistTracks overwrites the playlist's contents with the given
	// track IDs. An empty slice clears the playlist.
	ReplacePlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// AppendPlaylistTrack adds a single track to the end of the playlist.
	AppendPlaylistTrack(ctx context.Context, playlistID, trackID string) error

	// Name returns the provider name for logging.
	Name() string
}

// History is the listening-history provider (scrobble-style).
type History interface {
	// RecentTracks retrieves one page of a user's listening events recorded
	// at or after from. Pages are 1-indexed.
	RecentTracks(ctx context.Context, user string, page, limit int, from time.Time) (*RecentTracksPage, error)

	// TrackInfo retrieves provider-side metadata for a single track,
	// including its duration when known. The album narrows the lookup and
	// may be empty.
	TrackInfo(ctx context.Context, artist, track, album string) (*TrackDetail, error)
}

// LinkResolver maps a catalog album ID to equivalent pages on other platforms.
type LinkResolver interface {
	// StorefrontLinks returns platform name to URL for the album.
	StorefrontLinks(ctx context.Context, catalogAlbumID string) (map[string]string, error)
}

// Scraper extracts track listings from public album pages.
type Scraper interface {
	// TrackList fetches the page at pageURL and returns its track listing.
	TrackList(ctx context.Context, pageURL string) ([]ScrapedTrack, error)
}

// CatalogTrack is a track as returned by the catalog provider.
type CatalogTrack struct {
	ID          string
	Name        string
	Artist      string
	Album       string
	AlbumID     string
	ReleaseDate string // as returned: YYYY, YYYY-MM, or YYYY-MM-DD
	DurationMS  int
	Popularity  int
	TotalTracks int
}

// TrackFeatures pairs a catalog track ID with its audio-feature vector.
// DurationMS is carried separately because the features endpoint is the
// authoritative duration source.
type TrackFeatures struct {
	ID               string
	DurationMS       int
	Danceability     float64
	Energy           float64
	Valence          float64
	Tempo            float64
	Key              int
	Mode             int
	Loudness         float64
	Speechiness      float64
	Instrumentalness float64
	Liveness         float64
}

// RecentTracksPage is one page of a user's listening events.
type RecentTracksPage struct {
	Tracks     []RecentTrack
	Page       int
	TotalPages int
}

// RecentTrack is one play reported by the history provider.
type RecentTrack struct {
	Artist     string
	Album      string
	Track      string
	PlayedAt   time.Time
	NowPlaying bool // in-progress play without a timestamp; callers skip these
}

// TrackDetail is provider-side metadata for a single track.
type TrackDetail struct {
	Artist     string
	Track      string
	DurationMS int
}

// ScrapedTrack is one entry from a scraped album track listing.
type ScrapedTrack struct {
	Name       string
	DurationMS int
}
