package models

import "time"

// Period selects the aggregation window length for a listener's playlist.
type Period string

const (
	PeriodWeek Period = "WEEK" // trailing 7 days
	PeriodYear Period = "YEAR" // trailing 365 days
)

// Days returns the window length in days for the period.
func (p Period) Days() int {
	if p == PeriodWeek {
		return 7
	}
	return 365
}

// VariousArtists is the compilation-album pseudo artist. Albums credited to
// it group by album title alone, since their tracks carry differing artists.
const VariousArtists = "Various Artists"

// DefaultDurationMS is the terminal duration fallback when no source, album
// average, or global average can supply a value.
const DefaultDurationMS = 240000

// ListeningEvent is one recorded play of a track by a listener.
// Immutable once ingested; repeats are meaningful for ranking.
type ListeningEvent struct {
	Listener int64
	Artist   string
	Album    string
	Track    string
	PlayedAt time.Time
}

// AudioFeatures is the catalog's audio-feature vector for a track.
type AudioFeatures struct {
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

// TrackRecord is canonical metadata keyed by the (artist, album, track)
// triple. Created lazily when the triple first appears in listening events.
//
// DurationMS == 0 means "unknown"; a confirmed non-zero duration is never
// overwritten by a lower-confidence source.
type TrackRecord struct {
	ID                string // surrogate id assigned at first-seen time
	Artist            string
	Album             string
	Track             string
	CatalogTrackID    string
	CatalogAlbumID    string
	DurationMS        int
	Popularity        int
	Features          AudioFeatures
	ReleaseDate       string // YYYY-MM-DD, padded from partial provider dates
	IDScanAt          *time.Time
	MetaScanAt        *time.Time
	SelectionPriority int // manual boost for representative-track selection
}

// Resolved reports whether the record carries a catalog track identifier.
func (t *TrackRecord) Resolved() bool {
	return t.CatalogTrackID != ""
}

// AlbumRecord is album-level metadata keyed by (artist, album).
type AlbumRecord struct {
	ID               string
	Artist           string
	Album            string
	CatalogAlbumID   string
	StorefrontURL    string
	StorefrontScanAt *time.Time
	IDScanAt         *time.Time
}

// CandidateAlbum is an ephemeral ranking unit: one album with its summed
// listening duration inside a window. Not persisted beyond a build cycle.
type CandidateAlbum struct {
	Artist          string
	Album           string
	TotalDurationMS int64
	Rank            int
}

// ResolutionResult is the outcome of a catalog resolution attempt.
// Either fully populated (Matched true) or empty; never partial.
type ResolutionResult struct {
	Matched        bool
	CatalogTrackID string
	CatalogAlbumID string
}

// ListenerProfile is the per-listener playlist configuration.
type ListenerProfile struct {
	ID          int64
	HistoryID   string // external listener id at the history provider
	PlaylistID  string // opaque destination playlist identifier
	Period      Period
	YearsAgo    int    // shift the window back this many years
	ReleaseYear string // "ALL" or a four-digit year filter
	SongsOnly   bool
	ActiveStart string // "HH:MM", empty disables the active-hours filter
	ActiveEnd   string
	Approved    bool
	PopulatedAt *time.Time // gates annual reruns
}

// PlaylistPick is one ranked representative track persisted for a listener's
// built playlist.
type PlaylistPick struct {
	ID             string
	Listener       int64
	Rank           int
	Artist         string
	Album          string
	Track          string
	CatalogTrackID string
	CatalogAlbumID string
	StorefrontURL  string
	BuiltAt        time.Time
}
