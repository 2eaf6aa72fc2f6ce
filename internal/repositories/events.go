package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cratedig/cratedig/internal/models"
)

// PlayedTrack is one listening event joined with the metadata the ranking
// filters need.
type PlayedTrack struct {
	models.ListeningEvent
	DurationMS       int
	Instrumentalness float64
	ReleaseDate      string
}

// EventRepository persists raw listening events. Events are append-only;
// repeats are distinct rows and carry ranking weight.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository with the given database connection
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertBatch inserts events inside one transaction.
func (r *EventRepository) InsertBatch(events []models.ListeningEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO listening_events (listener, artist, album, track, played_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.Listener, e.Artist, e.Album, e.Track, e.PlayedAt); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}

	return nil
}

// LastPlayedAt returns the newest event timestamp for a listener. The second
// return value is false when the listener has no events yet.
//
// The column is selected directly rather than through MAX() because the
// driver only converts to time.Time when the column's declared type is
// visible; an aggregate loses it.
func (r *EventRepository) LastPlayedAt(listener int64) (time.Time, bool, error) {
	var last time.Time
	err := r.db.QueryRow(
		`SELECT played_at FROM listening_events WHERE listener = ? ORDER BY played_at DESC LIMIT 1`,
		listener,
	).Scan(&last)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last event: %w", err)
	}
	return last, true, nil
}

// PlayedTracks returns the listener's events in [from, to) joined with track
// metadata. Events whose triple has no track record yet appear with zero
// metadata so callers can still count them.
func (r *EventRepository) PlayedTracks(listener int64, from, to time.Time) ([]PlayedTrack, error) {
	rows, err := r.db.Query(`
		SELECT e.listener, e.artist, e.album, e.track, e.played_at,
			COALESCE(t.duration_ms, 0),
			COALESCE(t.instrumentalness, 0),
			COALESCE(t.release_date, '')
		FROM listening_events e
		LEFT JOIN track_records t
			ON t.artist = e.artist AND t.album = e.album AND t.track = e.track
		WHERE e.listener = ? AND e.played_at >= ? AND e.played_at < ?
		ORDER BY e.played_at ASC
	`, listener, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query played tracks: %w", err)
	}
	defer rows.Close()

	var tracks []PlayedTrack
	for rows.Next() {
		var p PlayedTrack
		if err := rows.Scan(&p.Listener, &p.Artist, &p.Album, &p.Track, &p.PlayedAt,
			&p.DurationMS, &p.Instrumentalness, &p.ReleaseDate); err != nil {
			return nil, fmt.Errorf("failed to scan played track: %w", err)
		}
		tracks = append(tracks, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// RepresentativeTrack picks the track that best stands for an album in the
// listener's window. Priority boosts win first, then distinct play count,
// then total listened duration. When artist is empty the album is matched by
// title alone, which is how compilation albums are looked up.
func (r *EventRepository) RepresentativeTrack(listener int64, artist, album string, from, to time.Time) (*models.TrackRecord, error) {
	row := r.db.QueryRow(`
		SELECT t.id, t.artist, t.album, t.track, t.catalog_track_id, t.catalog_album_id, t.duration_ms
		FROM listening_events e
		JOIN track_records t
			ON t.artist = e.artist AND t.album = e.album AND t.track = e.track
		WHERE e.listener = ?
			AND e.album = ?
			AND (? = '' OR e.artist = ?)
			AND e.played_at >= ? AND e.played_at < ?
		GROUP BY t.id
		ORDER BY t.selection_priority DESC, COUNT(DISTINCT e.played_at) DESC, SUM(t.duration_ms) DESC
		LIMIT 1
	`, listener, album, artist, artist, from, to)

	var t models.TrackRecord
	err := row.Scan(&t.ID, &t.Artist, &t.Album, &t.Track, &t.CatalogTrackID, &t.CatalogAlbumID, &t.DurationMS)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan representative track: %w", err)
	}

	return &t, nil
}
