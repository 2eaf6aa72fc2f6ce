package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
)

// TrackRepository persists canonical track metadata keyed by the
// (artist, album, track) triple.
//
// duration_ms = 0 is the "unknown" sentinel; confirmed durations are only
// replaced through SetDuration, never silently downgraded.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = `
	id, artist, album, track, catalog_track_id, catalog_album_id,
	duration_ms, popularity, danceability, energy, valence, tempo,
	key_sig, mode, loudness, speechiness, instrumentalness, liveness,
	release_date, id_scan_at, meta_scan_at, selection_priority
`

func scanTrack(row interface{ Scan(...any) error }) (*models.TrackRecord, error) {
	var t models.TrackRecord
	var idScan, metaScan sql.NullTime

	err := row.Scan(
		&t.ID, &t.Artist, &t.Album, &t.Track, &t.CatalogTrackID, &t.CatalogAlbumID,
		&t.DurationMS, &t.Popularity,
		&t.Features.Danceability, &t.Features.Energy, &t.Features.Valence, &t.Features.Tempo,
		&t.Features.Key, &t.Features.Mode, &t.Features.Loudness, &t.Features.Speechiness,
		&t.Features.Instrumentalness, &t.Features.Liveness,
		&t.ReleaseDate, &idScan, &metaScan, &t.SelectionPriority,
	)
	if err != nil {
		return nil, err
	}

	if idScan.Valid {
		t.IDScanAt = &idScan.Time
	}
	if metaScan.Valid {
		t.MetaScanAt = &metaScan.Time
	}

	return &t, nil
}

func (r *TrackRepository) queryTracks(query string, args ...any) ([]models.TrackRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.TrackRecord
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// GetByTriple retrieves the record for an exact (artist, album, track) triple.
func (r *TrackRepository) GetByTriple(artist, album, track string) (*models.TrackRecord, error) {
	row := r.db.QueryRow(
		`SELECT `+trackColumns+` FROM track_records WHERE artist = ? AND album = ? AND track = ?`,
		artist, album, track,
	)

	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s - %s", shared.ErrTrackNotFound, artist, track)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	return t, nil
}

// CreateMissing inserts empty records for every event triple that has none
// yet and returns how many were created.
func (r *TrackRepository) CreateMissing() (int, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT e.artist, e.album, e.track
		FROM listening_events e
		LEFT JOIN track_records t
			ON t.artist = e.artist AND t.album = e.album AND t.track = e.track
		WHERE t.id IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query missing triples: %w", err)
	}
	defer rows.Close()

	type triple struct{ artist, album, track string }
	var missing []triple
	for rows.Next() {
		var tr triple
		if err := rows.Scan(&tr.artist, &tr.album, &tr.track); err != nil {
			return 0, fmt.Errorf("failed to scan triple: %w", err)
		}
		missing = append(missing, tr)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error: %w", err)
	}

	for _, tr := range missing {
		_, err := r.db.Exec(
			`INSERT INTO track_records (id, artist, album, track) VALUES (?, ?, ?, ?)`,
			shared.GenerateID(), tr.artist, tr.album, tr.track,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert track record: %w", err)
		}
	}

	return len(missing), nil
}

// UnresolvedCandidates returns unresolved records eligible for a catalog
// lookup: never scanned or scanned before the cooldown, and played within
// the recent window.
func (r *TrackRepository) UnresolvedCandidates(cooldown, recentWindow time.Duration, now time.Time) ([]models.TrackRecord, error) {
	return r.queryTracks(`
		SELECT `+trackColumns+`
		FROM track_records t
		WHERE t.catalog_track_id = ''
			AND (t.id_scan_at IS NULL OR t.id_scan_at < ?)
			AND EXISTS (
				SELECT 1 FROM listening_events e
				WHERE e.artist = t.artist AND e.album = t.album AND e.track = t.track
					AND e.played_at >= ?
			)
		ORDER BY t.artist, t.album, t.track
	`, now.Add(-cooldown), now.Add(-recentWindow))
}

// SetCatalogIDs records a successful resolution and stamps the scan time.
func (r *TrackRepository) SetCatalogIDs(id, catalogTrackID, catalogAlbumID string, now time.Time) error {
	result, err := r.db.Exec(
		`UPDATE track_records SET catalog_track_id = ?, catalog_album_id = ?, id_scan_at = ? WHERE id = ?`,
		catalogTrackID, catalogAlbumID, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set catalog IDs: %w", err)
	}
	return requireAffected(result, id)
}

// StampIDScan records a completed lookup that found no match, starting the
// re-scan cooldown. Not called on transport failures.
func (r *TrackRepository) StampIDScan(id string, now time.Time) error {
	result, err := r.db.Exec(`UPDATE track_records SET id_scan_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to stamp scan: %w", err)
	}
	return requireAffected(result, id)
}

// NeedingMetadata returns resolved records that have not had a metadata scan.
func (r *TrackRepository) NeedingMetadata(limit int) ([]models.TrackRecord, error) {
	return r.queryTracks(`
		SELECT `+trackColumns+`
		FROM track_records
		WHERE catalog_track_id != '' AND meta_scan_at IS NULL
		ORDER BY artist, album, track
		LIMIT ?
	`, limit)
}

// SetMetadata stores the catalog metadata scan result. A zero duration
// leaves any existing duration untouched.
func (r *TrackRepository) SetMetadata(id string, popularity, durationMS int, releaseDate string, f models.AudioFeatures, now time.Time) error {
	result, err := r.db.Exec(`
		UPDATE track_records SET
			popularity = ?,
			duration_ms = CASE WHEN ? > 0 THEN ? ELSE duration_ms END,
			release_date = ?,
			danceability = ?, energy = ?, valence = ?, tempo = ?,
			key_sig = ?, mode = ?, loudness = ?, speechiness = ?,
			instrumentalness = ?, liveness = ?,
			meta_scan_at = ?
		WHERE id = ?
	`, popularity, durationMS, durationMS, releaseDate,
		f.Danceability, f.Energy, f.Valence, f.Tempo,
		f.Key, f.Mode, f.Loudness, f.Speechiness,
		f.Instrumentalness, f.Liveness,
		now, id)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return requireAffected(result, id)
}

// DeleteByCatalogID removes records whose catalog ID the provider no longer
// recognizes, so they become eligible for a fresh resolution.
func (r *TrackRepository) DeleteByCatalogID(catalogTrackID string) error {
	if catalogTrackID == "" {
		return fmt.Errorf("%w: empty catalog track ID", shared.ErrInvalidArgument)
	}
	_, err := r.db.Exec(`DELETE FROM track_records WHERE catalog_track_id = ?`, catalogTrackID)
	if err != nil {
		return fmt.Errorf("failed to delete track record: %w", err)
	}
	return nil
}

// MissingDuration returns records still carrying the unknown-duration
// sentinel.
func (r *TrackRepository) MissingDuration() ([]models.TrackRecord, error) {
	return r.queryTracks(`
		SELECT ` + trackColumns + `
		FROM track_records
		WHERE duration_ms = 0
		ORDER BY artist, album, track
	`)
}

// SetDuration stores a confirmed duration unconditionally.
func (r *TrackRepository) SetDuration(id string, durationMS int) error {
	result, err := r.db.Exec(`UPDATE track_records SET duration_ms = ? WHERE id = ?`, durationMS, id)
	if err != nil {
		return fmt.Errorf("failed to set duration: %w", err)
	}
	return requireAffected(result, id)
}

// SetDurationIfUnknown stores a duration only when the record still carries
// the unknown sentinel. Used by lower-confidence sources so they never
// overwrite a confirmed value.
func (r *TrackRepository) SetDurationIfUnknown(id string, durationMS int) error {
	_, err := r.db.Exec(
		`UPDATE track_records SET duration_ms = ? WHERE id = ? AND duration_ms = 0`,
		durationMS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set duration: %w", err)
	}
	return nil
}

// AlbumAverageDuration averages the known durations on an album. Returns 0
// when the album has no known durations.
func (r *TrackRepository) AlbumAverageDuration(artist, album string) (int, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT AVG(duration_ms) FROM track_records WHERE artist = ? AND album = ? AND duration_ms > 0`,
		artist, album,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to query album average: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return int(avg.Float64), nil
}

// GlobalAverageDuration averages every known duration in the store. Returns
// 0 when no durations are known.
func (r *TrackRepository) GlobalAverageDuration() (int, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT AVG(duration_ms) FROM track_records WHERE duration_ms > 0`,
	).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to query global average: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return int(avg.Float64), nil
}

// SetSelectionPriority adjusts the manual boost used by representative-track
// selection.
func (r *TrackRepository) SetSelectionPriority(id string, priority int) error {
	result, err := r.db.Exec(`UPDATE track_records SET selection_priority = ? WHERE id = ?`, priority, id)
	if err != nil {
		return fmt.Errorf("failed to set selection priority: %w", err)
	}
	return requireAffected(result, id)
}

func requireAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record not found: %s", id)
	}
	return nil
}
