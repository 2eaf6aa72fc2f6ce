package repositories

import (
	"database/sql"
	"fmt"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
)

// PickRepository persists the ranked picks of each built playlist. A rebuild
// replaces a listener's picks wholesale.
type PickRepository struct {
	db *sql.DB
}

// NewPickRepository creates a new PickRepository with the given database connection
func NewPickRepository(db *sql.DB) *PickRepository {
	return &PickRepository{db: db}
}

// Replace atomically swaps a listener's picks for a new set.
func (r *PickRepository) Replace(listener int64, picks []models.PlaylistPick) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_picks WHERE listener = ?`, listener); err != nil {
		return fmt.Errorf("failed to clear picks: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO playlist_picks
			(id, listener, rank, artist, album, track, catalog_track_id, catalog_album_id, storefront_url, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range picks {
		id := p.ID
		if id == "" {
			id = shared.GenerateID()
		}
		_, err := stmt.Exec(id, listener, p.Rank, p.Artist, p.Album, p.Track,
			p.CatalogTrackID, p.CatalogAlbumID, p.StorefrontURL, p.BuiltAt)
		if err != nil {
			return fmt.Errorf("failed to insert pick: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit picks: %w", err)
	}

	return nil
}

// Latest retrieves a listener's current picks in rank order.
func (r *PickRepository) Latest(listener int64) ([]models.PlaylistPick, error) {
	rows, err := r.db.Query(`
		SELECT id, listener, rank, artist, album, track, catalog_track_id, catalog_album_id, storefront_url, built_at
		FROM playlist_picks
		WHERE listener = ?
		ORDER BY rank ASC
	`, listener)
	if err != nil {
		return nil, fmt.Errorf("failed to query picks: %w", err)
	}
	defer rows.Close()

	var picks []models.PlaylistPick
	for rows.Next() {
		var p models.PlaylistPick
		if err := rows.Scan(&p.ID, &p.Listener, &p.Rank, &p.Artist, &p.Album, &p.Track,
			&p.CatalogTrackID, &p.CatalogAlbumID, &p.StorefrontURL, &p.BuiltAt); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		picks = append(picks, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return picks, nil
}

// Listeners returns every listener with stored picks.
func (r *PickRepository) Listeners() ([]int64, error) {
	rows, err := r.db.Query(`SELECT DISTINCT listener FROM playlist_picks ORDER BY listener`)
	if err != nil {
		return nil, fmt.Errorf("failed to query listeners: %w", err)
	}
	defer rows.Close()

	var listeners []int64
	for rows.Next() {
		var l int64
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan listener: %w", err)
		}
		listeners = append(listeners, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return listeners, nil
}
