package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
)

// AlbumRepository persists album-level metadata, chiefly the storefront URL
// used by the scrape stage of duration enrichment.
type AlbumRepository struct {
	db *sql.DB
}

// NewAlbumRepository creates a new AlbumRepository with the given database connection
func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

func scanAlbum(row interface{ Scan(...any) error }) (*models.AlbumRecord, error) {
	var a models.AlbumRecord
	var storefrontScan, idScan sql.NullTime

	err := row.Scan(&a.ID, &a.Artist, &a.Album, &a.CatalogAlbumID, &a.StorefrontURL, &storefrontScan, &idScan)
	if err != nil {
		return nil, err
	}

	if storefrontScan.Valid {
		a.StorefrontScanAt = &storefrontScan.Time
	}
	if idScan.Valid {
		a.IDScanAt = &idScan.Time
	}

	return &a, nil
}

// GetByPair retrieves the record for an (artist, album) pair.
func (r *AlbumRepository) GetByPair(artist, album string) (*models.AlbumRecord, error) {
	row := r.db.QueryRow(`
		SELECT id, artist, album, catalog_album_id, storefront_url, storefront_scan_at, id_scan_at
		FROM album_records
		WHERE artist = ? AND album = ?
	`, artist, album)

	a, err := scanAlbum(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s - %s", shared.ErrAlbumNotFound, artist, album)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}

	return a, nil
}

// CreateMissing inserts album records for every resolved track whose album
// has none yet, carrying over the catalog album ID. Returns how many were
// created.
func (r *AlbumRepository) CreateMissing() (int, error) {
	rows, err := r.db.Query(`
		SELECT t.artist, t.album, MAX(t.catalog_album_id)
		FROM track_records t
		LEFT JOIN album_records a ON a.artist = t.artist AND a.album = t.album
		WHERE a.id IS NULL AND t.catalog_album_id != ''
		GROUP BY t.artist, t.album
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to query missing albums: %w", err)
	}
	defer rows.Close()

	type pending struct{ artist, album, catalogID string }
	var missing []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.artist, &p.album, &p.catalogID); err != nil {
			return 0, fmt.Errorf("failed to scan album pair: %w", err)
		}
		missing = append(missing, p)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error: %w", err)
	}

	for _, p := range missing {
		_, err := r.db.Exec(
			`INSERT INTO album_records (id, artist, album, catalog_album_id) VALUES (?, ?, ?, ?)`,
			shared.GenerateID(), p.artist, p.album, p.catalogID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert album record: %w", err)
		}
	}

	return len(missing), nil
}

// NeedingStorefront returns albums that have a catalog ID but no storefront
// URL and have not been scanned yet, capped at limit. The cap keeps scrape
// traffic per run bounded.
func (r *AlbumRepository) NeedingStorefront(limit int) ([]models.AlbumRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, artist, album, catalog_album_id, storefront_url, storefront_scan_at, id_scan_at
		FROM album_records
		WHERE catalog_album_id != '' AND storefront_url = '' AND storefront_scan_at IS NULL
		ORDER BY artist, album
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []models.AlbumRecord
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return albums, nil
}

// SetStorefrontURL stores a resolved storefront link and stamps the scan.
func (r *AlbumRepository) SetStorefrontURL(id, url string, now time.Time) error {
	result, err := r.db.Exec(
		`UPDATE album_records SET storefront_url = ?, storefront_scan_at = ? WHERE id = ?`,
		url, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set storefront URL: %w", err)
	}
	return requireAffected(result, id)
}

// StampStorefrontScan records a completed lookup that found no storefront
// link. Not called on transport failures.
func (r *AlbumRepository) StampStorefrontScan(id string, now time.Time) error {
	result, err := r.db.Exec(`UPDATE album_records SET storefront_scan_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to stamp storefront scan: %w", err)
	}
	return requireAffected(result, id)
}
