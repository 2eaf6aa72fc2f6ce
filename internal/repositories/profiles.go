package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cratedig/cratedig/internal/models"
)

// ProfileRepository persists per-listener playlist configuration.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new ProfileRepository with the given database connection
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `
	id, history_id, playlist_id, period, years_ago, release_year,
	songs_only, active_start, active_end, approved, populated_at
`

func scanProfile(row interface{ Scan(...any) error }) (*models.ListenerProfile, error) {
	var p models.ListenerProfile
	var period string
	var populatedAt sql.NullTime

	err := row.Scan(&p.ID, &p.HistoryID, &p.PlaylistID, &period, &p.YearsAgo, &p.ReleaseYear,
		&p.SongsOnly, &p.ActiveStart, &p.ActiveEnd, &p.Approved, &populatedAt)
	if err != nil {
		return nil, err
	}

	p.Period = models.Period(period)
	if populatedAt.Valid {
		p.PopulatedAt = &populatedAt.Time
	}

	return &p, nil
}

// Create inserts a profile and fills in its assigned ID.
func (r *ProfileRepository) Create(p *models.ListenerProfile) error {
	result, err := r.db.Exec(`
		INSERT INTO listener_profiles
			(history_id, playlist_id, period, years_ago, release_year, songs_only, active_start, active_end, approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.HistoryID, p.PlaylistID, string(p.Period), p.YearsAgo, p.ReleaseYear,
		p.SongsOnly, p.ActiveStart, p.ActiveEnd, p.Approved)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get profile ID: %w", err)
	}
	p.ID = id

	return nil
}

// Get retrieves a profile by ID.
func (r *ProfileRepository) Get(id int64) (*models.ListenerProfile, error) {
	row := r.db.QueryRow(`SELECT `+profileColumns+` FROM listener_profiles WHERE id = ?`, id)

	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	return p, nil
}

// List retrieves all profiles ordered by ID.
func (r *ProfileRepository) List() ([]models.ListenerProfile, error) {
	return r.queryProfiles(`SELECT ` + profileColumns + ` FROM listener_profiles ORDER BY id`)
}

// Approved retrieves profiles cleared to run, ordered by ID.
func (r *ProfileRepository) Approved() ([]models.ListenerProfile, error) {
	return r.queryProfiles(`SELECT ` + profileColumns + ` FROM listener_profiles WHERE approved = 1 ORDER BY id`)
}

func (r *ProfileRepository) queryProfiles(query string, args ...any) ([]models.ListenerProfile, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.ListenerProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return profiles, nil
}

// SetApproved flips the approval gate for a profile.
func (r *ProfileRepository) SetApproved(id int64, approved bool) error {
	result, err := r.db.Exec(`UPDATE listener_profiles SET approved = ? WHERE id = ?`, approved, id)
	if err != nil {
		return fmt.Errorf("failed to set approval: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("%d", id))
}

// MarkPopulated stamps a profile as built, which gates annual reruns.
func (r *ProfileRepository) MarkPopulated(id int64, now time.Time) error {
	result, err := r.db.Exec(`UPDATE listener_profiles SET populated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark populated: %w", err)
	}
	return requireAffected(result, fmt.Sprintf("%d", id))
}
