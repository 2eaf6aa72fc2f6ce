// package repositories provides sqlite-backed persistence for listening
// events, track and album metadata, listener profiles, playlist picks, and
// the pipeline error log.
//
// Repositories take an injected *sql.DB and use parameterized queries
// exclusively. Free-text fields from listening history are never
// concatenated into SQL.
package repositories

import "database/sql"

// Store bundles all repositories over one database handle.
type Store struct {
	Events   *EventRepository
	Tracks   *TrackRepository
	Albums   *AlbumRepository
	Profiles *ProfileRepository
	Picks    *PickRepository
	Errors   *ErrorRepository
}

// NewStore creates a Store with all repositories sharing db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Events:   NewEventRepository(db),
		Tracks:   NewTrackRepository(db),
		Albums:   NewAlbumRepository(db),
		Profiles: NewProfileRepository(db),
		Picks:    NewPickRepository(db),
		Errors:   NewErrorRepository(db),
	}
}
