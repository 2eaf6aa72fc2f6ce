package tasks

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/repositories"
	"github.com/cratedig/cratedig/internal/services"
	"github.com/cratedig/cratedig/internal/shared"
	"golang.org/x/time/rate"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type mockCatalog struct {
	searchFn     func(query string, limit int) ([]services.CatalogTrack, error)
	structuredFn func(artist, album, track string) ([]services.CatalogTrack, error)
	trackFn      func(id string) (*services.CatalogTrack, error)
	featuresFn   func(ids []string) ([]services.TrackFeatures, error)
	replaceCalls [][]string
	appendCalls  []string
	replaceErr   error
}

func (m *mockCatalog) Name() string { return "mock-catalog" }

func (m *mockCatalog) SearchTracks(_ context.Context, query string, limit int) ([]services.CatalogTrack, error) {
	if m.searchFn == nil {
		return nil, nil
	}
	return m.searchFn(query, limit)
}

func (m *mockCatalog) SearchStructured(_ context.Context, artist, album, track string, _ int) ([]services.CatalogTrack, error) {
	if m.structuredFn == nil {
		return nil, nil
	}
	return m.structuredFn(artist, album, track)
}

func (m *mockCatalog) Track(_ context.Context, id string) (*services.CatalogTrack, error) {
	if m.trackFn == nil {
		return &services.CatalogTrack{ID: id}, nil
	}
	return m.trackFn(id)
}

func (m *mockCatalog) AudioFeatures(_ context.Context, ids []string) ([]services.TrackFeatures, error) {
	if m.featuresFn == nil {
		return nil, nil
	}
	return m.featuresFn(ids)
}

func (m *mockCatalog) ReplacePlaylistTracks(_ context.Context, playlistID string, trackIDs []string) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaceCalls = append(m.replaceCalls, trackIDs)
	return nil
}

func (m *mockCatalog) AppendPlaylistTrack(_ context.Context, playlistID, trackID string) error {
	m.appendCalls = append(m.appendCalls, trackID)
	return nil
}

type mockHistory struct {
	recentFn func(user string, page int, from time.Time) (*services.RecentTracksPage, error)
	infoFn   func(artist, track, album string) (*services.TrackDetail, error)
}

func (m *mockHistory) RecentTracks(_ context.Context, user string, page, _ int, from time.Time) (*services.RecentTracksPage, error) {
	if m.recentFn == nil {
		return &services.RecentTracksPage{Page: page, TotalPages: page}, nil
	}
	return m.recentFn(user, page, from)
}

func (m *mockHistory) TrackInfo(_ context.Context, artist, track, album string) (*services.TrackDetail, error) {
	if m.infoFn == nil {
		return nil, shared.ErrTrackNotFound
	}
	return m.infoFn(artist, track, album)
}

type mockLinks struct {
	linksFn func(albumID string) (map[string]string, error)
}

func (m *mockLinks) StorefrontLinks(_ context.Context, albumID string) (map[string]string, error) {
	if m.linksFn == nil {
		return map[string]string{}, nil
	}
	return m.linksFn(albumID)
}

type mockScraper struct {
	listFn func(pageURL string) ([]services.ScrapedTrack, error)
}

func (m *mockScraper) TrackList(_ context.Context, pageURL string) ([]services.ScrapedTrack, error) {
	if m.listFn == nil {
		return nil, shared.ErrNoStructuredData
	}
	return m.listFn(pageURL)
}

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// newTestEngine wires an Engine to an in-memory store with unthrottled
// limiters and a fixed clock.
func newTestEngine(t *testing.T, catalog services.Catalog, history services.History, links services.LinkResolver, scraper services.Scraper) (*Engine, *repositories.Store) {
	t.Helper()

	if catalog == nil {
		catalog = &mockCatalog{}
	}
	if history == nil {
		history = &mockHistory{}
	}
	if links == nil {
		links = &mockLinks{}
	}
	if scraper == nil {
		scraper = &mockScraper{}
	}

	store := repositories.NewStore(setupTestDB(t))
	e := NewEngine(catalog, history, links, scraper, store, log.New(io.Discard), shared.PipelineConfig{})

	e.catalogLimiter = rate.NewLimiter(rate.Inf, 1)
	e.historyLimiter = rate.NewLimiter(rate.Inf, 1)
	e.retryBackoff = time.Millisecond
	e.now = func() time.Time { return testNow }

	return e, store
}

func seedEvent(t *testing.T, store *repositories.Store, listener int64, artist, album, track string, playedAt time.Time) {
	t.Helper()
	err := store.Events.InsertBatch([]models.ListeningEvent{
		{Listener: listener, Artist: artist, Album: album, Track: track, PlayedAt: playedAt},
	})
	if err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
}

func seedRecord(t *testing.T, store *repositories.Store, artist, album, track string) *models.TrackRecord {
	t.Helper()
	if _, err := store.Tracks.CreateMissing(); err != nil {
		t.Fatalf("failed to create records: %v", err)
	}
	rec, err := store.Tracks.GetByTriple(artist, album, track)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	return rec
}
