package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/services"
	"github.com/cratedig/cratedig/internal/shared"
)

func TestIngestListener(t *testing.T) {
	t.Run("Pages through history and skips in-progress plays", func(t *testing.T) {
		history := &mockHistory{
			recentFn: func(user string, page int, from time.Time) (*services.RecentTracksPage, error) {
				switch page {
				case 1:
					return &services.RecentTracksPage{
						Page: 1, TotalPages: 2,
						Tracks: []services.RecentTrack{
							{Artist: "Live", Track: "Now", NowPlaying: true},
							{Artist: "Deerhunter", Album: "Halcyon Digest", Track: "Desire Lines", PlayedAt: testNow.Add(-time.Hour)},
						},
					}, nil
				default:
					return &services.RecentTracksPage{
						Page: 2, TotalPages: 2,
						Tracks: []services.RecentTrack{
							{Artist: "Deerhunter", Album: "Halcyon Digest", Track: "Helicopter", PlayedAt: testNow.Add(-2 * time.Hour)},
						},
					}, nil
				}
			},
		}
		e, store := newTestEngine(t, nil, history, nil, nil)

		p := models.ListenerProfile{ID: 7, HistoryID: "dj"}
		count, err := e.IngestListener(context.Background(), p)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 ingested events, got %d", count)
		}

		events, err := store.Events.PlayedTracks(7, testNow.Add(-24*time.Hour), testNow)
		if err != nil {
			t.Fatalf("failed to load events: %v", err)
		}
		if len(events) != 2 {
			t.Errorf("expected 2 stored events, got %d", len(events))
		}
	})

	t.Run("Resumes after the newest stored event", func(t *testing.T) {
		var gotFrom time.Time
		history := &mockHistory{
			recentFn: func(user string, page int, from time.Time) (*services.RecentTracksPage, error) {
				gotFrom = from
				return &services.RecentTracksPage{Page: 1, TotalPages: 1}, nil
			},
		}
		e, store := newTestEngine(t, nil, history, nil, nil)

		last := testNow.Add(-time.Hour)
		seedEvent(t, store, 7, "a", "b", "c", last)

		if _, err := e.IngestListener(context.Background(), models.ListenerProfile{ID: 7, HistoryID: "dj"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !gotFrom.After(last) {
			t.Errorf("expected from just after %v, got %v", last, gotFrom)
		}
	})

	t.Run("Retries a flaky page then succeeds", func(t *testing.T) {
		attempts := 0
		history := &mockHistory{
			recentFn: func(user string, page int, from time.Time) (*services.RecentTracksPage, error) {
				attempts++
				if attempts < 3 {
					return nil, shared.ErrServiceUnavailable
				}
				return &services.RecentTracksPage{
					Page: 1, TotalPages: 1,
					Tracks: []services.RecentTrack{
						{Artist: "a", Album: "b", Track: "c", PlayedAt: testNow.Add(-time.Hour)},
					},
				}, nil
			},
		}
		e, _ := newTestEngine(t, nil, history, nil, nil)

		count, err := e.IngestListener(context.Background(), models.ListenerProfile{ID: 7, HistoryID: "dj"})
		if err != nil {
			t.Fatalf("expected retries to succeed, got %v", err)
		}
		if count != 1 || attempts != 3 {
			t.Errorf("expected 1 event after 3 attempts, got count=%d attempts=%d", count, attempts)
		}
	})

	t.Run("A failed page is skipped, later pages still land", func(t *testing.T) {
		history := &mockHistory{
			recentFn: func(user string, page int, from time.Time) (*services.RecentTracksPage, error) {
				switch page {
				case 2:
					return nil, shared.ErrServiceUnavailable
				default:
					return &services.RecentTracksPage{
						Page: page, TotalPages: 3,
						Tracks: []services.RecentTrack{
							{Artist: "a", Album: "b", Track: "c", PlayedAt: testNow.Add(-time.Duration(page) * time.Hour)},
						},
					}, nil
				}
			},
		}
		e, store := newTestEngine(t, nil, history, nil, nil)

		count, err := e.IngestListener(context.Background(), models.ListenerProfile{ID: 7, HistoryID: "dj"})
		if err != nil {
			t.Fatalf("expected the run to survive the lost page, got %v", err)
		}
		if count != 2 {
			t.Errorf("expected pages 1 and 3 to be committed, got %d", count)
		}

		logged, _ := store.Errors.Recent(10)
		if len(logged) != 1 || logged[0].Stage != "ingest" {
			t.Errorf("expected one logged ingest failure, got %+v", logged)
		}
	})

	t.Run("Page cap stops a runaway backlog", func(t *testing.T) {
		pages := 0
		history := &mockHistory{
			recentFn: func(user string, page int, from time.Time) (*services.RecentTracksPage, error) {
				pages++
				return &services.RecentTracksPage{Page: page, TotalPages: 1000}, nil
			},
		}
		e, _ := newTestEngine(t, nil, history, nil, nil)

		if _, err := e.IngestListener(context.Background(), models.ListenerProfile{ID: 7, HistoryID: "dj"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pages != ingestPageCap {
			t.Errorf("expected %d pages, got %d", ingestPageCap, pages)
		}
	})
}

func TestProfileDue(t *testing.T) {
	june := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	lateDecember := time.Date(2024, 12, 20, 12, 0, 0, 0, time.UTC)
	earlyDecember := time.Date(2024, 12, 10, 12, 0, 0, 0, time.UTC)
	lastYear := time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC)

	tc := []struct {
		name    string
		profile models.ListenerProfile
		now     time.Time
		want    bool
	}{
		{
			name:    "weekly profile is always due",
			profile: models.ListenerProfile{Period: models.PeriodWeek},
			now:     june,
			want:    true,
		},
		{
			name:    "retrospective weekly profile is manual only",
			profile: models.ListenerProfile{Period: models.PeriodWeek, YearsAgo: 1},
			now:     june,
			want:    false,
		},
		{
			name:    "year in review waits for mid-December",
			profile: models.ListenerProfile{Period: models.PeriodYear},
			now:     earlyDecember,
			want:    false,
		},
		{
			name:    "year in review runs after December 15",
			profile: models.ListenerProfile{Period: models.PeriodYear},
			now:     lateDecember,
			want:    true,
		},
		{
			name:    "year in review runs once per year",
			profile: models.ListenerProfile{Period: models.PeriodYear, PopulatedAt: &lateDecember},
			now:     lateDecember,
			want:    false,
		},
		{
			name:    "last year's build does not block this year",
			profile: models.ListenerProfile{Period: models.PeriodYear, PopulatedAt: &lastYear},
			now:     lateDecember,
			want:    true,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := profileDue(tt.profile, tt.now); got != tt.want {
				t.Errorf("profileDue(%+v, %v) = %v, want %v", tt.profile, tt.now, got, tt.want)
			}
		})
	}
}
