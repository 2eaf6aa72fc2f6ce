package tasks

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/services"
)

const (
	ingestPageLimit = 100
	ingestPageCap   = 50 // hard stop so a runaway backlog cannot spin forever
	ingestBatchSize = 200
)

// eventsSince streams a listener's history events recorded after from,
// oldest page first within each page. Each page is retried a few times; a
// page that exhausts its retries is logged and skipped, and the stream
// continues with the next one. Only cancellation ends the stream early.
func (e *Engine) eventsSince(ctx context.Context, user string, listener int64, from time.Time) iter.Seq2[models.ListeningEvent, error] {
	return func(yield func(models.ListeningEvent, error) bool) {
		for page := 1; page <= ingestPageCap; page++ {
			if err := e.historyLimiter.Wait(ctx); err != nil {
				yield(models.ListeningEvent{}, err)
				return
			}

			result, err := e.fetchPage(ctx, user, page, from)
			if err != nil {
				if ctx.Err() != nil {
					yield(models.ListeningEvent{}, err)
					return
				}
				e.recordFailure("ingest", fmt.Sprintf("%s page %d", user, page), err)
				continue
			}

			for _, t := range result.Tracks {
				if t.NowPlaying || t.PlayedAt.IsZero() {
					continue
				}
				event := models.ListeningEvent{
					Listener: listener,
					Artist:   t.Artist,
					Album:    t.Album,
					Track:    t.Track,
					PlayedAt: t.PlayedAt,
				}
				if !yield(event, nil) {
					return
				}
			}

			if page >= result.TotalPages {
				return
			}
		}
	}
}

func (e *Engine) fetchPage(ctx context.Context, user string, page int, from time.Time) (*services.RecentTracksPage, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		result, err := e.history.RecentTracks(ctx, user, page, ingestPageLimit, from)
		if err == nil {
			return result, nil
		}
		lastErr = err
		e.logger.Warn("history page fetch failed",
			"user", user, "page", page, "attempt", attempt, "err", err)

		if attempt < e.retryAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryBackoff):
			}
		}
	}
	return nil, fmt.Errorf("history page %d failed after %d attempts: %w", page, e.retryAttempts, lastErr)
}

// IngestListener pulls a profile's new listening events into the store,
// starting just after the newest event already recorded. Events are
// committed in batches so a mid-stream cancellation keeps earlier pages;
// individual page failures are skipped inside the stream.
func (e *Engine) IngestListener(ctx context.Context, p models.ListenerProfile) (int, error) {
	var from time.Time
	last, ok, err := e.store.Events.LastPlayedAt(p.ID)
	if err != nil {
		return 0, err
	}
	if ok {
		from = last.Add(time.Second)
	}

	total := 0
	batch := make([]models.ListeningEvent, 0, ingestBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := e.store.Events.InsertBatch(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for event, err := range e.eventsSince(ctx, p.HistoryID, p.ID, from) {
		if err != nil {
			if flushErr := flush(); flushErr != nil {
				return total, flushErr
			}
			return total, err
		}

		batch = append(batch, event)
		if len(batch) >= ingestBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}

	e.logger.Info("ingested events", "listener", p.ID, "user", p.HistoryID, "count", total)
	return total, nil
}

// profileDue reports whether a profile should run now. Current-week
// playlists run every cycle. Year-in-review playlists wait until after
// December 15 and run once per year.
func profileDue(p models.ListenerProfile, now time.Time) bool {
	switch p.Period {
	case models.PeriodWeek:
		return p.YearsAgo == 0
	case models.PeriodYear:
		if now.Month() != time.December || now.Day() <= 15 {
			return false
		}
		return p.PopulatedAt == nil || p.PopulatedAt.Year() < now.Year()
	default:
		return false
	}
}
