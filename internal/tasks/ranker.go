package tasks

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/repositories"
)

// songs-only gates: shorter than five minutes and on a mostly-vocal album.
const (
	songMaxDurationMS       = 300000
	songMaxInstrumentalness = 0.35
)

// profileWindow computes the [from, to) aggregation window for a profile,
// shifted back whole years for retrospective playlists.
func profileWindow(p models.ListenerProfile, now time.Time) (time.Time, time.Time) {
	to := now.AddDate(-p.YearsAgo, 0, 0)
	from := to.AddDate(0, 0, -p.Period.Days())
	return from, to
}

// inActiveHours reports whether the event's local time of day falls inside
// the profile's active window. The window is half-open: the start minute is
// included, the end minute is not. An empty bound disables the filter. A
// window whose start is after its end wraps past midnight, so 22:00-06:00
// includes 23:30 and excludes 12:00.
func inActiveHours(ts time.Time, start, end string) bool {
	if start == "" || end == "" {
		return true
	}

	startMin, err := parseClock(start)
	if err != nil {
		return true
	}
	endMin, err := parseClock(end)
	if err != nil {
		return true
	}

	m := ts.Hour()*60 + ts.Minute()
	if startMin <= endMin {
		return m >= startMin && m < endMin
	}
	return m >= startMin || m < endMin
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + min, nil
}

// BuildCandidates aggregates a profile's listening window into ranked
// candidate albums.
//
// Events pass the profile's filters individually, then group by
// (artist, album) with each play contributing the track's duration. A play
// whose duration is still unknown contributes nothing; the enrichment pass
// fills it before it can carry ranking weight. Ordering is deterministic:
// total duration descending, then artist and album ascending as a tiebreak.
func (e *Engine) BuildCandidates(p models.ListenerProfile) ([]models.CandidateAlbum, error) {
	from, to := profileWindow(p, e.now())

	played, err := e.store.Events.PlayedTracks(p.ID, from, to)
	if err != nil {
		return nil, err
	}

	// Songs-only filtering needs the album's average instrumentalness,
	// computed over the distinct tracks heard in the window.
	albumInstrumentalness := make(map[string]float64)
	if p.SongsOnly {
		type agg struct {
			sum    float64
			tracks map[string]struct{}
		}
		byAlbum := make(map[string]*agg)
		for _, pt := range played {
			key := pt.Artist + "\x00" + pt.Album
			a, ok := byAlbum[key]
			if !ok {
				a = &agg{tracks: make(map[string]struct{})}
				byAlbum[key] = a
			}
			if _, seen := a.tracks[pt.Track]; !seen {
				a.tracks[pt.Track] = struct{}{}
				a.sum += pt.Instrumentalness
			}
		}
		for key, a := range byAlbum {
			albumInstrumentalness[key] = a.sum / float64(len(a.tracks))
		}
	}

	totals := make(map[string]*models.CandidateAlbum)
	for _, pt := range played {
		if !e.eventPasses(p, pt, albumInstrumentalness) {
			continue
		}

		key := pt.Artist + "\x00" + pt.Album
		c, ok := totals[key]
		if !ok {
			c = &models.CandidateAlbum{Artist: pt.Artist, Album: pt.Album}
			totals[key] = c
		}
		c.TotalDurationMS += int64(pt.DurationMS)
	}

	candidates := make([]models.CandidateAlbum, 0, len(totals))
	for _, c := range totals {
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TotalDurationMS != candidates[j].TotalDurationMS {
			return candidates[i].TotalDurationMS > candidates[j].TotalDurationMS
		}
		if candidates[i].Artist != candidates[j].Artist {
			return candidates[i].Artist < candidates[j].Artist
		}
		return candidates[i].Album < candidates[j].Album
	})

	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	return candidates, nil
}

func (e *Engine) eventPasses(p models.ListenerProfile, pt repositories.PlayedTrack, albumInstrumentalness map[string]float64) bool {
	if !inActiveHours(pt.PlayedAt, p.ActiveStart, p.ActiveEnd) {
		return false
	}

	if p.ReleaseYear != "" && p.ReleaseYear != "ALL" {
		if !strings.HasPrefix(pt.ReleaseDate, p.ReleaseYear) {
			return false
		}
	}

	if p.SongsOnly {
		if pt.DurationMS == 0 || pt.DurationMS >= songMaxDurationMS {
			return false
		}
		key := pt.Artist + "\x00" + pt.Album
		if albumInstrumentalness[key] >= songMaxInstrumentalness {
			return false
		}
	}

	return true
}
