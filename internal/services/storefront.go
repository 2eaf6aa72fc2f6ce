// Storefront scraper for public album pages
//
// Album pages embed a JSON-LD MusicAlbum block carrying the track listing
// with per-track durations. Parsing targets that block rather than the
// rendered markup, which changes more often.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/cratedig/cratedig/internal/shared"
)

// StorefrontScraper implements [Scraper] for album pages carrying JSON-LD
// structured data.
type StorefrontScraper struct {
	httpClient *http.Client
}

// NewStorefrontScraper creates a scraper. Pass nil to use the default HTTP
// client.
func NewStorefrontScraper(client *http.Client) *StorefrontScraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &StorefrontScraper{httpClient: client}
}

type ldTrackItem struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
}

type ldListElement struct {
	Position int         `json:"position"`
	Item     ldTrackItem `json:"item"`
}

type ldAlbum struct {
	Type  string `json:"@type"`
	Name  string `json:"name"`
	Track struct {
		ItemListElement []ldListElement `json:"itemListElement"`
	} `json:"track"`
}

// TrackList fetches pageURL and extracts the album's track listing from its
// JSON-LD block. Tracks whose duration cannot be parsed are returned with a
// zero duration rather than dropped.
func (s *StorefrontScraper) TrackList(ctx context.Context, pageURL string) ([]ScrapedTrack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: storefront returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var album *ldAlbum
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var candidate ldAlbum
		if err := json.Unmarshal([]byte(sel.Text()), &candidate); err != nil {
			return true
		}
		if candidate.Type == "MusicAlbum" {
			album = &candidate
			return false
		}
		return true
	})

	if album == nil {
		return nil, fmt.Errorf("%w in %s", shared.ErrNoStructuredData, pageURL)
	}

	tracks := make([]ScrapedTrack, 0, len(album.Track.ItemListElement))
	for _, el := range album.Track.ItemListElement {
		duration, err := ParseISODuration(el.Item.Duration)
		if err != nil {
			duration = 0
		}
		tracks = append(tracks, ScrapedTrack{
			Name:       el.Item.Name,
			DurationMS: duration,
		})
	}

	return tracks, nil
}

// Storefront pages write durations as P00H03M25S, a loose take on ISO 8601
// that omits the T separator.
var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// ParseISODuration converts a duration string like "P00H03M25S" to
// milliseconds.
func ParseISODuration(s string) (int, error) {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "" && m[4] == "") {
		return 0, fmt.Errorf("%w: cannot parse duration %q", shared.ErrInvalidInput, s)
	}

	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.ParseFloat(m[4], 64)

	ms := days*86400000 + hours*3600000 + minutes*60000 + int(seconds*1000)
	return ms, nil
}
