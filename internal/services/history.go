// History provider client (audioscrobbler-compatible API)
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cratedig/cratedig/internal/shared"
)

// HistoryService implements [History] against an audioscrobbler-style JSON API.
type HistoryService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHistoryService creates a history client. Pass nil to use the default
// HTTP client.
func NewHistoryService(cfg shared.HistoryConfig, client *http.Client) (*HistoryService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: history api_key is required", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://ws.audioscrobbler.com/2.0/"
	}

	return &HistoryService{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: client,
	}, nil
}

// The provider encodes most scalars as strings and uses "#text" keys for
// nested names, so responses are decoded through these shims.

type historyAttr struct {
	NowPlaying string `json:"nowplaying"`
}

type historyText struct {
	Text string `json:"#text"`
}

type historyDate struct {
	UTS string `json:"uts"`
}

type recentTrackObject struct {
	Name   string       `json:"name"`
	Artist historyText  `json:"artist"`
	Album  historyText  `json:"album"`
	Date   *historyDate `json:"date"`
	Attr   *historyAttr `json:"@attr"`
}

type recentTracksResponse struct {
	RecentTracks struct {
		Track []recentTrackObject `json:"track"`
		Attr  struct {
			Page       string `json:"page"`
			TotalPages string `json:"totalPages"`
		} `json:"@attr"`
	} `json:"recenttracks"`
}

type trackInfoResponse struct {
	Track struct {
		Name     string `json:"name"`
		Duration string `json:"duration"` // milliseconds, "0" when unknown
		Artist   struct {
			Name string `json:"name"`
		} `json:"artist"`
	} `json:"track"`
}

func (s *HistoryService) doRequest(ctx context.Context, params url.Values, result any) error {
	params.Set("api_key", s.apiKey)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: history returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// RecentTracks retrieves one page of the user's listening events recorded at
// or after from. An in-progress play appears with NowPlaying set and a zero
// PlayedAt.
func (s *HistoryService) RecentTracks(ctx context.Context, user string, page, limit int, from time.Time) (*RecentTracksPage, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", shared.ErrMissingArgument)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{}
	params.Set("method", "user.getrecenttracks")
	params.Set("user", user)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	if !from.IsZero() {
		params.Set("from", strconv.FormatInt(from.Unix(), 10))
	}

	var response recentTracksResponse
	if err := s.doRequest(ctx, params, &response); err != nil {
		return nil, err
	}

	result := &RecentTracksPage{
		Tracks: make([]RecentTrack, 0, len(response.RecentTracks.Track)),
	}
	result.Page, _ = strconv.Atoi(response.RecentTracks.Attr.Page)
	result.TotalPages, _ = strconv.Atoi(response.RecentTracks.Attr.TotalPages)

	for _, t := range response.RecentTracks.Track {
		rt := RecentTrack{
			Artist: t.Artist.Text,
			Album:  t.Album.Text,
			Track:  t.Name,
		}
		if t.Attr != nil && t.Attr.NowPlaying == "true" {
			rt.NowPlaying = true
		}
		if t.Date != nil {
			if uts, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil {
				rt.PlayedAt = time.Unix(uts, 0).UTC()
			}
		}
		result.Tracks = append(result.Tracks, rt)
	}

	return result, nil
}

// TrackInfo retrieves provider metadata for one track. A track the provider
// does not know yields [shared.ErrTrackNotFound].
func (s *HistoryService) TrackInfo(ctx context.Context, artist, track, album string) (*TrackDetail, error) {
	if artist == "" || track == "" {
		return nil, fmt.Errorf("%w: artist and track are required", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("artist", artist)
	params.Set("track", track)
	if album != "" {
		params.Set("album", album)
	}

	var response trackInfoResponse
	if err := s.doRequest(ctx, params, &response); err != nil {
		return nil, err
	}

	if response.Track.Name == "" {
		return nil, fmt.Errorf("%w: %s - %s", shared.ErrTrackNotFound, artist, track)
	}

	duration, _ := strconv.Atoi(response.Track.Duration)

	return &TrackDetail{
		Artist:     response.Track.Artist.Name,
		Track:      response.Track.Name,
		DurationMS: duration,
	}, nil
}
