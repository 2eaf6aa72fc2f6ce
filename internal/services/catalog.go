// Catalog provider client
//
// Response types based on the provider's public web API reference.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cratedig/cratedig/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	catalogTokenURL = "https://accounts.spotify.com/api/token"
	catalogBaseURL  = "https://api.spotify.com/v1"
)

type catalogArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type catalogAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	TotalTracks int    `json:"total_tracks"`
}

type catalogTrackObject struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []catalogArtist `json:"artists"`
	Album      catalogAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
}

type searchResponse struct {
	Tracks struct {
		Items []catalogTrackObject `json:"items"`
	} `json:"tracks"`
}

type audioFeaturesObject struct {
	ID               string  `json:"id"`
	DurationMS       int     `json:"duration_ms"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
}

// CatalogService implements [Catalog]. Metadata reads use the two-legged
// client-credentials flow; playlist writes use the configured user token.
type CatalogService struct {
	readClient  *http.Client
	writeClient *http.Client
	baseURL     string
}

// NewCatalogService creates a catalog client from provider credentials.
// baseClient overrides the transport used for token and API requests;
// pass nil for the default.
func NewCatalogService(ctx context.Context, cfg shared.CatalogConfig, baseClient *http.Client) (*CatalogService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	if baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, baseClient)
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     catalogTokenURL,
	}

	s := &CatalogService{
		readClient: creds.Client(ctx),
		baseURL:    catalogBaseURL,
	}

	if cfg.AccessToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
		s.writeClient = oauth2.NewClient(ctx, src)
	}

	return s, nil
}

func (s *CatalogService) Name() string {
	return "catalog"
}

// doRequest performs an HTTP request against the provider API and decodes the
// JSON response into result when non-nil.
func (s *CatalogService) doRequest(ctx context.Context, client *http.Client, method, endpoint string, body, result any) error {
	apiURL := s.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: catalog returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func convertTrack(t catalogTrackObject) CatalogTrack {
	out := CatalogTrack{
		ID:          t.ID,
		Name:        t.Name,
		Album:       t.Album.Name,
		AlbumID:     t.Album.ID,
		ReleaseDate: t.Album.ReleaseDate,
		DurationMS:  t.DurationMS,
		Popularity:  t.Popularity,
		TotalTracks: t.Album.TotalTracks,
	}
	if len(t.Artists) > 0 {
		out.Artist = t.Artists[0].Name
	}
	return out
}

// SearchTracks runs a free-text track search.
func (s *CatalogService) SearchTracks(ctx context.Context, query string, limit int) ([]CatalogTrack, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/search?type=track&q=%s&limit=%d", url.QueryEscape(query), limit)

	var response searchResponse
	if err := s.doRequest(ctx, s.readClient, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]CatalogTrack, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		tracks = append(tracks, convertTrack(item))
	}

	return tracks, nil
}

// SearchStructured runs a field-qualified search, omitting empty fields.
func (s *CatalogService) SearchStructured(ctx context.Context, artist, album, track string, limit int) ([]CatalogTrack, error) {
	var parts []string
	if artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", artist))
	}
	if album != "" {
		parts = append(parts, fmt.Sprintf("album:%q", album))
	}
	if track != "" {
		parts = append(parts, fmt.Sprintf("track:%q", track))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: structured search needs at least one field", shared.ErrInvalidArgument)
	}

	return s.SearchTracks(ctx, strings.Join(parts, " "), limit)
}

// Track retrieves a single track by ID.
func (s *CatalogService) Track(ctx context.Context, trackID string) (*CatalogTrack, error) {
	var obj catalogTrackObject
	endpoint := fmt.Sprintf("/tracks/%s", url.PathEscape(trackID))
	if err := s.doRequest(ctx, s.readClient, http.MethodGet, endpoint, nil, &obj); err != nil {
		return nil, err
	}

	track := convertTrack(obj)
	return &track, nil
}

// AudioFeatures retrieves feature vectors for up to 100 tracks. The provider
// returns null entries for unknown IDs; those are dropped.
func (s *CatalogService) AudioFeatures(ctx context.Context, trackIDs []string) ([]TrackFeatures, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track IDs provided", shared.ErrMissingArgument)
	}
	if len(trackIDs) > 100 {
		return nil, fmt.Errorf("%w: maximum 100 track IDs allowed", shared.ErrInvalidArgument)
	}

	endpoint := fmt.Sprintf("/audio-features?ids=%s", url.QueryEscape(strings.Join(trackIDs, ",")))

	var response struct {
		AudioFeatures []*audioFeaturesObject `json:"audio_features"`
	}
	if err := s.doRequest(ctx, s.readClient, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	features := make([]TrackFeatures, 0, len(response.AudioFeatures))
	for _, f := range response.AudioFeatures {
		if f == nil {
			continue
		}
		features = append(features, TrackFeatures{
			ID:               f.ID,
			DurationMS:       f.DurationMS,
			Danceability:     f.Danceability,
			Energy:           f.Energy,
			Valence:          f.Valence,
			Tempo:            f.Tempo,
			Key:              f.Key,
			Mode:             f.Mode,
			Loudness:         f.Loudness,
			Speechiness:      f.Speechiness,
			Instrumentalness: f.Instrumentalness,
			Liveness:         f.Liveness,
		})
	}

	return features, nil
}

func trackURIs(trackIDs []string) []string {
	uris := make([]string, len(trackIDs))
	for i, id := range trackIDs {
		uris[i] = "spotify:track:" + id
	}
	return uris
}

// ReplacePlaylistTracks overwrites the playlist with the given tracks.
func (s *CatalogService) ReplacePlaylistTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if s.writeClient == nil {
		return fmt.Errorf("%w: playlist writes need an access token", shared.ErrNotAuthenticated)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string][]string{"uris": trackURIs(trackIDs)}

	return s.doRequest(ctx, s.writeClient, http.MethodPut, endpoint, body, nil)
}

// AppendPlaylistTrack adds one track to the end of the playlist.
func (s *CatalogService) AppendPlaylistTrack(ctx context.Context, playlistID, trackID string) error {
	if s.writeClient == nil {
		return fmt.Errorf("%w: playlist writes need an access token", shared.ErrNotAuthenticated)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string][]string{"uris": trackURIs([]string{trackID})}

	return s.doRequest(ctx, s.writeClient, http.MethodPost, endpoint, body, nil)
}
