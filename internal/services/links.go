// Link resolution client for cross-platform album lookups
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cratedig/cratedig/internal/shared"
)

// LinkService implements [LinkResolver] against a song.link-style API.
type LinkService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewLinkService creates a link-resolution client. The API key is optional;
// unkeyed requests are rate-limited harder by the provider.
func NewLinkService(cfg shared.LinksConfig, client *http.Client) *LinkService {
	if client == nil {
		client = http.DefaultClient
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.song.link/v1-alpha.1"
	}

	return &LinkService{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: client,
	}
}

type linksResponse struct {
	LinksByPlatform map[string]struct {
		URL string `json:"url"`
	} `json:"linksByPlatform"`
}

// StorefrontLinks resolves a catalog album ID to its pages on other
// platforms, keyed by platform name.
func (s *LinkService) StorefrontLinks(ctx context.Context, catalogAlbumID string) (map[string]string, error) {
	if catalogAlbumID == "" {
		return nil, fmt.Errorf("%w: album ID is required", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("url", "spotify:album:"+catalogAlbumID)
	if s.apiKey != "" {
		params.Set("key", s.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/links?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: link resolver returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var response linksResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	links := make(map[string]string, len(response.LinksByPlatform))
	for platform, entry := range response.LinksByPlatform {
		if entry.URL != "" {
			links[platform] = entry.URL
		}
	}

	return links, nil
}
