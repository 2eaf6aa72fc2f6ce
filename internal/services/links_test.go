package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cratedig/cratedig/internal/shared"
)

func TestLinkService(t *testing.T) {
	t.Run("StorefrontLinks", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("url"); got != "spotify:album:al1" {
				t.Errorf("unexpected url param %q", got)
			}
			w.Write([]byte(`{"linksByPlatform":{
				"bandcamp":{"url":"https://artist.bandcamp.com/album/x"},
				"youtube":{"url":""}
			}}`))
		}))
		defer srv.Close()

		s := NewLinkService(shared.LinksConfig{BaseURL: srv.URL}, srv.Client())
		links, err := s.StorefrontLinks(context.Background(), "al1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if links["bandcamp"] != "https://artist.bandcamp.com/album/x" {
			t.Errorf("unexpected bandcamp link %q", links["bandcamp"])
		}
		if _, ok := links["youtube"]; ok {
			t.Error("expected empty links to be dropped")
		}
	})

	t.Run("Requires Album ID", func(t *testing.T) {
		s := NewLinkService(shared.LinksConfig{}, nil)
		_, err := s.StorefrontLinks(context.Background(), "")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		s := NewLinkService(shared.LinksConfig{BaseURL: srv.URL}, srv.Client())
		_, err := s.StorefrontLinks(context.Background(), "al1")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}
