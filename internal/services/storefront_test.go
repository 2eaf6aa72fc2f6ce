package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cratedig/cratedig/internal/shared"
)

const albumPage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">{"@type":"WebSite","name":"not an album"}</script>
<script type="application/ld+json">{
	"@type": "MusicAlbum",
	"name": "Lonerism",
	"track": {
		"itemListElement": [
			{"position": 1, "item": {"name": "Be Above It", "duration": "P00H03M21S"}},
			{"position": 2, "item": {"name": "Endors Toi", "duration": "garbage"}}
		]
	}
}</script>
</head><body></body></html>`

func TestStorefrontScraper(t *testing.T) {
	t.Run("TrackList", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(albumPage))
		}))
		defer srv.Close()

		tracks, err := NewStorefrontScraper(srv.Client()).TrackList(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}

		if tracks[0].Name != "Be Above It" || tracks[0].DurationMS != 201000 {
			t.Errorf("unexpected first track %+v", tracks[0])
		}
		if tracks[1].DurationMS != 0 {
			t.Errorf("expected unparseable duration to become 0, got %d", tracks[1].DurationMS)
		}
	})

	t.Run("No structured data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
		}))
		defer srv.Close()

		_, err := NewStorefrontScraper(srv.Client()).TrackList(context.Background(), srv.URL)
		if !errors.Is(err, shared.ErrNoStructuredData) {
			t.Errorf("expected ErrNoStructuredData, got %v", err)
		}
	})

	t.Run("Server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewStorefrontScraper(srv.Client()).TrackList(context.Background(), srv.URL)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}

func TestParseISODuration(t *testing.T) {
	tc := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "P00H03M25S", want: 205000},
		{input: "P01H00M00S", want: 3600000},
		{input: "PT4M33S", want: 273000},
		{input: "P00H00M41S", want: 41000},
		{input: "P1DT2H", want: 93600000},
		{input: "", wantErr: true},
		{input: "four minutes", wantErr: true},
		{input: "P", wantErr: true},
	}

	for _, tt := range tc {
		got, err := ParseISODuration(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseISODuration(%q): expected error, got %d", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseISODuration(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseISODuration(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
