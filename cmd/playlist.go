package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistBuild ranks a profile's recent listening and builds its playlist.
func (r *Runner) PlaylistBuild(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.Int64("profile")
	profile, err := r.store.Profiles.Get(id)
	if err != nil {
		return fmt.Errorf("failed to load profile %d: %w", id, err)
	}

	picks, err := r.engine.BuildPlaylist(ctx, *profile)
	if err != nil {
		return fmt.Errorf("playlist build failed: %w", err)
	}

	if len(picks) == 0 {
		return r.writePlain("No listening in the window; nothing to build.\n")
	}

	for _, p := range picks {
		r.writePlain("%2d. %s - %s (%s)\n", p.Rank, p.Artist, p.Track, p.Album)
	}
	r.writePlainln("Built %d picks for profile %d.", len(picks), id)
	return nil
}

// PlaylistExport writes the latest persisted picks for a profile as JSON or
// CSV, to stdout or to --output.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.Int64("profile")
	picks, err := r.store.Picks.Latest(id)
	if err != nil {
		return fmt.Errorf("failed to load picks for profile %d: %w", id, err)
	}

	var data []byte
	switch cmd.String("format") {
	case "json":
		if cmd.Bool("pretty") {
			data, err = json.MarshalIndent(picks, "", "  ")
		} else {
			data, err = json.Marshal(picks)
		}
		if err != nil {
			return fmt.Errorf("failed to marshal picks: %w", err)
		}
	case "csv":
		if data, err = picksCSV(picks); err != nil {
			return fmt.Errorf("failed to encode picks: %w", err)
		}
	default:
		return fmt.Errorf("%w: format must be json or csv", shared.ErrInvalidArgument)
	}

	outputPath := cmd.String("output")
	if outputPath == "" {
		return r.writePlain("%s\n", data)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	r.writePlain("Exported %d picks to %s\n", len(picks), outputPath)
	return nil
}

func picksCSV(picks []models.PlaylistPick) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"rank", "artist", "album", "track", "catalog_track_id", "storefront_url"}); err != nil {
		return nil, err
	}
	for _, p := range picks {
		row := []string{strconv.Itoa(p.Rank), p.Artist, p.Album, p.Track, p.CatalogTrackID, p.StorefrontURL}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
