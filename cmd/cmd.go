// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// profileCommand manages listener profiles.
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Aliases: []string{"listener"},
		Usage:   "Manage listener profiles",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a listener profile",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Usage:    "Listener username at the history provider",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "playlist-id",
						Usage: "Destination playlist ID (empty skips catalog writes)",
					},
					&cli.StringFlag{
						Name:  "period",
						Usage: "Aggregation window: WEEK or YEAR",
						Value: "WEEK",
					},
					&cli.IntFlag{
						Name:  "years-ago",
						Usage: "Shift the window back this many years",
					},
					&cli.StringFlag{
						Name:  "release-year",
						Usage: "Restrict candidates to a release year, or ALL",
						Value: "ALL",
					},
					&cli.BoolFlag{
						Name:  "songs-only",
						Usage: "Exclude long and instrumental material",
					},
					&cli.StringFlag{
						Name:  "active-start",
						Usage: "Active-hours window start (HH:MM)",
					},
					&cli.StringFlag{
						Name:  "active-end",
						Usage: "Active-hours window end (HH:MM)",
					},
				},
				Action: r.ProfileAdd,
			},
			{
				Name:  "list",
				Usage: "List registered profiles",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.ProfileList,
			},
			{
				Name:  "approve",
				Usage: "Approve a profile for scheduled builds",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "id",
						Usage:    "Profile ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "revoke",
						Usage: "Withdraw approval instead",
					},
				},
				Action: r.ProfileApprove,
			},
		},
	}
}

// ingestCommand pulls listening history into the local store.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Fetch new listening history for approved profiles",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "profile",
				Usage: "Ingest a single profile by ID",
			},
		},
		Action: r.Ingest,
	}
}

// resolveCommand matches stored plays against the catalog.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "resolve",
		Usage:  "Resolve recently played tracks against the catalog",
		Action: r.Resolve,
	}
}

// enrichCommand runs the metadata and duration enrichment stages.
func enrichCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "enrich",
		Usage:  "Enrichment stages for resolved tracks (all of them when bare)",
		Action: r.EnrichAll,
		Commands: []*cli.Command{
			{
				Name:   "metadata",
				Usage:  "Fetch audio features, popularity, and release dates",
				Action: r.EnrichMetadata,
			},
			{
				Name:   "durations",
				Usage:  "Fill unknown track durations from all sources",
				Action: r.EnrichDurations,
			},
			{
				Name:   "storefronts",
				Usage:  "Resolve storefront links for scraping",
				Action: r.EnrichStorefronts,
			},
		},
	}
}

// playlistCommand builds and exports listener playlists.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Build and export listener playlists",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Rank albums and build a playlist for one profile",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "profile",
						Usage:    "Profile ID",
						Required: true,
					},
				},
				Action: r.PlaylistBuild,
			},
			{
				Name:  "export",
				Usage: "Export the latest picks for a profile",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "profile",
						Usage:    "Profile ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json or csv",
						Value:   "json",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.PlaylistExport,
			},
		},
	}
}

// runCommand runs the full pipeline end to end.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Ingest, resolve, enrich, and build for every due profile",
		Action: r.RunAll,
	}
}

// errorsCommand surfaces the persistent error log.
func errorsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "errors",
		Usage: "Show recent pipeline failures",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum entries to show",
				Value: 20,
			},
		},
		Action: r.Errors,
	}
}

// tuiCommand returns the top-level TUI command for browsing built playlists.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI to browse picks",
		Action:  r.TUI,
	}
}
