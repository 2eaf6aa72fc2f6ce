package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/shared"
	"github.com/urfave/cli/v3"
)

var (
	clockRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
	yearRe  = regexp.MustCompile(`^\d{4}$`)
)

// ProfileAdd registers a new listener profile. Profiles start unapproved and
// are skipped by scheduled runs until approved.
func (r *Runner) ProfileAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	period := models.Period(strings.ToUpper(cmd.String("period")))
	if period != models.PeriodWeek && period != models.PeriodYear {
		return fmt.Errorf("%w: period must be WEEK or YEAR", shared.ErrInvalidArgument)
	}

	start, end := cmd.String("active-start"), cmd.String("active-end")
	if (start == "") != (end == "") {
		return fmt.Errorf("%w: active-start and active-end must be set together", shared.ErrInvalidArgument)
	}
	if start != "" && (!clockRe.MatchString(start) || !clockRe.MatchString(end)) {
		return fmt.Errorf("%w: active hours must be HH:MM", shared.ErrInvalidArgument)
	}

	releaseYear := strings.ToUpper(cmd.String("release-year"))
	if releaseYear != "ALL" && !yearRe.MatchString(releaseYear) {
		return fmt.Errorf("%w: release-year must be a four-digit year or ALL", shared.ErrInvalidArgument)
	}

	profile := &models.ListenerProfile{
		HistoryID:   cmd.String("user"),
		PlaylistID:  cmd.String("playlist-id"),
		Period:      period,
		YearsAgo:    cmd.Int("years-ago"),
		ReleaseYear: releaseYear,
		SongsOnly:   cmd.Bool("songs-only"),
		ActiveStart: start,
		ActiveEnd:   end,
	}

	if err := r.store.Profiles.Create(profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	r.logger.Info("profile created", "id", profile.ID, "user", profile.HistoryID)
	r.writePlain("Profile %d created for %s. Approve it with 'cratedig profile approve --id %d'.\n",
		profile.ID, profile.HistoryID, profile.ID)
	return nil
}

// ProfileList prints all registered profiles.
func (r *Runner) ProfileList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	profiles, err := r.store.Profiles.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(profiles, cmd.Bool("pretty"))
	}

	if len(profiles) == 0 {
		return r.writePlain("No profiles registered.\n")
	}

	for _, p := range profiles {
		status := "pending"
		if p.Approved {
			status = "approved"
		}
		r.writePlain("%4d  %-20s %-5s years-ago=%d release=%s %s\n",
			p.ID, p.HistoryID, p.Period, p.YearsAgo, p.ReleaseYear, status)
	}
	return nil
}

// ProfileApprove toggles a profile's approval for scheduled builds.
func (r *Runner) ProfileApprove(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	id := cmd.Int64("id")
	approved := !cmd.Bool("revoke")

	if _, err := r.store.Profiles.Get(id); err != nil {
		return fmt.Errorf("failed to load profile %d: %w", id, err)
	}
	if err := r.store.Profiles.SetApproved(id, approved); err != nil {
		return fmt.Errorf("failed to update profile %d: %w", id, err)
	}

	if approved {
		r.writePlain("Profile %d approved.\n", id)
	} else {
		r.writePlain("Profile %d approval revoked.\n", id)
	}
	return nil
}
