package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/cratedig/cratedig/internal/models"
)

var (
	_ list.Item = profileItem{}
	_ list.Item = pickItem{}
)

// profileItem wraps [models.ListenerProfile] to implement [list.Item].
type profileItem struct {
	profile models.ListenerProfile
	picks   int
}

func (i profileItem) FilterValue() string { return i.profile.HistoryID }
func (i profileItem) Title() string       { return i.profile.HistoryID }
func (i profileItem) Description() string {
	desc := fmt.Sprintf("%s • %d picks", i.profile.Period, i.picks)
	if !i.profile.Approved {
		desc = fmt.Sprintf("%s • pending approval", desc)
	}
	if i.profile.YearsAgo > 0 {
		desc = fmt.Sprintf("%s • %d years back", desc, i.profile.YearsAgo)
	}
	return desc
}

// pickItem wraps [models.PlaylistPick] to implement [list.Item].
type pickItem struct {
	pick models.PlaylistPick
}

func (i pickItem) FilterValue() string { return i.pick.Artist + " " + i.pick.Album }
func (i pickItem) Title() string {
	return fmt.Sprintf("%d. %s - %s", i.pick.Rank, i.pick.Artist, i.pick.Track)
}
func (i pickItem) Description() string {
	desc := i.pick.Album
	if i.pick.StorefrontURL != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.pick.StorefrontURL)
	}
	return desc
}
