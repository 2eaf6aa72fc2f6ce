// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a two-view workflow for browsing built playlists:
//  1. [ProfileListView] : Browse registered listener profiles
//  2. [PickListView] : Inspect the latest ranked picks for a profile
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// All data is read from the local store; the TUI never talks to providers.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
