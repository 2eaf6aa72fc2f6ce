package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cratedig/cratedig/internal/models"
	"github.com/cratedig/cratedig/internal/repositories"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ProfileListView ViewState = iota
	PickListView
)

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	store       *repositories.Store
	width       int
	height      int
	profileList list.Model
	profiles    []models.ListenerProfile
	pickList    list.Model
	selected    *models.ListenerProfile
	err         error
	help        help.Model
	keys        keyMap
}

type profilesLoadedMsg struct {
	profiles []models.ListenerProfile
	counts   map[int64]int
	err      error
}

type picksLoadedMsg struct {
	profile models.ListenerProfile
	picks   []models.PlaylistPick
	err     error
}

// NewModel creates a new TUI model reading from the provided store.
func NewModel(ctx context.Context, store *repositories.Store) *Model {
	return &Model{
		ctx:   ctx,
		view:  ProfileListView,
		store: store,
		help:  help.New(),
		keys:  newKeyMap(),
	}
}

// Init initializes the TUI by loading profiles from the store.
func (m *Model) Init() tea.Cmd {
	return m.loadProfiles()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.profileList.Width() == 0 {
			m.profileList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.pickList.Width() == 0 {
			m.pickList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ProfileListView:
			return m.handleProfileListKeys(msg)
		case PickListView:
			return m.handlePickListKeys(msg)
		}

	case profilesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.profiles = msg.profiles
		items := make([]list.Item, len(msg.profiles))
		for i, p := range msg.profiles {
			items[i] = profileItem{profile: p, picks: msg.counts[p.ID]}
		}
		m.profileList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.profileList.Title = "Listener Profiles"
		m.profileList.SetSize(m.width-4, m.height-8)
		return m, nil

	case picksLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = ProfileListView
			return m, nil
		}
		m.selected = &msg.profile
		items := make([]list.Item, len(msg.picks))
		for i, pick := range msg.picks {
			items[i] = pickItem{pick: pick}
		}
		m.pickList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.pickList.Title = fmt.Sprintf("Picks for '%s'", msg.profile.HistoryID)
		m.pickList.SetSize(m.width-4, m.height-8)
		m.view = PickListView
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case ProfileListView:
		return m.renderProfileList()
	case PickListView:
		return m.renderPickList()
	default:
		return ""
	}
}

func (m *Model) handleProfileListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.profileList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(profileItem); ok {
				return m, m.loadPicks(item.profile)
			}
		}
	}

	var cmd tea.Cmd
	m.profileList, cmd = m.profileList.Update(msg)
	return m, cmd
}

func (m *Model) handlePickListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = ProfileListView
		m.selected = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.pickList, cmd = m.pickList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ProfileListView:
		m.profileList, cmd = m.profileList.Update(msg)
	case PickListView:
		m.pickList, cmd = m.pickList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadProfiles() tea.Cmd {
	return func() tea.Msg {
		profiles, err := m.store.Profiles.List()
		if err != nil {
			return profilesLoadedMsg{err: err}
		}

		counts := make(map[int64]int, len(profiles))
		for _, p := range profiles {
			picks, err := m.store.Picks.Latest(p.ID)
			if err != nil {
				return profilesLoadedMsg{err: err}
			}
			counts[p.ID] = len(picks)
		}

		return profilesLoadedMsg{profiles: profiles, counts: counts}
	}
}

func (m *Model) loadPicks(p models.ListenerProfile) tea.Cmd {
	return func() tea.Msg {
		picks, err := m.store.Picks.Latest(p.ID)
		return picksLoadedMsg{profile: p, picks: picks, err: err}
	}
}

func (m *Model) renderProfileList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.profileList.View(), helpView)
}

func (m *Model) renderPickList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.pickList.View(), helpView)
}
