package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kurgg/spm/internal/analysis"
	"github.com/kurgg/spm/internal/models"
	"github.com/kurgg/spm/internal/services"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	AnalyzeView
	ProfileView
	RefreshView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	spotify      services.Service
	analyzer     *analysis.Analyzer
	width        int
	height       int
	playlistList list.Model
	playlists    []models.Playlist
	selected     *models.Playlist
	snapshot     *models.PlaylistSnapshot
	profile      *models.AverageProfile
	replaced     int
	progressChan chan analysis.ProgressUpdate
	progress     analysis.ProgressUpdate
	onDone       func() tea.Msg
	err          error
	help         help.Model
	keys         keyMap
}

type playlistsFetchedMsg struct {
	playlists []models.Playlist
	err       error
}

type analysisCompleteMsg struct {
	snapshot *models.PlaylistSnapshot
	profile  *models.AverageProfile
	err      error
}

type refreshCompleteMsg struct {
	replaced int
	err      error
}

type progressUpdateMsg analysis.ProgressUpdate

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, spotify services.Service, analyzer *analysis.Analyzer) *Model {
	return &Model{
		ctx:      ctx,
		view:     PlaylistListView,
		spotify:  spotify,
		analyzer: analyzer,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.playlistList.Width() == 0 {
			m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ProfileView:
			return m.handleProfileKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case playlistsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.playlists = msg.playlists
		items := make([]list.Item, len(msg.playlists))
		for i, pl := range msg.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Spotify Playlists"
		m.playlistList.SetSize(m.width-4, m.height-8)
		return m, nil

	case progressUpdateMsg:
		m.progress = analysis.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case analysisCompleteMsg:
		m.snapshot = msg.snapshot
		m.profile = msg.profile
		m.err = msg.err
		m.progressChan = nil
		if msg.err != nil {
			m.view = ResultView
			return m, nil
		}
		m.view = ProfileView
		return m, nil

	case refreshCompleteMsg:
		m.replaced = msg.replaced
		m.err = msg.err
		m.progressChan = nil
		m.view = ResultView
		return m, nil
	}

	if m.view == PlaylistListView {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case AnalyzeView:
		return m.renderProgress("Analyzing Playlist")
	case ProfileView:
		return m.renderProfile()
	case RefreshView:
		return m.renderProgress("Refreshing Playlist")
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.playlistList.SelectedItem()
		if selected != nil {
			if pl, ok := selected.(playlistItem); ok {
				m.selected = &pl.playlist
				m.view = AnalyzeView
				return m, m.startAnalysis(pl.playlist.ID)
			}
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleProfileKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "n", "esc":
		m.view = PlaylistListView
		m.snapshot = nil
		m.profile = nil
		return m, nil
	case "y":
		m.view = RefreshView
		return m, m.startRefresh()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = PlaylistListView
		m.selected = nil
		m.snapshot = nil
		m.profile = nil
		m.replaced = 0
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.spotify.GetPlaylists(m.ctx)
		return playlistsFetchedMsg{playlists: playlists, err: err}
	}
}

// startAnalysis runs the analyzer in a goroutine and streams its progress
// updates into the bubbletea message loop.
func (m *Model) startAnalysis(playlistID string) tea.Cmd {
	m.progressChan = make(chan analysis.ProgressUpdate, 50)
	done := make(chan analysisCompleteMsg, 1)

	go func(progress chan analysis.ProgressUpdate) {
		snapshot, profile, err := m.analyzer.Analyze(m.ctx, progress, playlistID)
		done <- analysisCompleteMsg{snapshot: snapshot, profile: profile, err: err}
		close(progress)
	}(m.progressChan)

	m.onDone = func() tea.Msg { return <-done }
	return m.waitForProgress()
}

// startRefresh searches the catalog for tracks matching the profile and
// replaces the selected playlist's contents with them.
func (m *Model) startRefresh() tea.Cmd {
	m.progressChan = make(chan analysis.ProgressUpdate, 50)
	done := make(chan refreshCompleteMsg, 1)

	playlistID := m.selected.ID
	profile := m.profile
	limit := m.snapshot.Playlist.TrackCount

	go func(progress chan analysis.ProgressUpdate) {
		matches, err := m.analyzer.FindMatchingTracks(m.ctx, progress, profile, limit)
		if err == nil {
			err = m.analyzer.Refresh(m.ctx, progress, playlistID, matches)
		}
		done <- refreshCompleteMsg{replaced: len(matches), err: err}
		close(progress)
	}(m.progressChan)

	m.onDone = func() tea.Msg { return <-done }
	return m.waitForProgress()
}

// waitForProgress blocks on the progress channel, converting updates into
// messages. When the channel closes it yields the completion message.
func (m *Model) waitForProgress() tea.Cmd {
	progress := m.progressChan
	return func() tea.Msg {
		if progress == nil {
			return nil
		}

		update, ok := <-progress
		if !ok {
			return m.onDone()
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPlaylistList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderProgress(heading string) string {
	title := styles.title.Render(heading)

	var phase string
	switch m.progress.Phase {
	case analysis.FetchPlaylist:
		phase = "Fetching playlist metadata..."
	case analysis.FetchTracks:
		phase = "Fetching playlist tracks..."
	case analysis.FetchDetails:
		phase = fmt.Sprintf("Fetching track details (%d/%d)", m.progress.Step, m.progress.Total)
	case analysis.Compute:
		phase = "Computing average profile..."
	case analysis.SearchCatalog:
		phase = fmt.Sprintf("Searching catalog (%d/%d)", m.progress.Step, m.progress.Total)
	case analysis.ReplaceItems:
		phase = "Replacing playlist contents..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderProfile() string {
	title := styles.title.Render(fmt.Sprintf("Average profile for '%s'", m.selected.Name))

	info := fmt.Sprintf(
		"\nTracks analyzed: %d\nGenre: %s\nDanceability: %.2f\nEnergy: %.2f\n",
		m.profile.TrackCount,
		m.profile.Genre,
		m.profile.Danceability,
		m.profile.Energy,
	)
	if len(m.profile.Subgenres) > 0 {
		info += fmt.Sprintf("Subgenres: %s\n", strings.Join(m.profile.Subgenres, ", "))
	}
	if m.snapshot.Skipped > 0 {
		info += "\n" + styles.warn.Render(fmt.Sprintf("%d tracks skipped (missing data)", m.snapshot.Skipped)) + "\n"
	}

	question := fmt.Sprintf("\nReplace '%s' with tracks matching this profile?", m.selected.Name)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s%s\n\n%s", title, info, question, helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Failed: %v\n\nPress r to restart, q to quit", m.err))
	}

	title := styles.ok.Render("✓ Playlist Refreshed!")
	info := fmt.Sprintf(
		"\nPlaylist: %s\nReplaced with %d tracks matching genre %q\n",
		m.selected.Name,
		m.replaced,
		m.profile.Genre,
	)

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s\n%s", title, info, helpView)
}
