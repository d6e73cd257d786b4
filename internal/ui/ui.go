package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	UserListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

// UserLister loads the users shown in the list view.
type UserLister interface {
	List(criteria map[string]any) ([]*models.User, error)
}

// run is one batch started from the TUI.
type run struct {
	progress chan tasks.ProgressUpdate
	done     chan syncComplete
	cancel   context.CancelFunc
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	view       ViewState
	users      UserLister
	controller *tasks.BatchController
	width      int
	height     int
	userList   list.Model
	selected   []*models.User
	run        *run
	update     tasks.ProgressUpdate
	bar        progress.Model
	result     *tasks.BatchResult
	resultList list.Model
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, users UserLister, controller *tasks.BatchController) *Model {
	return &Model{
		ctx:        ctx,
		view:       UserListView,
		users:      users,
		controller: controller,
		userList:   newUserList(nil, 0, 0),
		resultList: newResultList(nil, 0, 0),
		bar:        progress.New(progress.WithDefaultGradient()),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init initializes the TUI by loading the users.
func (m *Model) Init() tea.Cmd {
	return m.fetchUsers()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.userList.SetSize(msg.Width-4, msg.Height-8)
		m.resultList.SetSize(msg.Width-4, msg.Height-12)
		m.bar.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case UserListView:
			return m.handleUserListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgUsersFetched:
		data := msg.data.(usersFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.users))
		for i, u := range data.users {
			items[i] = userItem{user: u}
		}
		return m, m.userList.SetItems(items)

	case MsgProgressUpdate:
		m.update = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.result = data.result
		m.err = data.err
		m.run = nil
		m.view = ResultView
		m.resultList = newResultList(data.result, m.width, m.height)
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == UserListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case UserListView:
		return m.renderUserList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// State returns the current view state.
func (m *Model) State() ViewState { return m.view }

// Result returns the last batch result, or nil.
func (m *Model) Result() *tasks.BatchResult { return m.result }

// Err returns the last error, or nil.
func (m *Model) Err() error { return m.err }

func (m *Model) handleUserListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.userList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.userList, cmd = m.userList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.userList.SelectedItem().(userItem); ok {
			m.selected = []*models.User{item.user}
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		m.selected = m.selected[:0]
		for _, item := range m.userList.Items() {
			if u, ok := item.(userItem); ok {
				m.selected = append(m.selected, u.user)
			}
		}
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.userList, cmd = m.userList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = UserListView
		m.selected = nil
	}
	return m, nil
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.run != nil {
		m.run.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = UserListView
		m.selected = nil
		m.result = nil
		m.err = nil
		m.update = tasks.ProgressUpdate{}
		return m, m.fetchUsers()
	}

	var cmd tea.Cmd
	m.resultList, cmd = m.resultList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case UserListView:
		m.userList, cmd = m.userList.Update(msg)
	case ResultView:
		m.resultList, cmd = m.resultList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchUsers() tea.Cmd {
	return func() tea.Msg {
		users, err := m.users.List(map[string]any{})
		return usersFetchedMsg(users, err)
	}
}

// startSync launches the batch in the background. Results come back through waitForProgress.
func (m *Model) startSync() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	r := &run{
		progress: make(chan tasks.ProgressUpdate, 50),
		done:     make(chan syncComplete, 1),
		cancel:   cancel,
	}
	m.run = r
	m.update = tasks.ProgressUpdate{Message: "Starting..."}

	users := append([]*models.User(nil), m.selected...)
	go func() {
		defer cancel()
		result, err := m.controller.RunBatch(ctx, users, r.progress)
		close(r.progress)
		r.done <- syncComplete{result: result, err: err}
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	r := m.run
	return func() tea.Msg {
		if r == nil {
			return nil
		}

		update, ok := <-r.progress
		if !ok {
			out := <-r.done
			return syncCompleteMsg(out.result, out.err)
		}
		return progressUpdateMsg(update)
	}
}

func newUserList(items []list.Item, width, height int) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), max(width-4, 0), max(height-8, 0))
	l.Title = "Users"
	l.SetShowHelp(false)
	return l
}

func newResultList(result *tasks.BatchResult, width, height int) list.Model {
	var items []list.Item
	if result != nil {
		items = make([]list.Item, len(result.Users))
		for i, u := range result.Users {
			items[i] = resultItem{result: u}
		}
	}
	l := list.New(items, list.NewDefaultDelegate(), max(width-4, 0), max(height-12, 0))
	l.Title = "Results"
	l.SetShowHelp(false)
	return l
}

func (m *Model) renderUserList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.all, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.userList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	eligible := 0
	names := make([]string, 0, len(m.selected))
	for _, u := range m.selected {
		names = append(names, u.String())
		if u.CanSync() {
			eligible++
		}
	}

	title := styles.title.Render("Sync with Last.fm?")
	info := fmt.Sprintf("\nUsers: %s\nEligible: %d of %d\n", strings.Join(names, ", "), eligible, len(m.selected))
	if eligible == 0 {
		info += styles.warn.Render("None of these users has a Last.fm session.") + "\n"
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Importing from Last.fm")

	var phase string
	switch m.update.Phase {
	case tasks.StartUser, tasks.FinishUser, tasks.FailUser:
		phase = fmt.Sprintf("User %d/%d", m.update.Step, m.update.Total)
	case tasks.FetchLoved:
		phase = "Fetching loved tracks..."
	case tasks.ListArtists:
		phase = fmt.Sprintf("Scanning %d artists", m.update.Total)
	case tasks.FetchPages:
		phase = fmt.Sprintf("Artist %d/%d", m.update.Step, m.update.Total)
	default:
		phase = "Processing..."
	}

	bar := m.bar.ViewAs(m.update.Percent / 100)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s\n\n%s", title, bar, phase, styles.help.Render(m.update.Message), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Sync failed: %v", m.err)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	title := styles.ok.Render("✓ Sync Complete")
	if m.result.Status == models.RunStatusCancelled {
		title = styles.warn.Render("Sync cancelled")
	}

	counts := m.result.Counts()
	summary := styles.box.Render(fmt.Sprintf(
		"Users: %d synced, %d failed of %d\nSongs: %d local, %d remote, %d matched (%.1f%%)\nFavorites updated: %d\nDuration: %s",
		counts.UsersSynced, counts.UsersFailed, counts.UsersTotal,
		counts.LocalSongs, counts.RemoteSongs, counts.MatchedSongs, m.result.MatchRate(),
		counts.FavoritesUpdated,
		m.result.Duration().Round(time.Second),
	))

	if len(m.result.Users) == 0 {
		return fmt.Sprintf("%s\n\n%s\n\n%s", title, summary, helpView)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s", title, summary, m.resultList.View(), helpView)
}
