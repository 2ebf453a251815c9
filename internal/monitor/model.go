// Package monitor is a terminal dashboard of rooms, their members and
// running study timers, refreshed from the store on an interval.
package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/studyroom/internal/models"
	"github.com/julianstephens/studyroom/internal/pidfile"
	"github.com/julianstephens/studyroom/internal/utils"
)

const loadTimeout = 5 * time.Second

// Store is the read side the dashboard polls.
type Store interface {
	ListRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	RoomMembers(ctx context.Context, roomID string) ([]models.User, error)
	ListSessions(ctx context.Context) ([]models.SessionState, error)
}

type snapshotMsg struct {
	rooms    []models.Room
	roomID   string
	members  []models.User
	sessions map[string]models.SessionState
	server   string
	err      error
	at       time.Time
}

type tickMsg time.Time

type Model struct {
	store    Store
	loc      *time.Location
	lockPath string
	interval time.Duration
	now      func() time.Time

	keys  keyMap
	help  help.Model
	table table.Model

	rooms    []models.Room
	roomID   string
	members  []models.User
	sessions map[string]models.SessionState
	server   string
	err      error
	updated  time.Time

	width    int
	height   int
	quitting bool
}

func New(store Store, loc *time.Location, lockPath string, interval time.Duration) Model {
	if loc == nil {
		loc = time.Local
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return Model{
		store:    store,
		loc:      loc,
		lockPath: lockPath,
		interval: interval,
		now:      time.Now,
		keys:     defaultKeyMap(),
		help:     help.New(),
		table:    t,
		sessions: map[string]models.SessionState{},
	}
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	return s
}

func columns(width int) []table.Column {
	title := width - 40
	if title < 12 {
		title = 12
	}
	return []table.Column{
		{Title: "Room", Width: title},
		{Title: "Seats", Width: 7},
		{Title: "Chat", Width: 5},
		{Title: "Public", Width: 7},
		{Title: "Tags", Width: 14},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) selectedRoomID() string {
	if len(m.rooms) == 0 {
		return ""
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rooms) {
		i = 0
	}
	return m.rooms[i].ID
}

// refresh loads a snapshot for the room under the cursor.
func (m Model) refresh() tea.Cmd {
	store, lockPath, roomID, now := m.store, m.lockPath, m.selectedRoomID(), m.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		msg := snapshotMsg{at: now(), sessions: map[string]models.SessionState{}}
		if info, err := pidfile.Check(lockPath); err == nil {
			msg.server = fmt.Sprintf("pid %d on %s", info.PID, info.Addr)
		}

		rooms, err := store.ListRooms(ctx, models.RoomFilter{})
		if err != nil {
			msg.err = fmt.Errorf("failed to list rooms: %w", err)
			return msg
		}
		msg.rooms = rooms

		if roomID == "" && len(rooms) > 0 {
			roomID = rooms[0].ID
		}
		msg.roomID = roomID
		if roomID != "" {
			if msg.members, err = store.RoomMembers(ctx, roomID); err != nil {
				msg.err = fmt.Errorf("failed to list members: %w", err)
				return msg
			}
		}

		sessions, err := store.ListSessions(ctx)
		if err != nil {
			msg.err = fmt.Errorf("failed to list sessions: %w", err)
			return msg
		}
		for _, s := range sessions {
			msg.sessions[s.UserID] = s
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(columns(msg.Width - 4))
		m.table.SetHeight(max(msg.Height/2, 5))
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case snapshotMsg:
		m.updated = msg.at
		m.server = msg.server
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.rooms = msg.rooms
		m.roomID = msg.roomID
		m.members = msg.members
		m.sessions = msg.sessions
		m.table.SetRows(roomRows(msg.rooms))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refresh()
		}
	}

	prev := m.table.Cursor()
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	if m.table.Cursor() != prev {
		return m, tea.Batch(cmd, m.refresh())
	}
	return m, cmd
}

func roomRows(rooms []models.Room) []table.Row {
	rows := make([]table.Row, 0, len(rooms))
	for _, r := range rooms {
		rows = append(rows, table.Row{
			r.Title,
			fmt.Sprintf("%d/%d", r.CurrentNum, r.MaxNum),
			yesNo(r.IsChat),
			yesNo(r.IsPublic),
			strings.Join(r.TagList, ","),
		})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	server := offlineStyle.Render("server not running")
	if m.server != "" {
		server = onlineStyle.Render("● " + m.server)
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render("studyroom monitor"), " ", server)

	var body string
	if len(m.rooms) == 0 {
		body = offlineStyle.Render("No rooms yet.")
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, m.table.View(), panelStyle.Render(m.viewMembers()))
	}

	footer := footerStyle.Render("updated " + m.updated.In(m.loc).Format("15:04:05") + " · " + strconv.Itoa(len(m.sessions)) + " open session(s)")
	parts := []string{header, "", body, footer}
	if m.err != nil {
		parts = append(parts, errorStyle.Render(m.err.Error()))
	}
	parts = append(parts, m.help.View(m.keys))
	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewMembers() string {
	title := "Members"
	for _, r := range m.rooms {
		if r.ID == m.roomID {
			title = r.Title + " · members"
			break
		}
	}
	if len(m.members) == 0 {
		return title + "\n" + idleStyle.Render("empty")
	}

	nowMs := m.updated.UnixMilli()
	lines := []string{title}
	for _, u := range m.members {
		lines = append(lines, fmt.Sprintf("%-16s %s", u.Nickname, m.viewState(m.sessions[u.ID], nowMs)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewState(s models.SessionState, nowMs int64) string {
	switch {
	case s.Focusing():
		return focusStyle.Render("focusing " + utils.FormatMillis(nowMs-s.StreakSince))
	case s.Paused():
		return pauseStyle.Render("resting " + utils.FormatMillis(nowMs-s.PausedSince))
	default:
		return idleStyle.Render("idle")
	}
}
