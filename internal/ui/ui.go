// Package ui renders search results: static tables for plain output and an
// interactive browser for terminals.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"upgrader/internal/match"
	"upgrader/internal/media"
)

// ErrNoResults is returned by Browse when there is nothing to show.
var ErrNoResults = errors.New("no results to browse")

// DetailFunc loads one movie with its torrents. It returns nil when the
// index has no such movie.
type DetailFunc func(ctx context.Context, id string) (*media.Movie, error)

type screen int

const (
	screenList screen = iota
	screenLoading
	screenDetail
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	tableStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

const (
	listHelp   = "↑/↓ move • enter details • q quit"
	detailHelp = "↑/↓ move • b back • q quit"
)

// detailMsg carries a finished detail lookup. seq ties it to the request
// that started it so a lookup abandoned with "b" is ignored.
type detailMsg struct {
	seq   int
	movie *media.Movie
	err   error
}

// Model is the bubbletea model of the result browser.
type Model struct {
	ctx      context.Context
	movies   []media.Movie
	fetch    DetailFunc
	list     table.Model
	torrents table.Model
	spinner  spinner.Model
	screen   screen
	detail   *media.Movie
	status   string
	seq      int
}

// NewModel builds a browser over movies. fetch is called when a row is
// opened.
func NewModel(ctx context.Context, movies []media.Movie, fetch DetailFunc) Model {
	rows := make([]table.Row, 0, len(movies))
	for _, r := range movieRows(movies) {
		rows = append(rows, table.Row(r))
	}

	list := table.New(
		table.WithColumns([]table.Column{
			{Title: "Title", Width: 32},
			{Title: "Year", Width: 6},
			{Title: "Rating", Width: 6},
			{Title: "YTS ID", Width: 8},
			{Title: "IMDb", Width: 11},
			{Title: "URL", Width: 44},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows), 15)+1),
	)
	torrents := table.New(
		table.WithColumns([]table.Column{
			{Title: "Quality", Width: 8},
			{Title: "Type", Width: 8},
			{Title: "Size", Width: 9},
			{Title: "Seeds", Width: 6},
			{Title: "Peers", Width: 6},
			{Title: "Magnet", Width: 48},
		}),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	list.SetStyles(styles)
	torrents.SetStyles(styles)

	return Model{
		ctx:      ctx,
		movies:   movies,
		fetch:    fetch,
		list:     list,
		torrents: torrents,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case detailMsg:
		if msg.seq != m.seq || m.screen != screenLoading {
			return m, nil
		}
		switch {
		case msg.err != nil:
			m.screen = screenList
			m.status = "Detail lookup failed: " + msg.err.Error()
		case msg.movie == nil:
			m.screen = screenList
			m.status = "No detail available"
		default:
			m.showDetail(msg.movie)
		}
		return m, nil

	case spinner.TickMsg:
		if m.screen != screenLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "b", "esc":
		switch m.screen {
		case screenList:
			return m, tea.Quit
		case screenLoading:
			// Abandon the lookup; its result is dropped by seq.
			m.seq++
		}
		m.screen = screenList
		m.detail = nil
		m.status = ""
		return m, nil
	case "enter":
		if m.screen != screenList {
			return m, nil
		}
		idx := m.list.Cursor()
		if idx < 0 || idx >= len(m.movies) {
			return m, nil
		}
		m.seq++
		m.screen = screenLoading
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.loadDetail(m.seq, m.movies[idx]))
	}

	var cmd tea.Cmd
	switch m.screen {
	case screenList:
		m.list, cmd = m.list.Update(msg)
	case screenDetail:
		m.torrents, cmd = m.torrents.Update(msg)
	}
	return m, cmd
}

// loadDetail looks the movie up by index id, then by IMDb id.
func (m Model) loadDetail(seq int, movie media.Movie) tea.Cmd {
	ctx, fetch := m.ctx, m.fetch
	return func() tea.Msg {
		var lastErr error
		for _, id := range detailIDs(movie) {
			got, err := fetch(ctx, id)
			if err != nil {
				lastErr = err
				continue
			}
			if got != nil {
				return detailMsg{seq: seq, movie: got}
			}
		}
		return detailMsg{seq: seq, err: lastErr}
	}
}

func detailIDs(movie media.Movie) []string {
	var ids []string
	if movie.ID > 0 {
		ids = append(ids, strconv.Itoa(movie.ID))
	}
	if movie.IMDbCode != "" {
		ids = append(ids, movie.IMDbCode)
	}
	return ids
}

func (m *Model) showDetail(movie *media.Movie) {
	rows := make([]table.Row, 0, len(movie.Torrents))
	for _, r := range torrentRows(*movie) {
		rows = append(rows, table.Row(r))
	}
	m.torrents.SetRows(rows)
	m.torrents.SetHeight(min(len(rows), 10) + 1)
	m.torrents.GotoTop()
	m.detail = movie
	m.screen = screenDetail
}

// View implements tea.Model.
func (m Model) View() string {
	switch m.screen {
	case screenLoading:
		return lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("YTS results"),
			tableStyle.Render(m.list.View()),
			m.spinner.View()+" Loading details...",
		)
	case screenDetail:
		return m.detailView()
	}

	parts := []string{titleStyle.Render("YTS results"), tableStyle.Render(m.list.View())}
	if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}
	parts = append(parts, helpStyle.Render(listHelp))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) detailView() string {
	d := m.detail
	heading := d.Title
	if d.Year > 0 {
		heading = fmt.Sprintf("%s (%d)", d.Title, d.Year)
	}

	var info []string
	if r := formatRating(d.Rating); r != "" {
		info = append(info, "Rating "+r)
	}
	if d.Runtime > 0 {
		info = append(info, fmt.Sprintf("%d min", d.Runtime))
	}
	if d.IMDbCode != "" {
		info = append(info, d.IMDbCode)
	}
	if d.URL != "" {
		info = append(info, d.URL)
	}

	parts := append([]string{titleStyle.Render(heading)}, info...)

	if len(d.Torrents) == 0 {
		parts = append(parts, statusStyle.Render("No torrents listed"))
	} else {
		parts = append(parts, tableStyle.Render(m.torrents.View()))
		if idx := m.torrents.Cursor(); idx >= 0 && idx < len(d.Torrents) {
			parts = append(parts, match.Magnet(d.Title, d.Torrents[idx]))
		}
	}
	parts = append(parts, helpStyle.Render(detailHelp))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Browse runs the interactive browser until the user quits or ctx ends.
func Browse(ctx context.Context, movies []media.Movie, fetch DetailFunc, in io.Reader, out io.Writer) error {
	if len(movies) == 0 {
		return ErrNoResults
	}

	p := tea.NewProgram(
		NewModel(ctx, movies, fetch),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running browser: %w", err)
	}
	return nil
}
