package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
	"docqa/internal/render"
)

const welcome = "Welcome. Ask a question about your documents and press Enter."

// Responder is the TUI-facing subset of the QA session.
type Responder interface {
	Respond(ctx context.Context, query string) *domain.QueryResult
}

// answerMsg carries a finished query back into the update loop.
type answerMsg struct {
	query   string
	result  *domain.QueryResult
	elapsed time.Duration
}

// Model is the Bubble Tea model for the interactive QA screen.
type Model struct {
	ctx      context.Context
	service  Responder
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	overview string
	status   string
	result   *domain.QueryResult
	busy     bool
	ready    bool
	width    int
}

// New creates the model. overview is shown under the header.
func New(ctx context.Context, service Responder, overview string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		overview: overview,
		status:   "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + qh + 1 // header, overview, status, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		m.result = msg.result
		if msg.result != nil && msg.result.Kind == domain.ResultFailed {
			m.status = fmt.Sprintf("Failed: %q", msg.query)
		} else {
			m.status = fmt.Sprintf("Answered %q in %s", msg.query, msg.elapsed.Round(time.Millisecond))
		}
		m.refresh()
		m.viewport.GotoTop()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Answering %q", q)
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case tea.KeyCtrlL:
			m.input.Reset()
			m.result = nil
			m.status = "Cleared."
			m.refresh()
			return m, nil
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the query off the update loop.
func (m Model) ask(query string) tea.Cmd {
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		start := time.Now()
		res := service.Respond(ctx, query)
		return answerMsg{query: query, result: res, elapsed: time.Since(start)}
	}
}

func (m *Model) refresh() {
	if m.result == nil {
		m.viewport.SetContent(welcome)
		return
	}
	m.viewport.SetContent(render.Styled(m.result, m.viewport.Width))
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Document QA")
	overview := overviewStyle.Render(m.overview)
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + overview + "\n" +
		resultBoxStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" + status
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	overviewStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
