package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/session"
)

// Controller is the TUI-facing subset of the session controller.
type Controller interface {
	LoadExisting(ctx context.Context, state session.AppState) (session.AppState, error)
	Ingest(ctx context.Context, state session.AppState, uploads []domain.Upload) (session.AppState, *service.IngestResult, error)
	SetFilter(state session.AppState, filter domain.Filter) session.AppState
	Ask(ctx context.Context, state session.AppState, question string) (session.AppState, service.Answer)
	ClearChat(state session.AppState) session.AppState
	DeleteCollection(ctx context.Context, state session.AppState) (session.AppState, error)
}

// stateMsg carries the outcome of a controller call made off the UI loop.
type stateMsg struct {
	state  session.AppState
	status string
	err    error
}

// Model is the Bubble Tea model for the chat UI.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	state    session.AppState
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool
	status   string
	ready    bool
}

// New creates a chat model over an already started session.
func New(ctx context.Context, ctrl Controller, state session.AppState) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What would you like to know? (/help for commands)"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		state:    state,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   state.Notice,
	}
}

// State returns the current session state.
func (m Model) State() session.AppState { return m.state }

func (m Model) Busy() bool { return m.busy }

func (m Model) Status() string { return m.status }

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + th
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case stateMsg:
		m.busy = false
		m.state = msg.state
		switch {
		case msg.err != nil && msg.state.Notice != "":
			m.status = msg.state.Notice
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		case msg.status != "":
			m.status = msg.status
		default:
			m.status = msg.state.Notice
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.Reset()
			if strings.HasPrefix(line, "/") {
				return m.runCommand(line)
			}
			return m.ask(line)
		}
		if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) (tea.Model, tea.Cmd) {
	if !m.state.Ready {
		m.status = "Load or upload documents first (/load or /ingest)."
		return m, nil
	}
	ctx, ctrl, state := m.ctx, m.ctrl, m.state
	return m.startWork("Thinking...", func() tea.Msg {
		next, answer := ctrl.Ask(ctx, state, question)
		msg := stateMsg{state: next, status: "Answered"}
		if answer.Fallback {
			msg.status = fmt.Sprintf("Answer failed at %s stage", answer.Stage)
			if answer.Err != nil {
				msg.status += ": " + answer.Err.Error()
			}
		}
		return msg
	})
}

func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	cmd, err := parseCommand(line)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}

	ctx, ctrl, state := m.ctx, m.ctrl, m.state
	switch cmd.name {
	case "quit", "exit":
		return m, tea.Quit
	case "help":
		m.status = "See commands above."
		m.viewport.SetContent(helpText)
		return m, nil
	case "clear":
		m.state = ctrl.ClearChat(state)
		m.status = "Chat cleared."
	case "company":
		m.state = ctrl.SetFilter(state, domain.NewFilter(cmd.value(), deref(state.Filter.Year)))
		m.status = m.state.FilterLabel()
	case "year":
		m.state = ctrl.SetFilter(state, domain.NewFilter(deref(state.Filter.CompanyName), cmd.value()))
		m.status = m.state.FilterLabel()
	case "load":
		return m.startWork("Loading existing data...", func() tea.Msg {
			next, err := ctrl.LoadExisting(ctx, state)
			return stateMsg{state: next, err: err}
		})
	case "delete":
		return m.startWork("Deleting collection...", func() tea.Msg {
			next, err := ctrl.DeleteCollection(ctx, state)
			return stateMsg{state: next, err: err}
		})
	case "ingest":
		return m.startWork("Processing documents... This may take a while.", func() tea.Msg {
			uploads, err := service.ReadUploads(cmd.args, cmd.company, cmd.year)
			if err != nil {
				return stateMsg{state: state, err: err}
			}
			next, result, err := ctrl.Ingest(ctx, state, uploads)
			msg := stateMsg{state: next, err: err}
			if err == nil && result != nil {
				msg.status = fmt.Sprintf("%s (%d files, %d chunks)", next.Notice, result.Report.Loaded(), result.Chunks)
			}
			return msg
		})
	}
	m.refresh()
	return m, nil
}

func (m Model) startWork(status string, work tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = status
	return m, tea.Batch(work, m.spinner.Tick)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := titleStyle.Render("Annual Report Q&A") + "  " +
		mutedStyle.Render(fmt.Sprintf("(%s)", m.state.FilterLabel()))
	options := mutedStyle.Render(fmt.Sprintf("Companies: %s | Years: %s",
		listOrNone(m.state.Companies), listOrNone(m.state.Years)))

	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}

	return header + "\n" + options + "\n" +
		transcriptBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		status
}

func (m Model) renderTranscript() string {
	if len(m.state.Messages) == 0 {
		if m.state.Ready {
			return mutedStyle.Render("Ask a question about the loaded reports.")
		}
		if m.state.Mode == session.ModeUploadNew {
			return mutedStyle.Render(session.NoticeUploadToBegin)
		}
		return mutedStyle.Render("No collection loaded. Use /load or /ingest.")
	}

	var b strings.Builder
	for _, msg := range m.state.Messages {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(userStyle.Render("You: "))
		default:
			b.WriteString(assistantStyle.Render("Assistant: "))
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
		for i, src := range msg.Sources {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  Context %d (Src: %s, Co: %s, Yr: %s)",
				i+1, src.Source, src.CompanyName, src.Year)))
			b.WriteString("\n")
			b.WriteString(previewStyle.Render("    " + strings.ReplaceAll(src.Preview, "\n", " ")))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true)
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	previewStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Italic(true)
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
