package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/session"
)

// fakeController records calls and returns canned states.
type fakeController struct {
	asked    []string
	filters  []domain.Filter
	uploads  []domain.Upload
	loadErr  error
	deleted  bool
	answer   service.Answer
	ingested *service.IngestResult
}

func (f *fakeController) LoadExisting(_ context.Context, s session.AppState) (session.AppState, error) {
	if f.loadErr != nil {
		s.Notice = session.NoticeNoData
		return s, f.loadErr
	}
	s.Ready = true
	s.Notice = session.NoticeLoaded
	return s, nil
}

func (f *fakeController) Ingest(_ context.Context, s session.AppState, uploads []domain.Upload) (session.AppState, *service.IngestResult, error) {
	f.uploads = uploads
	s.Ready = true
	s.Notice = session.NoticeProcessed
	return s, f.ingested, nil
}

func (f *fakeController) SetFilter(s session.AppState, filter domain.Filter) session.AppState {
	f.filters = append(f.filters, filter)
	s.Filter = filter
	return s
}

func (f *fakeController) Ask(_ context.Context, s session.AppState, q string) (session.AppState, service.Answer) {
	f.asked = append(f.asked, q)
	s.Messages = append(s.Messages,
		session.Message{Role: session.RoleUser, Content: q},
		session.Message{Role: session.RoleAssistant, Content: f.answer.Text})
	return s, f.answer
}

func (f *fakeController) ClearChat(s session.AppState) session.AppState {
	s.Messages = nil
	return s
}

func (f *fakeController) DeleteCollection(_ context.Context, s session.AppState) (session.AppState, error) {
	f.deleted = true
	s.Ready = false
	s.Mode = session.ModeUploadNew
	return s, nil
}

func readyState() session.AppState {
	s := session.NewState("s1")
	s.Ready = true
	return s
}

func submit(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

// settle runs cmd and feeds the resulting stateMsg back into the model.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	for _, msg := range flatten(cmd) {
		if sm, ok := msg.(stateMsg); ok {
			next, _ := m.Update(sm)
			return next.(Model)
		}
	}
	t.Fatal("command produced no state update")
	return m
}

func flatten(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, flatten(c)...)
	}
	return out
}

func TestModel_View_BeforeResize(t *testing.T) {
	m := New(context.Background(), &fakeController{}, session.NewState("s1"))

	assert.Equal(t, "Loading...", m.View())
}

func TestModel_AskAppendsTranscript(t *testing.T) {
	ctrl := &fakeController{answer: service.Answer{Text: "Revenue grew 10%."}}
	m := New(context.Background(), ctrl, readyState())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	m, cmd := submit(t, m, "How did revenue change?")
	assert.True(t, m.Busy())

	m = settle(t, m, cmd)

	assert.False(t, m.Busy())
	assert.Equal(t, []string{"How did revenue change?"}, ctrl.asked)
	require.Len(t, m.State().Messages, 2)
	assert.Equal(t, "Answered", m.Status())
	assert.Contains(t, m.View(), "Revenue grew 10%.")
}

func TestModel_AskFallbackStatus(t *testing.T) {
	ctrl := &fakeController{answer: service.Answer{
		Text: service.FallbackAnswer, Fallback: true, Stage: service.StageGeneration, Err: errors.New("timeout"),
	}}
	m := New(context.Background(), ctrl, readyState())

	m, cmd := submit(t, m, "q?")
	m = settle(t, m, cmd)

	assert.Contains(t, m.Status(), "generation")
	assert.Contains(t, m.Status(), "timeout")
}

func TestModel_AskNotReady(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, session.NewState("s1"))

	m, cmd := submit(t, m, "anything?")

	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.asked)
	assert.Contains(t, m.Status(), "/load")
}

func TestModel_FilterCommands(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, readyState())

	m, _ = submit(t, m, "/company Acme Corp")
	m, _ = submit(t, m, "/year 2023")
	require.Len(t, ctrl.filters, 2)
	assert.Equal(t, "Acme Corp", *m.State().Filter.CompanyName)
	assert.Equal(t, "2023", *m.State().Filter.Year)

	m, _ = submit(t, m, "/company All")
	assert.Nil(t, m.State().Filter.CompanyName)
	assert.Equal(t, "2023", *m.State().Filter.Year)
	assert.Equal(t, "Filters: Year: 2023", m.Status())
}

func TestModel_IngestCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acme.txt")
	require.NoError(t, os.WriteFile(path, []byte("Revenue grew."), 0o600))

	report := &domain.IngestReport{}
	report.Add(domain.FileOutcome{Filename: "acme.txt", Status: domain.FileStatusLoaded, Documents: 1})
	ctrl := &fakeController{ingested: &service.IngestResult{Chunks: 1, Report: report}}
	m := New(context.Background(), ctrl, session.NewState("s1"))

	m, cmd := submit(t, m, "/ingest --company Acme --year 2023 "+path)
	m = settle(t, m, cmd)

	require.Len(t, ctrl.uploads, 1)
	assert.Equal(t, "Acme", ctrl.uploads[0].CompanyName)
	assert.Equal(t, "2023", ctrl.uploads[0].Year)
	assert.True(t, m.State().Ready)
	assert.Contains(t, m.Status(), "1 files, 1 chunks")
}

func TestModel_IngestMissingFile(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, session.NewState("s1"))

	m, cmd := submit(t, m, "/ingest /does/not/exist.pdf")
	m = settle(t, m, cmd)

	assert.Nil(t, ctrl.uploads)
	assert.Contains(t, m.Status(), "Error:")
}

func TestModel_LoadFailureShowsNotice(t *testing.T) {
	ctrl := &fakeController{loadErr: domain.ErrNoData}
	m := New(context.Background(), ctrl, session.NewState("s1"))

	m, cmd := submit(t, m, "/load")
	m = settle(t, m, cmd)

	assert.Equal(t, session.NoticeNoData, m.Status())
}

func TestModel_DeleteAndClear(t *testing.T) {
	ctrl := &fakeController{answer: service.Answer{Text: "a"}}
	m := New(context.Background(), ctrl, readyState())

	m, cmd := submit(t, m, "q")
	m = settle(t, m, cmd)
	m, _ = submit(t, m, "/clear")
	assert.Empty(t, m.State().Messages)

	m, cmd = submit(t, m, "/delete")
	m = settle(t, m, cmd)
	assert.True(t, ctrl.deleted)
	assert.Equal(t, session.ModeUploadNew, m.State().Mode)
}

func TestModel_UnknownCommand(t *testing.T) {
	m := New(context.Background(), &fakeController{}, readyState())

	m, cmd := submit(t, m, "/frobnicate")

	assert.Nil(t, cmd)
	assert.Contains(t, m.Status(), "unknown command")
}

func TestModel_IgnoresInputWhileBusy(t *testing.T) {
	ctrl := &fakeController{answer: service.Answer{Text: "a"}}
	m := New(context.Background(), ctrl, readyState())

	m, _ = submit(t, m, "first")
	_, cmd := submit(t, m, "second")

	assert.Nil(t, cmd)
}
