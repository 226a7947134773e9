package session

import (
	"fmt"
	"slices"

	"github.com/cloo-solutions/reportqa/internal/domain"
	"github.com/cloo-solutions/reportqa/internal/service"
	"github.com/cloo-solutions/reportqa/internal/vectorstore"
)

// Mode selects where the session's collection comes from.
type Mode string

const (
	ModeLoadExisting Mode = "load_existing"
	ModeUploadNew    Mode = "upload_new"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLoadExisting, ModeUploadNew:
		return Mode(s), nil
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("unknown mode %q", s))
	}
}

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	sourceLabelMax = 30
	previewChars   = 350
)

// Source is a retrieved chunk as shown under an answer.
type Source struct {
	Source      string  `json:"source"`
	CompanyName string  `json:"company_name"`
	Year        string  `json:"year"`
	Page        string  `json:"page,omitempty"`
	Preview     string  `json:"preview"`
	Score       float32 `json:"score"`
}

// Message is one transcript entry.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}

// AppState is everything one chat session knows. Handlers take a state and return
// the next one.
type AppState struct {
	ID        string               `json:"id"`
	Mode      Mode                 `json:"mode"`
	Index     *vectorstore.Index   `json:"-"`
	QA        *service.QASession   `json:"-"`
	Ready     bool                 `json:"ready"`
	Messages  []Message            `json:"messages"`
	Companies []string             `json:"companies"`
	Years     []string             `json:"years"`
	Filter    domain.Filter        `json:"filter"`
	Notice    string               `json:"notice,omitempty"`
	Report    *domain.IngestReport `json:"report,omitempty"`
}

// NewState returns an unconfigured session that will try to load existing data.
func NewState(id string) AppState {
	return AppState{ID: id, Mode: ModeLoadExisting}
}

// unconfigured drops the index, chain, transcript and filter options.
func (s AppState) unconfigured() AppState {
	s.Index = nil
	s.QA = nil
	s.Ready = false
	s.Messages = nil
	s.Companies = nil
	s.Years = nil
	return s
}

func (s AppState) withMessages(msgs ...Message) AppState {
	s.Messages = append(slices.Clone(s.Messages), msgs...)
	return s
}

// FilterLabel renders the active filter the way the chat header shows it.
func (s AppState) FilterLabel() string {
	if s.Filter.IsEmpty() {
		return "No filters"
	}
	return "Filters: " + s.Filter.String()
}

// SourcesFromChunks converts search hits to display sources.
func SourcesFromChunks(chunks []domain.ScoredChunk) []Source {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]Source, len(chunks))
	for i, c := range chunks {
		out[i] = Source{
			Source:      SourceLabel(orNA(c.Metadata.Source())),
			CompanyName: orNA(c.Metadata.CompanyName()),
			Year:        orNA(c.Metadata.Year()),
			Page:        c.Metadata[domain.MetaPage],
			Preview:     preview(c.Content),
			Score:       c.Score,
		}
	}
	return out
}

// SourceLabel shortens long file names to their last characters.
func SourceLabel(src string) string {
	r := []rune(src)
	if len(r) <= sourceLabelMax {
		return src
	}
	return "..." + string(r[len(r)-(sourceLabelMax-3):])
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewChars {
		return content
	}
	return string(r[:previewChars]) + "..."
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}
