package domain

import "strings"

// Metadata keys stamped on every document and chunk
const (
	MetaSource      = "source"
	MetaCompanyName = "company_name"
	MetaYear        = "year"
	MetaPage        = "page"
	MetaFormat      = "format"
	MetaOCR         = "ocr"
)

// NotSpecified is stored when the uploader leaves company or year blank.
const NotSpecified = "Not Specified"

// Unknown marks values that could not be determined; like NotSpecified it is never
// offered as a filter option.
const Unknown = "Unknown"

// Metadata is the flat key/value mapping carried by documents and chunks.
type Metadata map[string]string

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Metadata) Source() string      { return m[MetaSource] }
func (m Metadata) CompanyName() string { return m[MetaCompanyName] }
func (m Metadata) Year() string        { return m[MetaYear] }

// OrNotSpecified trims value and substitutes NotSpecified when it is blank.
func OrNotSpecified(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return NotSpecified
	}
	return value
}

// IsPlaceholder reports whether value is a sentinel rather than real metadata.
func IsPlaceholder(value string) bool {
	return value == "" || value == NotSpecified || value == Unknown
}

// Document is raw text extracted from one source file section.
type Document struct {
	Content  string
	Metadata Metadata
}

// NewDocument creates a Document stamped with source, company and year.
func NewDocument(content, source, companyName, year string) Document {
	return Document{
		Content: content,
		Metadata: Metadata{
			MetaSource:      source,
			MetaCompanyName: OrNotSpecified(companyName),
			MetaYear:        OrNotSpecified(year),
		},
	}
}

// Chunk is a semantically bounded slice of a Document.
type Chunk struct {
	ID       string
	Content  string
	Metadata Metadata
}

// ScoredChunk is a search hit. Score is cosine similarity, higher is closer.
type ScoredChunk struct {
	Chunk
	Score float32
}

// Upload is a user-supplied file plus the free-text metadata entered for it.
type Upload struct {
	Filename    string
	Content     []byte
	CompanyName string
	Year        string
}
