package domain

// FileStatus is the per-file outcome of a load.
type FileStatus string

const (
	FileStatusLoaded      FileStatus = "loaded"
	FileStatusUnsupported FileStatus = "unsupported"
	FileStatusFailed      FileStatus = "extraction_failed"
)

// FileOutcome records what happened to one uploaded file.
type FileOutcome struct {
	Filename  string     `json:"filename"`
	Status    FileStatus `json:"status"`
	Documents int        `json:"documents"`
	Reason    string     `json:"reason,omitempty"`
}

// IngestReport aggregates the outcomes of one upload batch.
type IngestReport struct {
	Files []FileOutcome `json:"files"`
}

// Add appends an outcome.
func (r *IngestReport) Add(o FileOutcome) {
	r.Files = append(r.Files, o)
}

// Loaded counts files that produced at least one document.
func (r *IngestReport) Loaded() int {
	n := 0
	for _, f := range r.Files {
		if f.Status == FileStatusLoaded {
			n++
		}
	}
	return n
}

// Documents totals extracted documents across files.
func (r *IngestReport) Documents() int {
	n := 0
	for _, f := range r.Files {
		n += f.Documents
	}
	return n
}

// Skipped returns outcomes that did not load.
func (r *IngestReport) Skipped() []FileOutcome {
	var out []FileOutcome
	for _, f := range r.Files {
		if f.Status != FileStatusLoaded {
			out = append(out, f)
		}
	}
	return out
}
