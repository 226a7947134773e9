package domain

import (
	"path/filepath"
	"strings"
)

// Format is the closed set of document formats the loader can parse.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatDOCX  Format = "docx"
	FormatPPTX  Format = "pptx"
	FormatText  Format = "txt"
	FormatImage Format = "image"
)

var formatByExtension = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".pptx": FormatPPTX,
	".txt":  FormatText,
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
}

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatPDF, FormatDOCX, FormatPPTX, FormatText, FormatImage}
}

// SupportedExtensions lists the accepted file extensions, lowercase with the dot.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".pptx", ".txt", ".png", ".jpg", ".jpeg"}
}

// FormatFromFilename resolves a filename's extension to a Format.
func FormatFromFilename(name string) (Format, bool) {
	f, ok := formatByExtension[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// IsValid reports whether f is one of the supported formats.
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatDOCX, FormatPPTX, FormatText, FormatImage:
		return true
	default:
		return false
	}
}
