package loader

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

var slidePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// DOCXParser extracts paragraph text, including table cells, from word/document.xml.
type DOCXParser struct{}

func (DOCXParser) Parse(_ context.Context, path string) ([]domain.Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open docx archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		text, err := readPartText(file)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, ErrNoText
		}
		return []domain.Document{{Content: text, Metadata: domain.Metadata{}}}, nil
	}
	return nil, errors.New("docx archive has no word/document.xml")
}

// PPTXParser extracts one document per slide, in slide order.
type PPTXParser struct{}

type slidePart struct {
	number int
	file   *zip.File
}

func (PPTXParser) Parse(_ context.Context, path string) ([]domain.Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pptx archive: %w", err)
	}
	defer reader.Close()

	var slides []slidePart
	for _, file := range reader.File {
		m := slidePattern.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slidePart{number: n, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	var docs []domain.Document
	for _, s := range slides {
		text, err := readPartText(s.file)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, domain.Document{
			Content:  text,
			Metadata: domain.Metadata{domain.MetaPage: strconv.Itoa(s.number)},
		})
	}

	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}

func readPartText(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer rc.Close()

	text, err := extractMarkupText(rc)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", file.Name, err)
	}
	return text, nil
}

// extractMarkupText walks WordprocessingML or DrawingML and returns the text runs,
// one line per paragraph. Both vocabularies use local names t, p, tab and br.
func extractMarkupText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		out    strings.Builder
		line   strings.Builder
		inText bool
	)

	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(s)
			out.WriteString("\n")
		}
		line.Reset()
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteString("\t")
			case "br":
				flush()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()

	return strings.TrimSpace(out.String()), nil
}
