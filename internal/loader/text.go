package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// TextParser reads a plain text file as one document.
type TextParser struct{}

func (TextParser) Parse(_ context.Context, path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	content := strings.ToValidUTF8(string(data), "\uFFFD")
	content = strings.TrimPrefix(content, "\uFEFF")
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoText
	}

	return []domain.Document{{Content: content, Metadata: domain.Metadata{}}}, nil
}
