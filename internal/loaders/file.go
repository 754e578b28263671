package loaders

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PDFConverter turns a PDF file into markdown text.
type PDFConverter interface {
	ToMarkdown(ctx context.Context, path string) (string, error)
}

// FileLoader reads local document files. Plain text and markdown are read
// directly; PDFs go through the configured converter.
type FileLoader struct {
	pdf PDFConverter
}

// NewFileLoader builds a file loader. pdf may be nil, in which case PDF
// sources are rejected.
func NewFileLoader(pdf PDFConverter) *FileLoader {
	return &FileLoader{pdf: pdf}
}

// Load reads the document at path and returns (text, docType).
func (l *FileLoader) Load(ctx context.Context, path string) (string, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		if l.pdf == nil {
			return "", "", fmt.Errorf("no PDF converter configured for %s", path)
		}
		text, err := l.pdf.ToMarkdown(ctx, path)
		if err != nil {
			return "", "", fmt.Errorf("converting %s: %w", path, err)
		}
		return text, "pdf", nil
	case ".md", ".markdown":
		text, err := readFile(path)
		return text, "markdown", err
	default:
		text, err := readFile(path)
		return text, "text", err
	}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// CommandConverter shells out to an external tool that prints markdown for a
// PDF path, e.g. pdftotext-style converters.
type CommandConverter struct {
	Command string
	Args    []string
}

func (c *CommandConverter) ToMarkdown(ctx context.Context, path string) (string, error) {
	args := append(append([]string{}, c.Args...), path)
	out, err := exec.CommandContext(ctx, c.Command, args...).Output()
	if err != nil {
		return "", fmt.Errorf("running %s: %w", c.Command, err)
	}
	return string(out), nil
}
