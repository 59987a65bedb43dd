// Package document extracts plain text from resume files.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
	"go.uber.org/zap"

	"github.com/spigell/resume-query/internal/logger"
)

// ErrNoText is returned when a document parses but carries no text layer,
// for example a scanned resume without OCR.
var ErrNoText = errors.New("document contains no extractable text")

// PDFExtractor reads the text layer of PDF files through the eino PDF parser.
type PDFExtractor struct {
	parser *pdf.PDFParser
	logger *zap.Logger
}

// NewPDFExtractor builds an extractor that returns the whole document as one
// text rather than one text per page.
func NewPDFExtractor(ctx context.Context, log *zap.Logger) (*PDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("create pdf parser: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &PDFExtractor{parser: p, logger: log}, nil
}

// ExtractText returns the text of the PDF at path.
func (e *PDFExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	started := time.Now()
	log := logger.WithFields(e.logger, logger.DocumentFields(path, "")...)

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	docs, err := e.parser.Parse(ctx, file,
		parser.WithURI(path),
		parser.WithExtraMeta(map[string]any{"source_file_path": path}),
	)
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", path, err)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if text := strings.TrimSpace(doc.Content); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrNoText)
	}

	text := strings.Join(parts, "\n")
	log.Debug("extracted pdf text",
		zap.Int("chars", len([]rune(text))),
		zap.Duration("took", time.Since(started)),
	)

	return text, nil
}
