// Package ingest runs batch ingestion: every PDF resume in a directory is
// turned into a candidate record and the whole collection is written out.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-query/internal/candidate"
	"github.com/spigell/resume-query/internal/extraction"
	"github.com/spigell/resume-query/internal/logger"
	"github.com/spigell/resume-query/internal/utils"
)

const documentExt = ".pdf"

// TextExtractor reads the text of one document.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// FieldExtractor turns resume text into a raw field map.
type FieldExtractor interface {
	Extract(ctx context.Context, source, text string) (map[string]any, error)
}

// Options tunes a Pipeline. Zero values select sequential processing and the
// wall clock.
type Options struct {
	Workers int
	Now     func() time.Time
}

// Pipeline is the only writer of the candidate collection file.
type Pipeline struct {
	text    TextExtractor
	fields  FieldExtractor
	workers int
	now     func() time.Time
	logger  *zap.Logger
}

// Failure records a document that did not produce a record.
type Failure struct {
	Path     string
	UniqueID string
	Err      error
}

// Result is the outcome of one ingestion run. Records keep the lexical order
// of their source files.
type Result struct {
	Records  []candidate.Record
	Failures []Failure
}

// ParseFailures returns the failures caused by unparseable extraction output.
func (r *Result) ParseFailures() []Failure {
	var out []Failure
	for _, f := range r.Failures {
		var parseErr *extraction.ParseError
		if errors.As(f.Err, &parseErr) {
			out = append(out, f)
		}
	}
	return out
}

func New(text TextExtractor, fields FieldExtractor, opts Options, log *zap.Logger) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Pipeline{
		text:    text,
		fields:  fields,
		workers: workers,
		now:     now,
		logger:  log,
	}
}

type document struct {
	path     string
	uniqueID string
}

type outcome struct {
	record *candidate.Record
	err    error
}

// Run processes every *.pdf file in inputDir (extension matched
// case-insensitively, other files ignored) and writes the resulting
// collection to outputPath, replacing what was there. A document that fails
// is logged, recorded in Result.Failures and skipped. Only cancellation of
// ctx, an unreadable inputDir or a failed write abort the run.
func (p *Pipeline) Run(ctx context.Context, inputDir, outputPath string) (*Result, error) {
	docs, err := listDocuments(inputDir)
	if err != nil {
		return nil, err
	}

	p.logger.Info("ingestion started",
		zap.String("input_dir", inputDir),
		zap.Int("documents", len(docs)),
		zap.Int("workers", p.workers),
	)

	outcomes := make([]outcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record, err := p.process(gctx, doc)
			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			outcomes[i] = outcome{record: record, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingestion aborted: %w", err)
	}

	result := &Result{Records: make([]candidate.Record, 0, len(docs))}
	for i, o := range outcomes {
		if o.err != nil {
			result.Failures = append(result.Failures, Failure{Path: docs[i].path, UniqueID: docs[i].uniqueID, Err: o.err})
			continue
		}
		result.Records = append(result.Records, *o.record)
	}

	if err := candidate.Save(outputPath, result.Records); err != nil {
		return nil, err
	}

	p.logger.Info("ingestion finished",
		zap.String("output", outputPath),
		zap.Int("records", len(result.Records)),
		zap.Int("failed", len(result.Failures)),
	)

	return result, nil
}

func (p *Pipeline) process(ctx context.Context, doc document) (*candidate.Record, error) {
	log := logger.WithFields(p.logger, logger.DocumentFields(doc.path, doc.uniqueID)...)
	log.Info("processing document")

	text, err := p.text.ExtractText(ctx, doc.path)
	if err != nil {
		log.Warn("skipping document: text extraction failed", zap.Error(err))
		return nil, err
	}

	raw, err := p.fields.Extract(ctx, doc.path, text)
	if err != nil {
		var parseErr *extraction.ParseError
		if errors.As(err, &parseErr) {
			log.Warn("skipping document: model output is not valid JSON",
				zap.Error(err),
				zap.String("raw_output", utils.TruncateForLog(parseErr.Raw, 500)),
			)
		} else {
			log.Warn("skipping document: extraction failed", zap.Error(err))
		}
		return nil, err
	}

	fields, err := candidate.Decode(raw)
	if err != nil {
		log.Warn("some extracted fields were dropped", zap.Error(err))
	}

	record := candidate.Normalize(fields, doc.uniqueID, p.now())
	return &record, nil
}

// listDocuments returns the PDF files of dir in lexical order with their
// unique ids. Files sharing a stem get -2, -3... suffixes in that order.
func listDocuments(dir string) ([]document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), documentExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[stem(name)] = true
	}

	docs := make([]document, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		id := stem(name)
		if seen[id] {
			for n := 2; ; n++ {
				candidateID := id + "-" + strconv.Itoa(n)
				if !taken[candidateID] && !seen[candidateID] {
					id = candidateID
					break
				}
			}
		}
		seen[id] = true
		docs = append(docs, document{path: filepath.Join(dir, name), uniqueID: id})
	}

	return docs, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
