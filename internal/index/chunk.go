// Package index turns candidate records into embedded text chunks and keeps
// them in a persisted similarity index.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/spigell/resume-query/internal/candidate"
)

const (
	DefaultChunkSize    = 700
	DefaultChunkOverlap = 50
)

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("resume-query/chunk"))

// Chunk is a contiguous piece of one serialized record. Start and End are
// rune offsets into the record text. Name, UniqueID and Designation are
// copied from the parent record.
type Chunk struct {
	ID          string
	UniqueID    string
	Name        string
	Designation string
	Text        string
	Seq         int
	Start       int
	End         int
}

// Span is one window produced by Split.
type Span struct {
	Text  string
	Start int
	End   int
}

// Split cuts text into windows of at most size runes. Consecutive windows
// share exactly overlap runes, so dropping the first overlap runes of every
// window but the first gives back the original text.
func Split(text string, size, overlap int) ([]Span, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	spans := make([]Span, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		spans = append(spans, Span{Text: string(runes[start:end]), Start: start, End: end})
		if end == len(runes) {
			break
		}
	}

	return spans, nil
}

// RecordText is the text indexed for a record: its keyword line followed by
// the record as indented JSON.
func RecordText(r candidate.Record) (string, error) {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", r.UniqueID, err)
	}

	keywords := strings.Join(r.Keywords, ", ")
	if keywords == "" {
		keywords = "None"
	}

	return "Keywords: " + keywords + "\n\n" + string(body), nil
}

// Chunks splits every record and tags each piece with its parent metadata.
func Chunks(records []candidate.Record, size, overlap int) ([]Chunk, error) {
	var chunks []Chunk
	for _, r := range records {
		text, err := RecordText(r)
		if err != nil {
			return nil, err
		}

		spans, err := Split(text, size, overlap)
		if err != nil {
			return nil, err
		}

		for seq, span := range spans {
			chunks = append(chunks, Chunk{
				ID:          chunkID(r, span),
				UniqueID:    r.UniqueID,
				Name:        r.Name,
				Designation: r.Designation,
				Text:        span.Text,
				Seq:         seq,
				Start:       span.Start,
				End:         span.End,
			})
		}
	}

	return chunks, nil
}

func chunkID(r candidate.Record, span Span) string {
	key := strings.Join([]string{
		r.UniqueID,
		r.Name,
		r.Designation,
		strconv.Itoa(span.Start),
		span.Text,
	}, "\x00")
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// ErrUnavailable reports a persisted index that is missing, empty or unreadable.
var ErrUnavailable = errors.New("index unavailable")
