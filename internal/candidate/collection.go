package candidate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyCollection is returned by Load when the collection file exists but
// holds no bytes.
var ErrEmptyCollection = errors.New("candidate collection is empty")

// Save writes records as an indented JSON array to path, replacing any
// previous content. The file is written to a temporary sibling first and
// renamed into place.
func Save(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode candidate collection: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create collection directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temporary collection file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write candidate collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close candidate collection: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace candidate collection %q: %w", path, err)
	}

	return nil
}

// Load reads the collection written by Save.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidate collection: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCollection)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode candidate collection %q: %w", path, err)
	}

	if records == nil {
		records = []Record{}
	}

	return records, nil
}
