// internal/output/csv.go
package output

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// CSVStore keeps each worksheet in its own CSV file under a directory.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

// NewCSVStore stores worksheets as <dir>/<worksheet>.csv.
func NewCSVStore(dir string) (*CSVStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("CSV directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &CSVStore{dir: dir}, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (s *CSVStore) path(worksheet string) string {
	return filepath.Join(s.dir, unsafeFileChars.ReplaceAllString(worksheet, "_")+".csv")
}

// Read implements Store.
func (s *CSVStore) Read(_ context.Context, worksheet string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path(worksheet))
	if errors.Is(err, os.ErrNotExist) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	t := &Table{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
		}
		if t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Append implements Store.
func (s *CSVStore) Append(_ context.Context, worksheet string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(worksheet)
	info, statErr := os.Stat(path)
	empty := errors.Is(statErr, os.ErrNotExist) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if empty && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return w.Error()
}

// Close implements Store.
func (s *CSVStore) Close() error { return nil }
