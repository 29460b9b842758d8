// internal/output/excel.go
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// DefaultExcelMaxSheetRows is the row limit of an Excel worksheet.
const DefaultExcelMaxSheetRows = 1048576

// ExcelStore keeps worksheets in one .xlsx workbook.
type ExcelStore struct {
	path string
	mu   sync.Mutex
	file *excelize.File
	// fresh marks a workbook created in memory whose default sheet is unused.
	fresh bool
}

// NewExcelStore opens path, or starts a new workbook saved there on the
// first append.
func NewExcelStore(path string) (*ExcelStore, error) {
	if path == "" {
		return nil, fmt.Errorf("Excel file path is required")
	}
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return nil, fmt.Errorf("file path must end with .xlsx")
	}

	if _, err := os.Stat(path); err == nil {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		return &ExcelStore{path: path, file: f}, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return &ExcelStore{path: path, file: excelize.NewFile(), fresh: true}, nil
}

// Read implements Store.
func (s *ExcelStore) Read(_ context.Context, worksheet string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, _ := s.file.GetSheetIndex(worksheet); idx < 0 {
		return &Table{}, nil
	}
	rows, err := s.file.GetRows(worksheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", worksheet, err)
	}
	t := &Table{}
	if len(rows) == 0 {
		return t, nil
	}
	t.Header = rows[0]
	t.Rows = rows[1:]
	return t, nil
}

// Append implements Store. The workbook is saved after every call.
func (s *ExcelStore) Append(_ context.Context, worksheet string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSheet(worksheet); err != nil {
		return err
	}
	existing, err := s.file.GetRows(worksheet)
	if err != nil {
		return fmt.Errorf("failed to read worksheet %q: %w", worksheet, err)
	}
	row := len(existing) + 1
	if len(existing) == 0 && len(header) > 0 {
		if err := s.writeRow(worksheet, row, header); err != nil {
			return err
		}
		if err := s.applyHeaderStyle(worksheet, len(header)); err != nil {
			return err
		}
		row++
	}
	if row-1+len(rows) > DefaultExcelMaxSheetRows {
		return fmt.Errorf("worksheet %q would exceed %d rows", worksheet, DefaultExcelMaxSheetRows)
	}
	for _, r := range rows {
		if err := s.writeRow(worksheet, row, r); err != nil {
			return err
		}
		row++
	}
	return s.save()
}

func (s *ExcelStore) ensureSheet(worksheet string) error {
	if idx, _ := s.file.GetSheetIndex(worksheet); idx >= 0 {
		return nil
	}
	if s.fresh {
		// reuse the default sheet of a new workbook
		s.fresh = false
		return s.file.SetSheetName(s.file.GetSheetName(0), worksheet)
	}
	if _, err := s.file.NewSheet(worksheet); err != nil {
		return fmt.Errorf("failed to create worksheet %q: %w", worksheet, err)
	}
	return nil
}

func (s *ExcelStore) writeRow(worksheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return s.file.SetSheetRow(worksheet, cell, &cells)
}

func (s *ExcelStore) applyHeaderStyle(worksheet string, columns int) error {
	style, err := s.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return s.file.SetCellStyle(worksheet, "A1", last, style)
}

func (s *ExcelStore) save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return s.file.SaveAs(s.path)
}

// Close implements Store.
func (s *ExcelStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
