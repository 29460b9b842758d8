// internal/output/sheet.go
package output

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/entity"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/utils"
)

// ColumnMapping places the fields of a sheet into worksheet columns. The
// worksheet header is matched against each field's nameInSheet.
type ColumnMapping struct {
	Sheet   config.SheetConfig
	Columns []config.Column
	Header  []string
	index   map[string]int
}

// NewColumnMapping maps columns onto header. An empty header means the
// worksheet is new and columns are laid out in declaration order.
func NewColumnMapping(sheet config.SheetConfig, columns []config.Column, header []string) (*ColumnMapping, error) {
	m := &ColumnMapping{Sheet: sheet, Columns: columns, index: make(map[string]int, len(columns))}
	if len(header) == 0 {
		for i, c := range columns {
			m.Header = append(m.Header, c.Header)
			m.index[c.Key] = i
		}
		return m, nil
	}

	if len(header) != len(columns) {
		return nil, fmt.Errorf("sheet %s: worksheet has %d header cells but %d fields are declared (header: %v)",
			sheet.Name, len(header), len(columns), header)
	}
	byHeader := make(map[string]int, len(header))
	for i, h := range header {
		byHeader[strings.TrimSpace(h)] = i
	}
	for _, c := range columns {
		i, ok := byHeader[c.Header]
		if !ok {
			return nil, fmt.Errorf("sheet %s: worksheet header has no %q column", sheet.Name, c.Header)
		}
		m.index[c.Key] = i
	}
	m.Header = append([]string(nil), header...)
	return m, nil
}

// Keys returns the field keys in declaration order.
func (m *ColumnMapping) Keys() []string {
	keys := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		keys[i] = c.Key
	}
	return keys
}

// RowsToRecords converts worksheet rows to records. Short rows read as
// empty cells. Line numbers count the header as line 1.
func (m *ColumnMapping) RowsToRecords(rows [][]string) []parser.Record {
	keys := m.Keys()
	records := make([]parser.Record, 0, len(rows))
	for n, row := range rows {
		values := make(map[string]string, len(keys))
		for _, k := range keys {
			if i := m.index[k]; i < len(row) {
				values[k] = strings.TrimSpace(row[i])
			}
		}
		rec := parser.NewRecord(keys, values)
		rec.LineNo = n + 2
		records = append(records, rec)
	}
	return records
}

// EntitiesToRows converts grouped entities to worksheet rows and collects
// their statistics.
func (m *ColumnMapping) EntitiesToRows(groups []*entity.GroupedEntity) ([][]string, *RowStats) {
	stats := NewRowStats()
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		row := make([]string, len(m.Header))
		values := make(map[string]string, len(m.Columns))
		for _, c := range m.Columns {
			v := g.Field(c.Key)
			row[m.index[c.Key]] = v
			values[c.Key] = v
		}
		stats.Update(g.Record.LineNo, row, values)
		rows = append(rows, row)
	}
	return rows, stats
}

// RowStats tracks the longest row and the longest value of each field.
type RowStats struct {
	LongestLine   int
	LongestLineNo int
	LongestValues map[string]int
}

// NewRowStats returns empty statistics.
func NewRowStats() *RowStats {
	return &RowStats{LongestValues: map[string]int{}}
}

// Update records one row.
func (s *RowStats) Update(lineNo int, row []string, values map[string]string) {
	if l := utf8.RuneCountInString(strings.Join(row, "")); l > s.LongestLine {
		s.LongestLine = l
		s.LongestLineNo = lineNo
	}
	for k, v := range values {
		if l := utf8.RuneCountInString(v); l > s.LongestValues[k] {
			s.LongestValues[k] = l
		}
	}
}

// Log writes the statistics at debug level.
func (s *RowStats) Log(logger utils.Logger) {
	logger.Debugf("longest row: %d characters (line %d)", s.LongestLine, s.LongestLineNo)
	keys := make([]string, 0, len(s.LongestValues))
	for k := range s.LongestValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.Debugf("longest %s: %d characters", k, s.LongestValues[k])
	}
}
