// internal/output/types.go
package output

import "context"

// Table is a worksheet: a header row and data rows. Rows may be shorter
// than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Store reads and appends worksheet rows. A worksheet that does not exist
// yet reads as an empty table and is created by the first Append.
type Store interface {
	Read(ctx context.Context, worksheet string) (*Table, error)
	// Append adds rows below the existing ones. header is written first
	// when the worksheet has none.
	Append(ctx context.Context, worksheet string, header []string, rows [][]string) error
	Close() error
}

// Kind returns a short name for a store, used in logs.
func Kind(s Store) string {
	switch v := s.(type) {
	case *ExcelStore:
		return "xlsx"
	case *CSVStore:
		return "csv"
	case *SQLStore:
		return v.dialect.name
	default:
		return "unknown"
	}
}
