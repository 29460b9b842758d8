// internal/output/database.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

const rowIDColumn = "row_id"

// dialect holds what differs between the SQL backends.
type dialect struct {
	name       string
	driver     string
	rowID      string
	textType   string
	quote      func(string) string
	bind       func(n int) string
	tableQuery string
}

func quoteDouble(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func bindQuestion(int) string { return "?" }

// SQLStore keeps each worksheet in a table with one text column per
// header cell and an auto-increment row id giving row order.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func openSQLStore(d dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d.name, err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

var unsafeTableChars = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName maps a worksheet name to a table name.
func TableName(worksheet string) string {
	name := strings.Trim(unsafeTableChars.ReplaceAllString(strings.ToLower(worksheet), "_"), "_")
	if name == "" {
		name = "sheet"
	}
	return name
}

func (s *SQLStore) exists(ctx context.Context, table string) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.dialect.tableQuery, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Read implements Store.
func (s *SQLStore) Read(ctx context.Context, worksheet string) (*Table, error) {
	table := TableName(worksheet)
	ok, err := s.exists(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	if !ok {
		return &Table{}, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY %s",
		s.dialect.quote(table), s.dialect.quote(rowIDColumn)))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{}
	idIdx := -1
	for i, c := range columns {
		if c == rowIDColumn {
			idIdx = i
			continue
		}
		t.Header = append(t.Header, c)
	}

	for rows.Next() {
		raw := make([]sql.NullString, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		row := make([]string, 0, len(t.Header))
		for i, v := range raw {
			if i != idIdx {
				row = append(row, v.String)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

// Append implements Store. All rows go in one transaction.
func (s *SQLStore) Append(ctx context.Context, worksheet string, header []string, rows [][]string) error {
	table := TableName(worksheet)
	ok, err := s.exists(ctx, table)
	if err != nil {
		return fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	if !ok {
		if len(header) == 0 {
			return fmt.Errorf("table %s does not exist and no header was given", table)
		}
		if err := s.createTable(ctx, table, header); err != nil {
			return err
		}
	} else if existing, err := s.Read(ctx, worksheet); err != nil {
		return err
	} else {
		header = existing.Header
	}
	if len(rows) == 0 {
		return nil
	}

	cols := make([]string, len(header))
	binds := make([]string, len(header))
	for i, h := range header {
		cols[i] = s.dialect.quote(h)
		binds[i] = s.dialect.bind(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.quote(table), strings.Join(cols, ", "), strings.Join(binds, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		args := make([]interface{}, len(header))
		for i := range args {
			if i < len(r) {
				args[i] = r[i]
			} else {
				args[i] = ""
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) createTable(ctx context.Context, table string, header []string) error {
	defs := []string{s.dialect.quote(rowIDColumn) + " " + s.dialect.rowID}
	for _, h := range header {
		defs = append(defs, s.dialect.quote(h)+" "+s.dialect.textType)
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.dialect.quote(table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error { return s.db.Close() }
