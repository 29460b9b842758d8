// internal/output/postgresql.go
package output

import (
	"fmt"
	"strconv"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var postgresDialect = dialect{
	name:       "postgres",
	driver:     "postgres",
	rowID:      "BIGSERIAL PRIMARY KEY",
	textType:   "TEXT",
	quote:      quoteDouble,
	bind:       func(n int) string { return "$" + strconv.Itoa(n) },
	tableQuery: "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
}

// NewPostgresStore connects with a lib/pq connection string.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQL connection string is required")
	}
	return openSQLStore(postgresDialect, dsn)
}
