// internal/output/mysql.go
package output

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name:       "mysql",
	driver:     "mysql",
	rowID:      "BIGINT AUTO_INCREMENT PRIMARY KEY",
	textType:   "TEXT",
	quote:      func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
	bind:       bindQuestion,
	tableQuery: "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
}

// NewMySQLStore connects with a go-sql-driver DSN such as
// "user:pass@tcp(host:3306)/music".
func NewMySQLStore(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("MySQL DSN is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return openSQLStore(mysqlDialect, cfg.FormatDSN())
}
