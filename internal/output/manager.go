// internal/output/manager.go
package output

import (
	"fmt"

	"github.com/valpere/musicmanager/internal/config"
)

// Open returns the store selected by the output configuration.
func Open(cfg config.OutputConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendXLSX:
		return NewExcelStore(cfg.Path)
	case config.BackendCSV:
		return NewCSVStore(cfg.Path)
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.BackendPostgres:
		return NewPostgresStore(cfg.DSN)
	case config.BackendMySQL:
		return NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported output backend: %s", cfg.Backend)
	}
}
