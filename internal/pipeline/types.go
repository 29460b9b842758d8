// internal/pipeline/types.go
package pipeline

import (
	"time"

	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/duplicate"
	"github.com/valpere/musicmanager/internal/entity"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/resolver"
)

// Observer receives pipeline events, normally for metrics.
type Observer interface {
	ObserveRecord(outcome string)
	ObserveDuplicate(reason string)
	ObserveRowsWritten(sheet string, rows int)
	ObserveRun(d time.Duration)
}

// Record outcomes reported to the Observer.
const (
	RecordResolved = "resolved"
	RecordInvalid  = "invalid"
)

// RecordResult is the outcome of resolving one record.
type RecordResult struct {
	Record     parser.Record         `json:"record"`
	Group      *entity.GroupedEntity `json:"-"`
	Resolution resolver.Result       `json:"resolution"`
	Err        error                 `json:"-"`
}

// SheetUpdate is what a run adds to one sheet.
type SheetUpdate struct {
	Sheet      config.SheetConfig    `json:"sheet"`
	Header     []string              `json:"header"`
	Rows       [][]string            `json:"rows"`
	Known      int                   `json:"known"`
	Duplicates []duplicate.Duplicate `json:"-"`
	Written    bool                  `json:"written"`
}

// Stats counts what happened during a run.
type Stats struct {
	Records          int `json:"records"`
	Entities         int `json:"entities"`
	UnhandledLinks   int `json:"unhandled_links"`
	ValidationErrors int `json:"validation_errors"`
	Duplicates       int `json:"duplicates"`
	RowsAdded        int `json:"rows_added"`
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID     string                                            `json:"run_id"`
	StartedAt time.Time                                         `json:"started_at"`
	Duration  time.Duration                                     `json:"duration"`
	Records   []RecordResult                                    `json:"records"`
	Groups    map[entity.Classification][]*entity.GroupedEntity `json:"-"`
	Updates   []SheetUpdate                                     `json:"updates"`
	Stats     Stats                                             `json:"stats"`
}

// ValidationErrors returns the record-level errors of the run.
func (r *RunResult) ValidationErrors() []error {
	var errs []error
	for _, rr := range r.Records {
		if rr.Err != nil {
			errs = append(errs, rr.Err)
		}
	}
	return errs
}
