// internal/pipeline/pipeline.go

// Package pipeline runs parsed records through resolution, duplicate
// detection and the sheet update.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/duplicate"
	"github.com/valpere/musicmanager/internal/entity"
	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/output"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/resolver"
	"github.com/valpere/musicmanager/internal/utils"
)

// ErrNoStore is returned when sheet mode runs without an output store.
var ErrNoStore = errors.New("sheet mode needs an output store")

// Config holds pipeline configuration
type Config struct {
	Workers            int    `yaml:"workers" json:"workers"`
	Mode               string `yaml:"mode" json:"mode"`
	DuplicateDetection bool   `yaml:"duplicate_detection" json:"duplicate_detection"`
	MaxCellWidth       int    `yaml:"max_cell_width" json:"max_cell_width"`
}

// ConfigFromSettings derives the pipeline configuration from runtime settings.
func ConfigFromSettings(s *config.Settings) Config {
	return Config{
		Workers:            s.Resolver.Workers,
		Mode:               s.Output.Mode,
		DuplicateDetection: s.DuplicateDetectionEnabled(),
		MaxCellWidth:       60,
	}
}

// Pipeline orchestrates one run: records in, sheet rows out.
type Pipeline struct {
	parser   *parser.LineParser
	resolver *resolver.Resolver
	sheets   *config.ParserConfig
	store    output.Store
	config   Config
	observer Observer
	logger   utils.Logger
	out      io.Writer
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithStore sets the store known rows are read from and new rows appended to.
func WithStore(s output.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithObserver reports run events to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithOutput sets where dry-run tables are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// New creates a pipeline.
func New(lp *parser.LineParser, r *resolver.Resolver, sheets *config.ParserConfig, cfg Config, logger utils.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Mode == "" {
		cfg.Mode = config.ModeDryRun
	}
	p := &Pipeline{
		parser:   lp,
		resolver: r,
		sheets:   sheets,
		config:   cfg,
		logger:   logger.WithField("component", "pipeline"),
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFiles parses every file in order.
func (p *Pipeline) ParseFiles(ctx context.Context, files []string, charset string) ([]parser.Record, error) {
	var records []parser.Record
	for _, f := range files {
		recs, err := p.parser.ParseFile(ctx, f, charset)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	p.logger.Infof("parsed %d records from %d files", len(records), len(files))
	return records, nil
}

// ResolveRecords resolves records concurrently. Results keep the order of
// records. A record whose entities disagree carries its error in the
// result; only cancellation fails the call.
func (p *Pipeline) ResolveRecords(ctx context.Context, records []parser.Record) ([]RecordResult, error) {
	results := make([]RecordResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)

	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			group, res, err := p.resolver.ResolveRecord(gctx, rec)
			results[i] = RecordResult{Record: rec, Group: group, Resolution: res, Err: err}

			outcome := RecordResolved
			if err != nil {
				outcome = RecordInvalid
				p.logger.Errorf("line %d: %v", rec.LineNo, err)
			}
			if p.observer != nil {
				p.observer.ObserveRecord(outcome)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve records: %w", err)
	}
	return results, nil
}

// Run resolves records, groups them by classification and updates the
// sheet of every classification that has one.
func (p *Pipeline) Run(ctx context.Context, records []parser.Record) (*RunResult, error) {
	if p.config.Mode == config.ModeSheet && p.store == nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "run", ErrNoStore)
	}

	run := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Groups:    make(map[entity.Classification][]*entity.GroupedEntity),
	}
	logger := p.logger.WithField("run_id", run.RunID)
	logger.Infof("resolving %d records with %d workers (%s)", len(records), p.config.Workers, p.config.Mode)

	results, err := p.ResolveRecords(ctx, records)
	if err != nil {
		return nil, err
	}
	run.Records = results

	for _, rr := range results {
		run.Stats.Records++
		run.Stats.Entities += len(rr.Resolution.Entities)
		run.Stats.UnhandledLinks += len(rr.Resolution.Unhandled)
		for _, u := range rr.Resolution.Unhandled {
			logger.Warnf("line %d: unhandled link %s (%s)", rr.Record.LineNo, u.URL, u.Reason)
		}
		if rr.Err != nil {
			run.Stats.ValidationErrors++
			continue
		}
		class := rr.Group.Classification()
		if class == entity.Unknown || class == entity.NotFound {
			logger.Errorf("line %d: %s entity %q: %s", rr.Record.LineNo, class, rr.Group.Title(), strings.Join(rr.Group.AllLinks(), " "))
		}
		run.Groups[class] = append(run.Groups[class], rr.Group)
	}

	for _, sheet := range p.sheets.SheetSettings.Sheets {
		groups := run.Groups[entity.Classification(strings.ToLower(sheet.EntityType))]
		if len(groups) == 0 {
			logger.Debugf("sheet %s: nothing to add", sheet.Name)
			continue
		}
		update, err := p.updateSheet(ctx, sheet, groups, logger)
		if err != nil {
			return run, err
		}
		run.Stats.Duplicates += len(update.Duplicates)
		if update.Written {
			run.Stats.RowsAdded += len(update.Rows)
		}
		run.Updates = append(run.Updates, update)
	}

	run.Duration = time.Since(run.StartedAt)
	if p.observer != nil {
		p.observer.ObserveRun(run.Duration)
	}
	logger.Infof("run finished in %s: %d records, %d entities, %d unhandled links, %d invalid, %d duplicates, %d rows added",
		run.Duration.Round(time.Millisecond), run.Stats.Records, run.Stats.Entities, run.Stats.UnhandledLinks,
		run.Stats.ValidationErrors, run.Stats.Duplicates, run.Stats.RowsAdded)
	return run, nil
}

func (p *Pipeline) updateSheet(ctx context.Context, sheet config.SheetConfig, groups []*entity.GroupedEntity, logger utils.Logger) (SheetUpdate, error) {
	logger = logger.WithField("sheet", sheet.Name)
	update := SheetUpdate{Sheet: sheet}
	worksheet := worksheetName(sheet)

	var known *output.Table
	if p.store != nil {
		t, err := p.store.Read(ctx, worksheet)
		if err != nil {
			return update, apperrors.Wrap(apperrors.KindOutput, "read worksheet "+worksheet, err)
		}
		known = t
	} else {
		known = &output.Table{}
	}

	mapping, err := output.NewColumnMapping(sheet, p.sheets.Columns(sheet), known.Header)
	if err != nil {
		return update, apperrors.Wrap(apperrors.KindOutput, "map columns", err)
	}
	update.Header = mapping.Header
	update.Known = len(known.Rows)

	if p.config.DuplicateDetection {
		detector := duplicate.NewDetector(mapping.RowsToRecords(known.Rows), logger)
		groups, update.Duplicates = detector.Filter(groups)
		if p.observer != nil {
			for _, d := range update.Duplicates {
				p.observer.ObserveDuplicate(string(d.Reason))
			}
		}
	}

	rows, stats := mapping.EntitiesToRows(groups)
	stats.Log(logger)
	update.Rows = rows
	logger.Infof("%d new rows, %d duplicates, %d known rows", len(rows), len(update.Duplicates), update.Known)

	if len(rows) == 0 {
		return update, nil
	}

	switch p.config.Mode {
	case config.ModeSheet:
		if err := p.store.Append(ctx, worksheet, mapping.Header, rows); err != nil {
			return update, apperrors.Wrap(apperrors.KindOutput, "append to worksheet "+worksheet, err)
		}
		update.Written = true
		if p.observer != nil {
			p.observer.ObserveRowsWritten(sheet.Name, len(rows))
		}
	default:
		fmt.Fprintf(p.out, "%s (%d new rows)\n", worksheet, len(rows))
		if err := output.PrintTable(p.out, mapping.Header, rows, p.config.MaxCellWidth); err != nil {
			return update, err
		}
	}
	return update, nil
}

func worksheetName(sheet config.SheetConfig) string {
	if sheet.WorksheetName != "" {
		return sheet.WorksheetName
	}
	return sheet.Name
}
