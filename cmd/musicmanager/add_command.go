// cmd/musicmanager/add_command.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/musicmanager/internal/app"
	"github.com/valpere/musicmanager/internal/config"
	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/output"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/pipeline"
)

var errNoInput = errors.New("no input files; use --src-file or --src-dir")

type inputFlags struct {
	files    []string
	dir      string
	encoding string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.files, "src-file", nil, "Input text file (repeatable)")
	cmd.Flags().StringVar(&f.dir, "src-dir", "", "Directory searched recursively for *.txt input files")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "Input charset (default utf-8)")
}

// resolve merges flags, positional arguments and settings into the list
// of input files and the charset.
func (f *inputFlags) resolve(settings *config.Settings, args []string) ([]string, string, error) {
	files := append(append(append([]string(nil), settings.Input.Files...), f.files...), args...)
	dir := f.dir
	if dir == "" {
		dir = settings.Input.Dir
	}
	collected, err := parser.CollectInputFiles(files, dir)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.KindParse, "collect input files", err)
	}
	if len(collected) == 0 {
		return nil, "", apperrors.Wrap(apperrors.KindParse, "collect input files", errNoInput)
	}
	encoding := f.encoding
	if encoding == "" {
		encoding = settings.Input.Encoding
	}
	return collected, encoding, nil
}

func newAddCommand(cc *commandContext) *cobra.Command {
	var input inputFlags
	var mode string
	var noDuplicates bool

	cmd := &cobra.Command{
		Use:   "add [files...]",
		Short: "Resolve new entries and add them to their sheets",
		Long: `Parse the input files, resolve every link, group the records by
classification and add the entities that are not already recorded to the
sheet of their type. In dry-run mode the new rows are only printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cc.ensureSettings()
			if err != nil {
				return err
			}
			if mode != "" {
				settings.Output.Mode = mode
			}
			if noDuplicates {
				off := false
				settings.DuplicateDetection = &off
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			logger, err := cc.ensureLogger()
			if err != nil {
				return err
			}

			files, encoding, err := input.resolve(settings, args)
			if err != nil {
				return err
			}

			a, err := app.New(settings, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var store output.Store
			if settings.Output.Mode == config.ModeSheet || knownRowsAvailable(settings.Output) {
				store, err = a.OpenStore()
				if err != nil {
					return apperrors.Wrap(apperrors.KindOutput, "open store", err)
				}
				defer store.Close()
			}

			p := a.NewPipeline(store, cmd.OutOrStdout())
			records, err := p.ParseFiles(cmd.Context(), files, encoding)
			if err != nil {
				return apperrors.Wrap(apperrors.KindParse, "parse input", err)
			}
			run, err := p.Run(cmd.Context(), records)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), run)
			if n := len(run.ValidationErrors()); n > 0 {
				return apperrors.Wrap(apperrors.KindValidation, "add", fmt.Errorf("%d records failed validation", n))
			}
			return nil
		},
	}

	input.register(cmd)
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Operation mode: dry-run or sheet (overrides settings)")
	cmd.Flags().BoolVar(&noDuplicates, "no-duplicate-detection", false, "Keep entities already present in the sheets")
	return cmd
}

// knownRowsAvailable reports whether a dry run can read known rows
// without creating anything.
func knownRowsAvailable(out config.OutputConfig) bool {
	switch out.Backend {
	case config.BackendPostgres, config.BackendMySQL:
		return out.DSN != ""
	default:
		if out.Path == "" {
			return false
		}
		_, err := os.Stat(out.Path)
		return err == nil
	}
}

func printSummary(w io.Writer, run *pipeline.RunResult) {
	s := run.Stats
	fmt.Fprintf(w, "Run %s: %d records, %d entities, %d unhandled links, %d invalid records, %d duplicates, %d rows added\n",
		run.RunID, s.Records, s.Entities, s.UnhandledLinks, s.ValidationErrors, s.Duplicates, s.RowsAdded)
	for _, err := range run.ValidationErrors() {
		fmt.Fprintf(w, "  invalid: %v\n", err)
	}
	for _, u := range run.Updates {
		state := "printed"
		if u.Written {
			state = "written"
		}
		fmt.Fprintf(w, "  %s: %d new rows %s, %d duplicates, %d known rows\n",
			strings.TrimSpace(u.Sheet.Name), len(u.Rows), state, len(u.Duplicates), u.Known)
	}
}
