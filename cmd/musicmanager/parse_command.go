// cmd/musicmanager/parse_command.go
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/musicmanager/internal/config"
	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/output"
	"github.com/valpere/musicmanager/internal/parser"
)

func newParseCommand(cc *commandContext) *cobra.Command {
	var input inputFlags
	var format string
	var maxCell int

	cmd := &cobra.Command{
		Use:   "parse [files...]",
		Short: "Parse input files and print the records without resolving links",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cc.ensureSettings()
			if err != nil {
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

			pc, err := config.LoadParserConfig(settings.ParserConfig)
			if err != nil {
				return err
			}
			g, err := pc.Grammar()
			if err != nil {
				return err
			}
			lp := parser.NewLineParser(g, logger)

			var records []parser.Record
			for _, f := range files {
				recs, err := lp.ParseFile(cmd.Context(), f, encoding)
				if err != nil {
					return apperrors.Wrap(apperrors.KindParse, "parse input", err)
				}
				records = append(records, recs...)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				for _, rec := range records {
					if err := enc.Encode(rec); err != nil {
						return err
					}
				}
				return nil
			case "table":
				keys := g.Keys()
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					row := make([]string, len(keys))
					for i, k := range keys {
						row[i] = rec.Get(k)
					}
					rows = append(rows, row)
				}
				return output.PrintTable(out, keys, rows, maxCell)
			default:
				return fmt.Errorf("unknown format %q (want json or table)", format)
			}
		},
	}

	input.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	cmd.Flags().IntVar(&maxCell, "max-cell", 40, "Trim table cells to this many characters (0 keeps them whole)")
	return cmd
}
