// cmd/musicmanager/config_commands.go
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/output"
)

func newConfigCommand(cc *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(cc))
	configCmd.AddCommand(newConfigFieldsCommand(cc))

	return configCmd
}

func newConfigValidateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the runtime settings and the parser configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			settings, err := cc.ensureSettings()
			if err != nil {
				return err
			}
			result := settings.ValidateWithDetails()
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if err := result.Err("configuration"); err != nil {
				return err
			}

			pc, err := config.LoadParserConfig(settings.ParserConfig)
			if err != nil {
				return err
			}
			pcResult := pc.ValidateWithDetails()
			for _, w := range pcResult.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if _, err := pc.Grammar(); err != nil {
				return err
			}

			source := settings.ParserConfig
			if source == "" {
				source = "built-in"
			}
			fmt.Fprintf(out, "Parser config: %s (%d fields, %d sheets)\n",
				source, len(pc.Base().Fields), len(pc.SheetSettings.Sheets))
			fmt.Fprintf(out, "Output: %s via %s\n", settings.Output.Mode, settings.Output.Backend)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigFieldsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the fields of the parser configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cc.ensureSettings()
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

			header := []string{"Key", "Type", "Prefix", "Precedence", "Optional", "Greedy", "Display name"}
			var rows [][]string
			for _, s := range g.Specs() {
				rows = append(rows, []string{
					s.Key, s.Kind.String(), s.Prefix, strconv.Itoa(s.Precedence),
					strconv.FormatBool(s.Optional), strconv.FormatBool(s.GreedyFallback), s.DisplayName,
				})
			}
			return output.PrintTable(cmd.OutOrStdout(), header, rows, 0)
		},
	}
}
