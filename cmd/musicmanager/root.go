// cmd/musicmanager/root.go
package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/utils"
)

type commandContext struct {
	configPath string
	verbose    bool

	settingsOnce sync.Once
	settings     *config.Settings
	settingsErr  error

	logger    utils.Logger
	logCloser io.Closer
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureSettings loads the runtime settings once. Without --config the
// defaults are used.
func (c *commandContext) ensureSettings() (*config.Settings, error) {
	c.settingsOnce.Do(func() {
		path := strings.TrimSpace(c.configPath)
		if path == "" {
			c.settings = config.Default()
			return
		}
		c.settings, c.settingsErr = config.LoadFromFile(path)
	})
	return c.settings, c.settingsErr
}

// ensureLogger builds the logger from the settings; --verbose forces
// debug level.
func (c *commandContext) ensureLogger() (utils.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	settings, err := c.ensureSettings()
	if err != nil {
		return nil, err
	}
	logCfg := settings.Logging
	if c.verbose {
		logCfg.Level = "debug"
	}
	c.logger, c.logCloser = utils.NewLogger(logCfg)
	return c.logger, nil
}

func (c *commandContext) close() {
	if c.logCloser != nil {
		c.logCloser.Close()
	}
}

func newRootCommand(cc *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "musicmanager",
		Short:         "Parse music notes, resolve their links and add them to sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Runtime settings file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&cc.verbose, "verbose", "v", false, "Debug logging and technical error details")

	rootCmd.AddCommand(newAddCommand(cc))
	rootCmd.AddCommand(newParseCommand(cc))
	rootCmd.AddCommand(newConfigCommand(cc))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "musicmanager %s (commit %s, built %s)\n", version, gitCommit, buildTime)
			return nil
		},
	}
}
