// cmd/server/main.go

// Command server exposes line parsing and link resolution over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/musicmanager/internal/api"
	"github.com/valpere/musicmanager/internal/app"
	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/monitoring"
	"github.com/valpere/musicmanager/internal/utils"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath, listen string

	cmd := &cobra.Command{
		Use:           "musicmanager-server",
		Short:         "Serve the parse and resolve API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := config.Default()
			if configPath != "" {
				var err error
				if settings, err = config.LoadFromFile(configPath); err != nil {
					return err
				}
			}
			if listen != "" {
				settings.Server.ListenAddress = listen
			}
			logger, closer := utils.NewLogger(settings.Logging)
			defer closer.Close()
			return serve(cmd.Context(), settings, logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Runtime settings file (YAML)")
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen_address)")
	return cmd
}

// newHandler builds the application and its API router.
func newHandler(settings *config.Settings, logger utils.Logger) (*api.Server, *app.App, error) {
	a, err := app.New(settings, logger)
	if err != nil {
		return nil, nil, err
	}

	health := monitoring.NewHealthManager(version, 0)
	health.RegisterCheck("goroutines", false, monitoring.GoroutineHealthCheck(10000))
	health.RegisterCheck("providers", true, func(ctx context.Context) error {
		if len(a.Registry.Names()) == 0 {
			return errors.New("no providers registered")
		}
		return nil
	})
	if a.Proxies != nil {
		health.RegisterCheck("proxies", false, func(ctx context.Context) error {
			if s := a.Proxies.Stats(); s.HealthyProxies == 0 {
				return fmt.Errorf("all %d proxies out of rotation", s.TotalProxies)
			}
			return nil
		})
	}
	if settings.Output.DSN != "" {
		health.RegisterCheck("store", false, func(ctx context.Context) error {
			store, err := a.OpenStore()
			if err != nil {
				return err
			}
			return store.Close()
		})
	}

	srv := api.NewServer(a.Parser, a.Resolver, health, a.Metrics, api.Config{
		APIKey:            settings.Server.APIKey,
		RequestsPerSecond: settings.Server.RequestsPerSecond,
		Burst:             settings.Server.Burst,
	}, logger)
	return srv, a, nil
}

func serve(ctx context.Context, settings *config.Settings, logger utils.Logger) error {
	handler, a, err := newHandler(settings, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	httpServer := &http.Server{
		Addr:         settings.Server.ListenAddress,
		Handler:      handler,
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s (providers %v, GOMAXPROCS %d)", httpServer.Addr, a.Registry.Names(), runtime.GOMAXPROCS(0))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
