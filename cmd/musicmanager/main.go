// cmd/musicmanager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/valpere/musicmanager/internal/errors"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cc := newCommandContext()
	cmd := newRootCommand(cc)
	err := cmd.ExecuteContext(ctx)
	cc.close()
	if err != nil {
		os.Exit(reportError(err, cc.verbose))
	}
}

// reportError prints err for the terminal and returns the exit code.
func reportError(err error, verbose bool) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	}
	if apperrors.KindOf(err) == apperrors.KindUnknown {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	errorService := apperrors.NewService(apperrors.DefaultRetryConfig()).WithVerbose(verbose)
	fmt.Fprint(os.Stderr, errorService.FormatErrorForCLI(err))
	return errorService.GetExitCode(err)
}
