package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/logging"
)

// setupLogging builds the logger from config and CLI flags and stores it
// with a fresh trace id on the command context.
func setupLogging(cmd *cobra.Command, loggingCfg config.LoggingConfig, debug bool) *logging.Result {
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = "console"
		loggingCfg.File = ""
	}

	if loggingCfg.Format == "" {
		loggingCfg.Format = "json"
		if loggingCfg.File == "" && isTerminal(os.Stderr) {
			loggingCfg.Format = "console"
		}
	}

	// Ensure log directory exists after all overrides have been applied.
	if loggingCfg.File != "" {
		if err := loggingCfg.EnsureLogDir(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not create log directory: %v\n", err)
		}
	}

	lc := loggingCfg.ToLoggingConfig()
	lc.Caller = debug
	result := logging.NewLogger(lc)
	if result.FallbackReason != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: logging to stderr: %s\n", result.FallbackReason)
	}
	logging.SetGlobal(result.Logger)

	logger := logging.ComponentLogger(result.Logger, "cli")
	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	ctx = result.Logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().
		Ctx(ctx).
		Str("command", cmd.CommandPath()).
		Bool("stdin_tty", isTerminal(os.Stdin)).
		Msg("command started")

	return result
}
