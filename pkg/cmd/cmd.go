package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/tracegraph/internal/settings"
	"github.com/maxgio92/tracegraph/pkg/cmd/funcs"
	"github.com/maxgio92/tracegraph/pkg/cmd/load"
	"github.com/maxgio92/tracegraph/pkg/cmd/options"
	"github.com/maxgio92/tracegraph/pkg/cmd/status"
	"github.com/maxgio92/tracegraph/pkg/cmd/stop"
	"github.com/maxgio92/tracegraph/pkg/cmd/trace"
	"github.com/maxgio92/tracegraph/pkg/cmd/wait"
)

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   settings.CmdName,
		Short: fmt.Sprintf("%s builds call graphs from function traces", settings.CmdName),
		Long: fmt.Sprintf(`
%s drives the bcc trace tool on the functions of your choice, or reads its saved output,
and aggregates the captured call stacks into a call graph with call counts and parameters.
`, settings.CmdName),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.PersistentFlags().StringVar(&o.LogLevel, options.LogLevelFlag, options.DefaultLogLevel,
		"Set the log level (trace, debug, info, warn, error, fatal, panic)")

	common := []options.Option{
		options.WithContext(o.Ctx),
		options.WithLogger(o.Logger),
	}
	cmd.AddCommand(trace.NewCommand(trace.NewOptions(common...)))
	cmd.AddCommand(load.NewCommand(load.NewOptions(common...)))
	cmd.AddCommand(funcs.NewCommand(funcs.NewOptions(common...)))
	cmd.AddCommand(status.NewCommand(status.NewOptions(common...)))
	cmd.AddCommand(stop.NewCommand(stop.NewOptions(common...)))
	cmd.AddCommand(wait.NewCommand(wait.NewOptions(common...)))

	return cmd
}

// Execute runs the root command until it returns or SIGINT/SIGTERM is
// received. This is called by main.main().
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	go func() {
		<-ctx.Done()
		logger.Debug().Msg("terminating...")
	}()

	opts := NewOptions(
		WithContext(ctx),
		WithLogger(logger),
	)

	if err := NewCommand(opts).Execute(); err != nil {
		cancel()
		os.Exit(1)
	}
}
