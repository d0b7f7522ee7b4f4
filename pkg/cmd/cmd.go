package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/perfjit/internal/settings"
	"github.com/maxgio92/perfjit/pkg/cmd/discover"
	"github.com/maxgio92/perfjit/pkg/cmd/emit"
	"github.com/maxgio92/perfjit/pkg/cmd/inspect"
	"github.com/maxgio92/perfjit/pkg/cmd/options"
	"github.com/maxgio92/perfjit/pkg/cmd/wait"
)

const logLevelInfo = "info"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   settings.CmdName,
		Short: fmt.Sprintf("%s is a perf jitdump writer for JIT-compiled code", settings.CmdName),
		Long: fmt.Sprintf(`
%s records the code a JIT emits in a perf jitdump file, so that perf can
symbolize and annotate samples that land in JIT-compiled functions.
`, settings.CmdName),
		DisableAutoGenTag: true,
	}
	cmd.PersistentFlags().StringVar(&o.LogLevel, options.LogLevelFlag, logLevelInfo, "Sets the log level (trace, debug, info, warn, error, fatal, panic)")

	cmd.AddCommand(emit.NewCommand(emit.NewOptions(
		emit.WithContext(o.Ctx),
		emit.WithLogger(o.Logger),
	)))
	cmd.AddCommand(inspect.NewCommand(inspect.NewOptions(
		inspect.WithContext(o.Ctx),
		inspect.WithLogger(o.Logger),
	)))
	cmd.AddCommand(discover.NewCommand(discover.NewOptions(
		discover.WithContext(o.Ctx),
		discover.WithLogger(o.Logger),
	)))
	cmd.AddCommand(wait.NewCommand(wait.NewOptions(
		wait.WithContext(o.Ctx),
		wait.WithLogger(o.Logger),
	)))

	return cmd
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	opts := NewOptions(
		WithContext(ctx),
		WithLogger(logger),
	)

	if err := NewCommand(opts).Execute(); err != nil {
		cancel()
		os.Exit(1)
	}
}
