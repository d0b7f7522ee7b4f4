package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/perfjit/internal/settings"
	"github.com/maxgio92/perfjit/pkg/healthcheck"
)

const CmdName = "wait"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               CmdName,
		Short:             "Wait for an emitting process to have announced all of its code",
		DisableAutoGenTag: true,
		Args:              cobra.NoArgs,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.socketPath, "socket-path", "s", settings.SocketPath, fmt.Sprintf("Path to the %s socket file", settings.CmdName))
	cmd.Flags().DurationVar(&o.timeout, "timeout", time.Second*120, "Timeout")
	cmd.Flags().DurationVar(&o.retryInterval, "retry-interval", 500*time.Millisecond, "Interval between readiness checks")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if err := o.SetupLogger(cmd, CmdName); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(o.Context(), o.timeout)
	defer cancel()

	o.Logger.Info().Str("socket", o.socketPath).Msg("waiting for the emitter to be ready")
	path, err := healthcheck.Wait(ctx, o.socketPath, o.retryInterval)
	if err != nil {
		return errors.Wrap(err, "emitter not ready")
	}
	o.Logger.Info().Str("path", path).Msg("emitter is ready")
	fmt.Fprintln(cmd.OutOrStdout(), path)

	return nil
}
