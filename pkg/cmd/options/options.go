package options

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const LogLevelFlag = "log-level"

type CommonOptions struct {
	Ctx      context.Context
	Logger   log.Logger
	LogLevel string
}

// SetupLogger applies the persistent log level of cmd and tags the
// logger with component.
func (o *CommonOptions) SetupLogger(cmd *cobra.Command, component string) error {
	var err error
	o.LogLevel, err = cmd.Flags().GetString(LogLevelFlag)
	if err != nil {
		return errors.Wrap(err, "failed to get log level")
	}

	logLevel, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel).With().Str("component", component).Logger()

	return nil
}

// Context returns the command context, or the background one.
func (o *CommonOptions) Context() context.Context {
	if o.Ctx == nil {
		return context.Background()
	}
	return o.Ctx
}
