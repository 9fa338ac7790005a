package options

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	LogLevelFlag    = "log-level"
	DefaultLogLevel = "info"
)

type CommonOptions struct {
	Ctx      context.Context
	Logger   log.Logger
	LogLevel string
}

type Option func(o *CommonOptions)

func NewCommonOptions(opts ...Option) *CommonOptions {
	o := &CommonOptions{
		Ctx:      context.Background(),
		Logger:   log.Nop(),
		LogLevel: DefaultLogLevel,
	}
	for _, f := range opts {
		f(o)
	}

	return o
}

func WithContext(ctx context.Context) Option {
	return func(o *CommonOptions) {
		o.Ctx = ctx
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *CommonOptions) {
		o.Logger = logger
	}
}

func WithLogLevel(level string) Option {
	return func(o *CommonOptions) {
		o.LogLevel = level
	}
}

// InitLogger applies the --log-level flag of cmd to the logger and tags it
// with component.
func (o *CommonOptions) InitLogger(cmd *cobra.Command, component string) error {
	if f := cmd.Flags().Lookup(LogLevelFlag); f != nil {
		o.LogLevel = f.Value.String()
	}

	logLevel, err := log.ParseLevel(o.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel).With().Str("component", component).Logger()

	return nil
}
