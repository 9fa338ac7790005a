package wait

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/tracegraph/internal/settings"
	"github.com/maxgio92/tracegraph/pkg/healthcheck"
)

const (
	CmdName       = "wait"
	retryInterval = 500 * time.Millisecond
)

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               CmdName,
		Short:             "Wait for the tracer to be attached",
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.socketPath, "socket-path", "s", settings.HealthSocket, fmt.Sprintf("Path to the %s socket file", settings.CmdName))
	cmd.Flags().DurationVar(&o.timeout, "timeout", time.Second*120, "Timeout")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if err := o.InitLogger(cmd, CmdName); err != nil {
		return err
	}

	o.Logger.Info().Msg("waiting for the tracer to be ready")
	if err := healthcheck.WaitReady(o.Ctx, o.socketPath, o.timeout, retryInterval, o.Logger); err != nil {
		return errors.Wrap(err, "tracer not ready")
	}
	o.Logger.Info().Msg("tracer is ready")

	return nil
}
