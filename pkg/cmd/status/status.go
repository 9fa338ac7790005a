package status

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxgio92/tracegraph/internal/settings"
	"github.com/maxgio92/tracegraph/pkg/cmd/common"
)

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "status",
		Short:             fmt.Sprintf("Check the %s daemon status", settings.CmdName),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Run:               o.Run,
	}

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) {
	out := cmd.OutOrStdout()
	if pid, ok := common.DaemonPid(); ok {
		fmt.Fprintf(out, "%s is running (PID %d)\n", settings.CmdName, pid)
	} else {
		fmt.Fprintf(out, "%s is not running\n", settings.CmdName)
	}
}
