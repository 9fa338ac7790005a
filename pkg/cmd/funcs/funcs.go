package funcs

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/tracegraph/pkg/trace"
)

const CmdName = "funcs"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               CmdName + " <binary>",
		Short:             "List the functions of an ELF binary that can be traced",
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}
	cmd.Flags().StringVar(&o.symExcludePattern, "exclude", "", "Regex pattern to exclude function symbol names")
	cmd.Flags().StringVar(&o.symIncludePattern, "include", "", "Regex pattern to include function symbol names")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, args []string) error {
	if err := o.InitLogger(cmd, CmdName); err != nil {
		return err
	}

	setup := trace.NewSetup(
		trace.WithSetupSymPatternInclude(o.symIncludePattern),
		trace.WithSetupSymPatternExclude(o.symExcludePattern),
		trace.WithSetupLogger(o.Logger),
	)
	if err := setup.Init(); err != nil {
		return err
	}
	if err := setup.InitializeBinary(args[0]); err != nil {
		return errors.Wrap(err, "failed to read the binary")
	}
	funcs, err := setup.Functions(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range funcs {
		fmt.Fprintf(out, "%#08x\t%s\n", f.Offset, f.Name)
	}

	return nil
}
