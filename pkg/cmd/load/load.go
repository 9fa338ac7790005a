package load

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/tracegraph/pkg/graph"
	"github.com/maxgio92/tracegraph/pkg/report"
	"github.com/maxgio92/tracegraph/pkg/static"
)

const CmdName = "load"

var ErrOutputFormat = errors.New("unsupported output format")

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName + " <file>",
		Short: "Build the call graph of a saved tracer output",
		Long: fmt.Sprintf(`
%s reads the output of a past run of the tracer, with call stacks enabled,
and prints the call graph of its stack samples.
`, CmdName),
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}
	cmd.Flags().StringVarP(&o.outputFormat, "output", "o", OutputText,
		fmt.Sprintf("The format of output (%s, %s, %s)", OutputJSON, OutputDOT, OutputText))

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, args []string) error {
	if err := o.InitLogger(cmd, CmdName); err != nil {
		return err
	}
	write, err := o.writer(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	g := graph.NewCallGraph()
	if err := static.NewLoader(g, static.WithLogger(o.Logger)).LoadFile(args[0]); err != nil {
		return errors.Wrap(err, "failed to load the tracer output")
	}

	return write(report.NewGraphReport(g.Snapshot()))
}

func (o *Options) writer(w io.Writer) (func(*report.GraphReport) error, error) {
	switch o.outputFormat {
	case OutputJSON:
		return func(r *report.GraphReport) error { return r.WriteReport(w) }, nil
	case OutputDOT:
		return func(r *report.GraphReport) error { return r.WriteDOT(w) }, nil
	case OutputText:
		return func(r *report.GraphReport) error { return r.WriteText(w) }, nil
	default:
		return nil, errors.Wrap(ErrOutputFormat, o.outputFormat)
	}
}
