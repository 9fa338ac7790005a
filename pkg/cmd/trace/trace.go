package trace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/tracegraph/internal/output"
	"github.com/maxgio92/tracegraph/internal/settings"
	"github.com/maxgio92/tracegraph/pkg/cmd/common"
	"github.com/maxgio92/tracegraph/pkg/graph"
	"github.com/maxgio92/tracegraph/pkg/healthcheck"
	"github.com/maxgio92/tracegraph/pkg/report"
	"github.com/maxgio92/tracegraph/pkg/trace"
)

const CmdName = "trace"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName + " [functions...]",
		Short: "Trace functions and build their call graph",
		Long: fmt.Sprintf(`
%s runs the tracer on the given functions, in the tracer probe syntax (e.g. /usr/bin/app:func1 or do_sys_open),
and on the functions set up in the configuration file, until interrupted or until the tracer exits.
The call graph is written as a JSON report at the end.
`, CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to the YAML file of the functions to trace")
	cmd.Flags().StringVar(&o.symExcludePattern, "exclude", "", "Regex pattern to exclude function symbol names of the configured binaries")
	cmd.Flags().StringVar(&o.symIncludePattern, "include", "", "Regex pattern to include function symbol names of the configured binaries")

	cmd.Flags().StringVar(&o.tracerPath, "tracer", settings.DefaultTracer, "Path to the bcc trace tool")
	cmd.Flags().StringVar(&o.stackFlag, "stack-flag", settings.DefaultStackFlag, "Tracer flag asking for the call stacks")
	cmd.Flags().StringVarP(&o.socketPath, "socket-path", "s", settings.HealthSocket, "Path to the readiness socket file")
	cmd.Flags().StringVar(&o.reportPath, "report", settings.ReportFileName, "Path of the JSON report, empty to skip it")

	cmd.Flags().BoolVarP(&o.detach, "detach", "d", false, fmt.Sprintf("Run %s as daemon", settings.CmdName))
	cmd.Flags().BoolVar(&o.status, "status", false, "Periodically print a status of the trace")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, args []string) error {
	if err := o.InitLogger(cmd, CmdName); err != nil {
		return err
	}
	if o.detach {
		return o.daemonize(args)
	}

	functions, err := o.functions(args)
	if err != nil {
		return err
	}

	// Store PID file.
	if err := os.WriteFile(settings.PidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		o.Logger.Warn().Err(err).Str("path", settings.PidFile).Msg("failed to write PID file, stop and wait will not find this session")
	} else {
		defer os.Remove(settings.PidFile)
	}

	ctx, cancel := context.WithCancel(o.Ctx)
	defer cancel()

	hc := healthcheck.NewReadinessServer(o.socketPath, o.Logger)
	if err := hc.InitializeListener(ctx); err != nil {
		return errors.Wrap(err, "failed to start the readiness server")
	}
	defer hc.ShutdownListener()

	g := graph.NewCallGraph()
	controller, err := trace.NewController(g,
		trace.WithControllerLogger(o.Logger),
		trace.WithTracerPath(o.tracerPath),
		trace.WithStackFlag(o.stackFlag),
		trace.WithReadyNotifier(hc.NotifyReadiness),
	)
	if err != nil {
		return errors.Wrap(err, "failed to init the trace controller")
	}

	if err := controller.StartTrace(ctx, functions); err != nil {
		return errors.Wrap(err, "failed to start tracing")
	}
	if o.status {
		go o.printStatusBar(ctx, g, controller)
	}

	controller.Wait()
	cancel()

	if o.reportPath != "" {
		if err := o.writeReport(g, controller); err != nil {
			return err
		}
	}

	if err := controller.ThreadError(); err != nil {
		return errors.Wrap(err, "tracing failed")
	}

	return nil
}

// functions returns the tracer probes of the configuration file followed by
// the ones given as arguments.
func (o *Options) functions(args []string) ([]string, error) {
	if o.configPath == "" {
		return args, nil
	}

	setup := trace.NewSetup(
		trace.WithSetupSymPatternInclude(o.symIncludePattern),
		trace.WithSetupSymPatternExclude(o.symExcludePattern),
		trace.WithSetupLogger(o.Logger),
	)
	if err := setup.Init(); err != nil {
		return nil, err
	}
	warning, err := setup.LoadFromFile(o.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load the trace configuration")
	}
	if warning != "" {
		o.Logger.Warn().Msg(warning)
	}

	return append(setup.GenerateArgs(), args...), nil
}

func (o *Options) printStatusBar(ctx context.Context, g *graph.CallGraph, controller *trace.Controller) {
	var last uint64
	output.StatusBar(ctx,
		1*time.Second, // bar refresh interval.
		func() {
			snapshot := g.Snapshot()
			stacks := controller.Stacks()
			rate := stacks - last
			last = stacks
			output.PrintRight(os.Stderr, output.PrettyGraphStatus(
				len(snapshot.Nodes),
				len(snapshot.Edges),
				snapshot.MaxCount,
				rate, // stacks merged over the refresh interval.
				controller.BufferUtilization(),
			))
		},
	)
}

func (o *Options) writeReport(g *graph.CallGraph, controller *trace.Controller) error {
	f, err := os.Create(o.reportPath)
	if err != nil {
		return errors.Wrap(err, "failed to create the report file")
	}
	defer f.Close()

	r := report.NewGraphReport(g.Snapshot(),
		report.WithReportSession(controller.SessionID()),
		report.WithReportStacks(controller.Stacks()),
	)
	if err := r.WriteReport(f); err != nil {
		return errors.Wrap(err, "failed to write the report")
	}
	o.Logger.Info().Str("path", o.reportPath).Int("nodes", len(r.Nodes)).Msg("report written")

	return nil
}

func (o *Options) daemonize(functions []string) error {
	if common.IsDaemonRunning() {
		fmt.Println("Daemon already running")
		return nil
	}

	args := []string{CmdName}
	args = append(args, fmt.Sprintf("--config=%s", o.configPath))
	args = append(args, fmt.Sprintf("--exclude=%s", o.symExcludePattern))
	args = append(args, fmt.Sprintf("--include=%s", o.symIncludePattern))
	args = append(args, fmt.Sprintf("--tracer=%s", o.tracerPath))
	args = append(args, fmt.Sprintf("--stack-flag=%s", o.stackFlag))
	args = append(args, fmt.Sprintf("--socket-path=%s", o.socketPath))
	args = append(args, fmt.Sprintf("--report=%s", o.reportPath))
	args = append(args, fmt.Sprintf("--status=%s", strconv.FormatBool(o.status)))
	args = append(args, fmt.Sprintf("--log-level=%s", o.LogLevel))
	args = append(args, "--")
	args = append(args, functions...)

	cmd := exec.Command(os.Args[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	// Redirect output to log file.
	if settings.LogFile != "" {
		f, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			o.Logger.Error().Err(err).Msg("failed to open log file")
			return err
		}
		defer f.Close()
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		o.Logger.Error().Err(err).Msgf("failed to start %s", settings.CmdName)
		return err
	}

	if err := os.WriteFile(settings.PidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		o.Logger.Error().Err(err).Msg("failed to write PID file")
		return err
	}

	return nil
}
