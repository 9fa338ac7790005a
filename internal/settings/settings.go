package settings

import "fmt"

const (
	CmdName = "tracegraph"

	// DefaultTracer is the bcc trace tool as packaged by most distributions.
	DefaultTracer = "trace-bpfcc"
	// DefaultStackFlag asks the tracer for both user and kernel stacks.
	DefaultStackFlag = "-UK"

	ReportFileName = CmdName + "-report.json"
)

var (
	PidFile      = fmt.Sprintf("/tmp/%s.pid", CmdName)
	LogFile      = fmt.Sprintf("/tmp/%s.log", CmdName)
	HealthSocket = fmt.Sprintf("/tmp/%s.sock", CmdName)
)
