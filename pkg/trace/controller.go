package trace

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/tracegraph/internal/settings"
	"github.com/maxgio92/tracegraph/pkg/graph"
	"github.com/maxgio92/tracegraph/pkg/process"
	"github.com/maxgio92/tracegraph/pkg/stack"
)

// stackEnd is the output chunk of a line terminator. Two of them in a row
// close a stack sample.
const stackEnd = "\n"

// Process is the tracer child process as seen by the Controller.
type Process interface {
	Start(args []string) error
	GetOutput() (string, bool)
	IsAlive() bool
	Terminate() error
	Join()
}

type ProcessFactory func() Process

type State int32

const (
	StateIdle State = iota
	StateTracing
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracing:
		return "tracing"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Controller runs tracing sessions: it spawns the tracer, demultiplexes its
// output into stack samples and merges them into the call graph. Failures
// after a session started are only reported through ThreadError.
type Controller struct {
	graph *graph.CallGraph

	enabled atomic.Bool
	stacks  atomic.Uint64

	mu      sync.Mutex
	state   State
	err     error
	session string
	proc    Process
	done    chan struct{}

	*ControllerOptions
}

func NewController(g *graph.CallGraph, opts ...ControllerOption) (*Controller, error) {
	if g == nil {
		return nil, ErrGraphNil
	}
	c := &Controller{
		graph: g,
		ControllerOptions: &ControllerOptions{
			tracerPath:  settings.DefaultTracer,
			stackFlag:   settings.DefaultStackFlag,
			idleBackoff: defaultIdleBackoff,
			logger:      log.Nop(),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "controller").Logger()
	if c.newProcess == nil {
		c.newProcess = func() Process {
			return process.New(
				process.WithTracerPath(c.tracerPath),
				process.WithLogger(c.logger),
			)
		}
	}

	return c, nil
}

// Args builds the tracer argv for functions, each already in the tracer
// probe syntax.
func (c *Controller) Args(functions []string) []string {
	args := make([]string, 0, len(functions)+1)
	if c.stackFlag != "" {
		args = append(args, c.stackFlag)
	}

	return append(args, functions...)
}

// StartTrace starts a tracing session of functions and returns without
// waiting for it. The call graph is cleared first. With no functions it
// records and returns ErrNoFunctionsToTrace and stays idle.
func (c *Controller) StartTrace(ctx context.Context, functions []string) error {
	c.mu.Lock()
	if len(functions) == 0 {
		c.err = ErrNoFunctionsToTrace
		c.mu.Unlock()
		return ErrNoFunctionsToTrace
	}
	if c.state == StateTracing {
		c.mu.Unlock()
		return ErrAlreadyTracing
	}
	c.err = nil
	c.state = StateTracing
	c.session = uuid.NewString()
	c.stacks.Store(0)
	c.enabled.Store(true)
	done := make(chan struct{})
	c.done = done
	proc := c.newProcess()
	c.proc = proc
	logger := c.logger.With().Str("session", c.session).Logger()
	c.mu.Unlock()

	c.graph.Clear()

	args := c.Args(functions)
	logger.Info().Strs("functions", functions).Msg("starting trace")
	if err := proc.Start(args); err != nil {
		logger.Error().Err(err).Msg("failed to spawn the tracer")
		c.finish(errors.Wrap(ErrTracingStopped, err.Error()))
		close(done)
		return nil
	}

	go c.monitor(ctx, proc, done, logger)

	return nil
}

// monitor consumes the tracer output until tracing is disabled, ctx is done
// or the tracer dies. Output the tracer left behind when it exited is still
// merged; a stack that was never terminated is dropped.
func (c *Controller) monitor(ctx context.Context, proc Process, done chan struct{}, logger log.Logger) {
	defer close(done)

	var (
		sb    stackBuffer
		ready bool
		err   error
	)
	handle := func(output string) {
		if !ready {
			ready = true
			logger.Debug().Msg("tracer attached")
			if c.onReady != nil {
				c.onReady()
			}
		}
		if calls, complete := sb.push(output); complete {
			c.graph.MergeAndInitColors(stack.Parse(calls))
			c.stacks.Add(1)
			logger.Trace().Strs("stack", calls).Msg("merged stack")
		}
	}

	for c.enabled.Load() {
		if ctx.Err() != nil {
			logger.Debug().Msg("context done, stopping trace")
			break
		}
		if !proc.IsAlive() {
			for output, ok := proc.GetOutput(); ok; output, ok = proc.GetOutput() {
				handle(output)
			}
			err = ErrTracingStopped
			logger.Error().Err(err).Msg("tracer is not running")
			break
		}

		output, ok := proc.GetOutput()
		if !ok {
			time.Sleep(c.idleBackoff)
			continue
		}
		handle(output)
	}

	if proc.IsAlive() {
		if err := proc.Terminate(); err != nil {
			logger.Warn().Err(err).Msg("failed to terminate the tracer")
		}
		proc.Join()
	}
	if len(sb.calls) > 0 {
		logger.Debug().Int("lines", len(sb.calls)).Msg("discarding incomplete stack")
	}
	logger.Info().Uint64("stacks", c.stacks.Load()).Msg("trace stopped")

	c.finish(err)
}

// stackBuffer accumulates output lines until two consecutive empty lines
// close a stack.
type stackBuffer struct {
	calls            []string
	lastLineWasEmpty bool
}

// push feeds one output chunk. It returns the buffered stack and true when
// the chunk terminates it; the returned slice is only valid until the next
// push.
func (b *stackBuffer) push(output string) ([]string, bool) {
	switch {
	case output == stackEnd && b.lastLineWasEmpty:
		calls := b.calls
		b.calls = b.calls[:0]
		return calls, true
	case output == stackEnd:
		b.lastLineWasEmpty = true
	case output != "":
		b.lastLineWasEmpty = false
		b.calls = append(b.calls, output)
	}

	return nil, false
}

func (c *Controller) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled.Store(false)
	if err != nil {
		c.err = err
		c.state = StateErrored
		return
	}
	c.state = StateIdle
}

// StopTrace asks the monitor to stop the tracer. It does not wait, see Wait.
// Calling it while idle is a no-op.
func (c *Controller) StopTrace() {
	c.enabled.Store(false)
}

// Wait blocks until the current session, if any, has fully stopped.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// ThreadError returns the last error recorded by StartTrace or by the monitor.
func (c *Controller) ThreadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Active reports whether tracing is enabled.
func (c *Controller) Active() bool {
	return c.enabled.Load()
}

// Stacks returns the number of stack samples merged in the current session.
func (c *Controller) Stacks() uint64 {
	return c.stacks.Load()
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

// BufferUtilization returns how full, in percent, the output buffer of the
// current tracer is, when the process exposes it.
func (c *Controller) BufferUtilization() int {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	b, ok := proc.(interface{ Buffered() (int, int) })
	if !ok {
		return 0
	}
	n, capacity := b.Buffered()
	if capacity == 0 {
		return 0
	}

	return n * 100 / capacity
}
