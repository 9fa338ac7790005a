package trace

import (
	"time"

	log "github.com/rs/zerolog"
)

const defaultIdleBackoff = 10 * time.Millisecond

type ControllerOptions struct {
	tracerPath  string
	stackFlag   string
	idleBackoff time.Duration

	newProcess ProcessFactory
	onReady    func()

	logger log.Logger
}

type ControllerOption func(*Controller)

func WithControllerLogger(logger log.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithTracerPath sets the tracer executable spawned by the default process
// factory.
func WithTracerPath(path string) ControllerOption {
	return func(c *Controller) {
		c.tracerPath = path
	}
}

// WithStackFlag sets the flag token preceding the traced functions in the
// tracer argv. An empty flag is omitted.
func WithStackFlag(flag string) ControllerOption {
	return func(c *Controller) {
		c.stackFlag = flag
	}
}

func WithProcessFactory(factory ProcessFactory) ControllerOption {
	return func(c *Controller) {
		c.newProcess = factory
	}
}

// WithIdleBackoff sets how long the monitor sleeps when no output is ready.
func WithIdleBackoff(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.idleBackoff = d
	}
}

// WithReadyNotifier registers a callback run once per session, on the first
// output of the tracer, that is once its probes are attached.
func WithReadyNotifier(f func()) ControllerOption {
	return func(c *Controller) {
		c.onReady = f
	}
}
