package trace

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoFunctionsToTrace is a configuration error: nothing is spawned.
	ErrNoFunctionsToTrace = errors.New("no functions to trace")
	// ErrTracingStopped reports that the tracer died while tracing was enabled.
	ErrTracingStopped = errors.New("tracing stopped unexpectedly")
	ErrAlreadyTracing = errors.New("tracing already in progress")
	ErrGraphNil       = errors.New("call graph is nil")
)
