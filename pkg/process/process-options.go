package process

import (
	log "github.com/rs/zerolog"
)

const (
	DefaultOutputBufferSize = 4096
	maxLineSize             = 1024 * 1024
)

type TraceProcessOptions struct {
	tracerPath       string
	outputBufferSize int

	logger log.Logger
}

type TraceProcessOption func(*TraceProcess)

func WithTracerPath(path string) TraceProcessOption {
	return func(p *TraceProcess) {
		p.tracerPath = path
	}
}

// WithOutputBufferSize bounds the number of output chunks waiting to be
// consumed. When the buffer is full the tracer blocks on its stdout.
func WithOutputBufferSize(size int) TraceProcessOption {
	return func(p *TraceProcess) {
		p.outputBufferSize = size
	}
}

func WithLogger(logger log.Logger) TraceProcessOption {
	return func(p *TraceProcess) {
		p.logger = logger
	}
}
