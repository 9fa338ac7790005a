package static

import (
	log "github.com/rs/zerolog"
)

type LoaderOptions struct {
	logger log.Logger
}

type LoaderOption func(*Loader)

func WithLogger(logger log.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}
