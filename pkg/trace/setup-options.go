package trace

import (
	log "github.com/rs/zerolog"
)

type SetupOptions struct {
	symPatternInclude string
	symPatternExclude string

	logger log.Logger
}

type SetupOption func(*Setup)

// WithSetupSymPatternInclude keeps only the function symbols of a binary
// matching the regex pattern.
func WithSetupSymPatternInclude(pattern string) SetupOption {
	return func(s *Setup) {
		s.symPatternInclude = pattern
	}
}

// WithSetupSymPatternExclude drops the function symbols of a binary matching
// the regex pattern.
func WithSetupSymPatternExclude(pattern string) SetupOption {
	return func(s *Setup) {
		s.symPatternExclude = pattern
	}
}

func WithSetupLogger(logger log.Logger) SetupOption {
	return func(s *Setup) {
		s.logger = logger
	}
}
