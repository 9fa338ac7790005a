package trace

import (
	"github.com/pkg/errors"
)

var (
	ErrBinaryAlreadyAdded = errors.New("binary already added")
	ErrBinaryNotFound     = errors.New("binary not found")
	ErrNoFunctionSymbols  = errors.New("no functions found")
	ErrAppNotFound        = errors.New("application not set up")
	ErrFunctionNotFound   = errors.New("function not found")
	ErrParameterIndex     = errors.New("parameter index must be positive")

	ErrConfigPathEmpty = errors.New("no configuration file path given")
	ErrConfigNotFound  = errors.New("configuration file not found")
	ErrConfigIsDir     = errors.New("configuration path is a directory")
	ErrConfigFormat    = errors.New("configuration file format is incorrect")
)
