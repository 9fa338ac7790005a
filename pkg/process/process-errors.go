package process

import (
	"github.com/pkg/errors"
)

var (
	ErrAlreadyStarted  = errors.New("tracer process already started")
	ErrTracerPathEmpty = errors.New("tracer path is empty")
)
