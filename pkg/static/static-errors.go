package static

import (
	"github.com/pkg/errors"
)

var (
	ErrNoPath         = errors.New("no output file path given")
	ErrOutputNotFound = errors.New("output file not found")
	ErrOutputIsDir    = errors.New("output path is a directory")
)
