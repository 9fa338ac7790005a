package trace

import (
	"github.com/maxgio92/tracegraph/pkg/cmd/options"
)

type Options struct {
	configPath string

	symExcludePattern string
	symIncludePattern string

	tracerPath string
	stackFlag  string
	socketPath string
	reportPath string

	detach bool
	status bool

	*options.CommonOptions
}

func NewOptions(opts ...options.Option) *Options {
	o := new(Options)
	o.CommonOptions = options.NewCommonOptions(opts...)

	return o
}
