package load

import (
	"github.com/maxgio92/tracegraph/pkg/cmd/options"
)

const (
	OutputJSON = "json"
	OutputDOT  = "dot"
	OutputText = "text"
)

type Options struct {
	outputFormat string

	*options.CommonOptions
}

func NewOptions(opts ...options.Option) *Options {
	o := new(Options)
	o.CommonOptions = options.NewCommonOptions(opts...)

	return o
}
