package funcs

import (
	"github.com/maxgio92/tracegraph/pkg/cmd/options"
)

type Options struct {
	symExcludePattern string
	symIncludePattern string

	*options.CommonOptions
}

func NewOptions(opts ...options.Option) *Options {
	o := new(Options)
	o.CommonOptions = options.NewCommonOptions(opts...)

	return o
}
