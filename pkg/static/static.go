// Package static builds a call graph from tracer output captured earlier,
// without running the tracer.
package static

import (
	"io/fs"
	"os"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"

	"github.com/maxgio92/tracegraph/pkg/graph"
	"github.com/maxgio92/tracegraph/pkg/stack"
)

type Loader struct {
	graph *graph.CallGraph

	*LoaderOptions
}

func NewLoader(g *graph.CallGraph, opts ...LoaderOption) *Loader {
	l := &Loader{
		graph:         g,
		LoaderOptions: &LoaderOptions{logger: log.Nop()},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("component", "loader").Logger()

	return l
}

// Load replaces the graph content with the stacks of the tracer output text.
func (l *Loader) Load(text string) {
	l.graph.Clear()

	stacks := stack.SplitStacks(text)
	for _, s := range stacks {
		l.graph.MergeAndInitColors(stack.Parse(s))
	}
	l.logger.Debug().Int("stacks", len(stacks)).Int("max_count", l.graph.MaxCount()).Msg("output loaded")
}

// LoadFile is Load for the content of the file at path. The graph is left
// untouched when the file cannot be read.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return ErrNoPath
	}
	content, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return errors.Wrap(ErrOutputNotFound, path)
		case errors.Is(err, syscall.EISDIR):
			return errors.Wrap(ErrOutputIsDir, path)
		default:
			return errors.Wrapf(err, "failed to read output file %s", path)
		}
	}
	l.Load(string(content))

	return nil
}
