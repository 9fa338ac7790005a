package stack

import (
	"strings"

	"github.com/elastic/go-freelru"

	"github.com/maxgio92/tracegraph/internal/utils"
)

const frameCacheSize = 8192

type frame struct {
	id     string
	name   string
	source string
}

// frames memoizes parsed frame lines.
var frames = mustFrameCache()

func mustFrameCache() *freelru.SyncedLRU[string, frame] {
	lru, err := freelru.NewSynced[string, frame](frameCacheSize, utils.Hash32)
	if err != nil {
		panic(err)
	}

	return lru
}

func parseFrame(line string) (frame, bool) {
	if f, ok := frames.Get(line); ok {
		return f, true
	}

	m := framePattern.FindStringSubmatch(frameText(line))
	if m == nil {
		return frame{}, false
	}
	f := frame{
		id:     utils.NodeID(m[1], m[2]),
		name:   m[1],
		source: m[2],
	}
	frames.Add(line, f)

	return f, true
}

// frameText trims the indentation of a frame line and unwraps it when the
// tracer printed it as a bytes literal.
func frameText(line string) string {
	text := strings.TrimSpace(line)
	if len(text) >= 3 && strings.HasPrefix(text, "b'") && strings.HasSuffix(text, "'") {
		text = text[2 : len(text)-1]
	}

	return text
}
