package stack

import "strings"

// SplitStacks splits a whole tracer output into stack samples, each one as a
// list of lines. Samples are separated by a blank line.
func SplitStacks(text string) [][]string {
	chunks := strings.Split(text, "\n\n")
	stacks := make([][]string, 0, len(chunks))
	for _, chunk := range chunks {
		stacks = append(stacks, strings.Split(chunk, "\n"))
	}

	return stacks
}
