package main

import (
	"github.com/maxgio92/tracegraph/pkg/cmd"
)

func main() {
	cmd.Execute()
}
