package common

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/maxgio92/tracegraph/internal/settings"
)

// DaemonPid returns the PID stored in the PID file when that process is
// alive.
func DaemonPid() (int, bool) {
	pidData, err := os.ReadFile(settings.PidFile)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}

	// Check if process exists
	if process.Signal(syscall.Signal(0)) != nil {
		return 0, false
	}

	return pid, true
}

func IsDaemonRunning() bool {
	_, ok := DaemonPid()
	return ok
}
