package output

import (
	"context"
	"fmt"
	"time"
)

// StatusBar calls printF every refreshRate until ctx is done.
func StatusBar(ctx context.Context, refreshRate time.Duration, printF func()) {
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printF()
		case <-ctx.Done():
			return
		}
	}
}

// PrettyGraphStatus renders one status line of a live trace.
func PrettyGraphStatus(nodes, edges, maxCount int, stacksPerSec uint64, bufUtil int) string {
	return fmt.Sprintf("%-16s %-16s %-18s %-16s %-28s",
		fmt.Sprintf("Nodes: %d", nodes),
		fmt.Sprintf("Edges: %d", edges),
		fmt.Sprintf("Max calls: %d", maxCount),
		fmt.Sprintf("Stacks/s: %4d", stacksPerSec),
		fmt.Sprintf("Output Buffer: [%s] %3d%%", ProgressBar(bufUtil, 10), bufUtil),
	)
}
