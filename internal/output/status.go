package output

import (
	"context"
	"fmt"
	"time"
)

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

func PrettyLoadStatus(loaded float64, rate uint64) string {
	return fmt.Sprintf("%-60s %-20s",
		fmt.Sprintf("Functions emitted: [%s] %6.2f%%", ProgressBar(int(loaded), 40), loaded),
		fmt.Sprintf("Functions/s: %4d", rate),
	)
}
