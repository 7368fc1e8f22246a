// Package infra contains infrastructure adapters for the node connection context.
package infra

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
)

// ConsoleReporter implements app.SyncReporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a ConsoleReporter writing to out.
func NewConsoleReporterTo(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// WaitingForPeers announces the peer-wait phase.
func (r *ConsoleReporter) WaitingForPeers() {
	fmt.Fprintf(r.out, "[%s] Waiting for peers...\n", time.Now().Format("15:04:05"))
}

// WaitingForSyncStart announces that sync is needed and has not begun.
func (r *ConsoleReporter) WaitingForSyncStart(peers int) {
	fmt.Fprintf(r.out, "[%s] Waiting for sync to begin (%d peers)\n",
		time.Now().Format("15:04:05"), peers)
}

// Progress prints one sync-progress observation.
func (r *ConsoleReporter) Progress(current, highest uint64) {
	remaining := uint64(0)
	if highest > current {
		remaining = highest - current
	}
	fmt.Fprintf(r.out, "[%s] Syncing: block %d / %d (%d remaining)\n",
		time.Now().Format("15:04:05"), current, highest, remaining)
}

// Done prints the final sync outcome.
func (r *ConsoleReporter) Done(outcome domain.SyncOutcome) {
	fmt.Fprintf(r.out, "[%s] Sync finished: %s\n",
		time.Now().Format("15:04:05"), outcome)
}
