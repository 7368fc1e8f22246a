// Package infra contains infrastructure adapters for the node connection context.
package infra

import (
	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/pkg/ui"
)

// TUIReporter implements app.SyncReporter by forwarding observations to
// the Bubble Tea program.
type TUIReporter struct{}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// WaitingForPeers signals the peer-wait phase to the TUI.
func (r *TUIReporter) WaitingForPeers() {
	ui.Send(ui.SyncPhaseMsg{Phase: "waiting-peers"})
}

// WaitingForSyncStart signals the start-wait phase to the TUI.
func (r *TUIReporter) WaitingForSyncStart(peers int) {
	ui.Send(ui.PeerCountMsg{Count: peers})
	ui.Send(ui.SyncPhaseMsg{Phase: "waiting-start"})
}

// Progress forwards one sync-progress observation to the TUI.
func (r *TUIReporter) Progress(current, highest uint64) {
	ui.Send(ui.SyncProgressMsg{Current: current, Highest: highest})
}

// Done forwards the final sync outcome to the TUI.
func (r *TUIReporter) Done(outcome domain.SyncOutcome) {
	ui.Send(ui.SyncDoneMsg{Outcome: outcome.String()})
}
