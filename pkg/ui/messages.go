// Package ui provides the Bubble Tea TUI for the chain sync monitor.
package ui

// Message types for TUI updates

// ConnectionStatusMsg is sent when the node connection state changes.
type ConnectionStatusMsg struct {
	URI       string
	Connected bool
	Deployer  bool
}

// PeerCountMsg is sent with the latest peer snapshot size.
type PeerCountMsg struct {
	Count int
}

// SyncPhaseMsg is sent when the sync coordinator moves between phases.
type SyncPhaseMsg struct {
	Phase string // "waiting-peers", "waiting-start", "syncing", "done"
}

// SyncProgressMsg is sent with one sync-progress observation.
type SyncProgressMsg struct {
	Current uint64
	Highest uint64
}

// SyncDoneMsg is sent when the sync attempt finishes.
type SyncDoneMsg struct {
	Outcome string
}

// RegistryMsg is sent when a contract registry is installed.
type RegistryMsg struct {
	Contracts int
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}
