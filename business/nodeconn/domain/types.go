// Package domain contains the core domain types for the node connection context.
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Peer is a point-in-time view of one network participant, including the
// block it advertises as its chain head.
type Peer struct {
	ID   string
	Name string
	Head common.Hash
}

// SyncStatus is the node's report of an active synchronization. A nil
// *SyncStatus means the node is not syncing.
type SyncStatus struct {
	StartingBlock uint64
	CurrentBlock  uint64
	HighestBlock  uint64
}

// Remaining returns how many blocks are still missing.
func (s *SyncStatus) Remaining() uint64 {
	if s.HighestBlock <= s.CurrentBlock {
		return 0
	}
	return s.HighestBlock - s.CurrentBlock
}

// SyncOutcome distinguishes "nothing to do" from "a sync ran to
// completion"; a timed-out sync is reported as an error, never as an
// outcome.
type SyncOutcome int

const (
	SyncUnknown SyncOutcome = iota
	SyncNotNeeded
	SyncPerformed
)

// String implements fmt.Stringer.
func (o SyncOutcome) String() string {
	switch o {
	case SyncNotNeeded:
		return "not-needed"
	case SyncPerformed:
		return "performed"
	default:
		return "unknown"
	}
}

// ConnectionState represents the state of the node connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateSyncing      ConnectionState = "syncing"
)

// ClientMode selects the capability surface of the node client at
// construction time.
type ClientMode string

const (
	// ModeReader is the plain read-only client.
	ModeReader ClientMode = "reader"
	// ModeDeployer adds transaction-sending capability for deployments.
	ModeDeployer ClientMode = "deployer"
)

// Header is the loosely-decoded view of a block header the connection
// layer needs; PoA chains carry an oversized extra-data seal that the
// strict codec rejects.
type Header struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Time       uint64
}

// ContractHandle is an immutable reference to a deployed contract
// resolved by name from a registry.
type ContractHandle struct {
	Name    string          `json:"name"`
	Address common.Address  `json:"address"`
	ABI     json.RawMessage `json:"abi,omitempty"`
}

// String implements fmt.Stringer.
func (h ContractHandle) String() string {
	return fmt.Sprintf("%s@%s", h.Name, h.Address.Hex())
}
