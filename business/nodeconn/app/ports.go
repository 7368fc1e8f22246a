// Package app contains application services and port definitions for the node connection context.
package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
)

// NodeClient is the established transport to a node. Implementations
// return coded errors: HeaderByHash yields BLOCK_NOT_FOUND for blocks
// the node does not know, WaitForReceipt yields RECEIPT_TIMEOUT.
type NodeClient interface {
	// Peers returns the node's current peer snapshot.
	Peers(ctx context.Context) ([]domain.Peer, error)

	// SyncProgress returns the active sync status, or nil when the node
	// is not syncing.
	SyncProgress(ctx context.Context) (*domain.SyncStatus, error)

	// HeaderByHash looks up a block header the node knows about.
	HeaderByHash(ctx context.Context, hash common.Hash) (*domain.Header, error)

	// WaitForReceipt blocks until the transaction is mined or timeout elapses.
	WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)

	// URI returns the endpoint this client is bound to.
	URI() string

	// Close releases the underlying transport.
	Close()
}

// DialFunc constructs a NodeClient bound to uri. mode selects the
// reader or deployer capability surface; poaMode enables lenient
// header decoding for proof-of-authority chains.
type DialFunc func(ctx context.Context, uri string, mode domain.ClientMode, poaMode bool) (NodeClient, error)

// ProcessHandle controls an optional child node process owned by the
// connection.
type ProcessHandle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Registry resolves contract names to deployed handles.
type Registry interface {
	// Resolve returns the handle for name, or UNKNOWN_CONTRACT.
	Resolve(name string) (domain.ContractHandle, error)
}

// RegistryProvider sources registries.
type RegistryProvider interface {
	// FetchLatestPublished fetches the most recently published registry.
	// Returns REGISTRY_NOT_CONFIGURED when no publication source is set.
	FetchLatestPublished(ctx context.Context) (Registry, error)

	// Empty returns a fresh registry with no entries.
	Empty() Registry
}

// SyncReporter receives sync lifecycle notifications for display.
type SyncReporter interface {
	// WaitingForPeers signals the peer-wait phase has begun.
	WaitingForPeers()

	// WaitingForSyncStart signals sync is needed and the node has not
	// begun syncing yet; peers is the current peer count.
	WaitingForSyncStart(peers int)

	// Progress reports one sync-progress observation.
	Progress(current, highest uint64)

	// Done signals the sync attempt finished with the given outcome.
	Done(outcome domain.SyncOutcome)
}
