package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
)

// Connection is the single shared handle to a node. It is created and
// destroyed only by the ConnectionManager; the registry reference is
// the one piece of mutable state and is guarded here so a later
// Connect call can swap it while readers resolve contracts.
type Connection struct {
	client         NodeClient
	uri            string
	mode           domain.ClientMode
	process        ProcessHandle // nil when the node is externally managed
	receiptTimeout time.Duration

	regMu    sync.RWMutex
	registry Registry
}

// Client returns the node client bound to this connection.
func (c *Connection) Client() NodeClient {
	return c.client
}

// URI returns the node endpoint.
func (c *Connection) URI() string {
	return c.uri
}

// Mode returns the client capability mode.
func (c *Connection) Mode() domain.ClientMode {
	return c.mode
}

// Registry returns the currently bound contract registry.
func (c *Connection) Registry() Registry {
	c.regMu.RLock()
	defer c.regMu.RUnlock()
	return c.registry
}

// setRegistry swaps the registry reference in place.
func (c *Connection) setRegistry(r Registry) {
	c.regMu.Lock()
	c.registry = r
	c.regMu.Unlock()
}

// ReceiptTimeout returns the default timeout for receipt waits.
func (c *Connection) ReceiptTimeout() time.Duration {
	return c.receiptTimeout
}

// OwnsProcess reports whether this connection spawned its node.
func (c *Connection) OwnsProcess() bool {
	return c.process != nil
}

// String implements fmt.Stringer.
func (c *Connection) String() string {
	managed := "external"
	if c.process != nil {
		managed = "child-process"
	}
	return fmt.Sprintf("Connection(uri=%s, mode=%s, node=%s)", c.uri, c.mode, managed)
}
