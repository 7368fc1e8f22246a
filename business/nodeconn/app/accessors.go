package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/logger"
)

// ContractAccessor resolves contract handles by name through the
// registry bound to a connection.
type ContractAccessor struct {
	log logger.LoggerInterface
}

// NewContractAccessor creates a new ContractAccessor.
func NewContractAccessor(log logger.LoggerInterface) *ContractAccessor {
	return &ContractAccessor{log: log}
}

// GetContract resolves name against the connection's registry. No
// caching happens here; every call may re-resolve.
func (a *ContractAccessor) GetContract(ctx context.Context, conn *Connection, name string) (domain.ContractHandle, error) {
	handle, err := conn.Registry().Resolve(name)
	if err != nil {
		return domain.ContractHandle{}, err
	}
	a.log.Debug(ctx, "contract resolved", "contract", handle.String())
	return handle, nil
}

// ReceiptWaiter blocks until a submitted transaction is confirmed.
type ReceiptWaiter struct {
	log logger.LoggerInterface
}

// NewReceiptWaiter creates a new ReceiptWaiter.
func NewReceiptWaiter(log logger.LoggerInterface) *ReceiptWaiter {
	return &ReceiptWaiter{log: log}
}

// WaitForReceipt blocks until the node reports a receipt for txHash or
// the timeout elapses. timeout <= 0 uses the connection's default.
func (w *ReceiptWaiter) WaitForReceipt(ctx context.Context, conn *Connection, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	if timeout <= 0 {
		timeout = conn.ReceiptTimeout()
	}
	w.log.Debug(ctx, "waiting for transaction receipt", "tx", txHash.Hex(), "timeout", timeout)
	return conn.Client().WaitForReceipt(ctx, txHash, timeout)
}
