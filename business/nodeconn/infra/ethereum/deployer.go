package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainsync/internal/apperror"
)

// DeployerClient extends Client with the transaction-sending surface
// needed to publish contracts and drive state changes. It is returned
// by New when the configured mode is ModeDeployer.
type DeployerClient struct {
	*Client
}

// SendTransaction submits a signed transaction to the node.
func (d *DeployerClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RPCTimeout)
	defer cancel()

	if err := d.eth.SendTransaction(ctx, tx); err != nil {
		return apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_sendRawTransaction"))
	}
	return nil
}

// PendingNonceAt returns the next nonce for account, including pending
// transactions.
func (d *DeployerClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RPCTimeout)
	defer cancel()

	nonce, err := d.eth.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_getTransactionCount"))
	}
	return nonce, nil
}

// SuggestGasPrice returns the node's gas price suggestion.
func (d *DeployerClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RPCTimeout)
	defer cancel()

	price, err := d.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_gasPrice"))
	}
	return price, nil
}

// ChainID returns the chain identifier of the connected network.
func (d *DeployerClient) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.RPCTimeout)
	defer cancel()

	id, err := d.eth.ChainID(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_chainId"))
	}
	return id, nil
}
