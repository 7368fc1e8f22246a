package app

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apperror"
)

func TestGetContractResolvesHandle(t *testing.T) {
	handle := domain.ContractHandle{
		Name:    "StakingEscrow",
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
	}
	conn := newTestConnection(newFakeNodeClient("http://localhost:8545"), "http://localhost:8545",
		newFakeRegistry(handle))

	accessor := NewContractAccessor(testLogger())
	got, err := accessor.GetContract(context.Background(), conn, "StakingEscrow")
	if err != nil {
		t.Fatalf("get contract: %v", err)
	}
	if got.Address != handle.Address {
		t.Errorf("got address %s, want %s", got.Address, handle.Address)
	}
}

func TestGetContractUnknownName(t *testing.T) {
	conn := newTestConnection(newFakeNodeClient("http://localhost:8545"), "http://localhost:8545",
		newFakeRegistry())

	accessor := NewContractAccessor(testLogger())
	_, err := accessor.GetContract(context.Background(), conn, "Missing")
	if !apperror.IsCode(err, apperror.CodeUnknownContract) {
		t.Fatalf("expected UNKNOWN_CONTRACT, got %v", err)
	}
}

func TestGetContractSeesSwappedRegistry(t *testing.T) {
	conn := newTestConnection(newFakeNodeClient("http://localhost:8545"), "http://localhost:8545",
		newFakeRegistry())
	accessor := NewContractAccessor(testLogger())

	if _, err := accessor.GetContract(context.Background(), conn, "Adjudicator"); err == nil {
		t.Fatal("expected resolution failure before the swap")
	}

	conn.setRegistry(newFakeRegistry(domain.ContractHandle{
		Name:    "Adjudicator",
		Address: common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}))

	if _, err := accessor.GetContract(context.Background(), conn, "Adjudicator"); err != nil {
		t.Fatalf("expected resolution after the swap, got %v", err)
	}
}

func TestWaitForReceiptUsesConnectionDefaultTimeout(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	client.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	conn := newTestConnection(client, client.uri, newFakeRegistry())

	waiter := NewReceiptWaiter(testLogger())
	receipt, err := waiter.WaitForReceipt(context.Background(), conn, common.HexToHash("0xbeef"), 0)
	if err != nil {
		t.Fatalf("wait for receipt: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Errorf("unexpected receipt status %d", receipt.Status)
	}
	if client.lastReceiptTimeout != DefaultReceiptTimeout {
		t.Errorf("zero timeout must fall back to the connection default, got %s", client.lastReceiptTimeout)
	}
}

func TestWaitForReceiptExplicitTimeout(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	client.receipt = &types.Receipt{}
	conn := newTestConnection(client, client.uri, newFakeRegistry())

	waiter := NewReceiptWaiter(testLogger())
	if _, err := waiter.WaitForReceipt(context.Background(), conn, common.HexToHash("0xbeef"), 5*time.Second); err != nil {
		t.Fatalf("wait for receipt: %v", err)
	}
	if client.lastReceiptTimeout != 5*time.Second {
		t.Errorf("explicit timeout must pass through, got %s", client.lastReceiptTimeout)
	}
}

func TestWaitForReceiptTimeoutPropagates(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	client.receiptErr = apperror.New(apperror.CodeReceiptTimeout)
	conn := newTestConnection(client, client.uri, newFakeRegistry())

	waiter := NewReceiptWaiter(testLogger())
	_, err := waiter.WaitForReceipt(context.Background(), conn, common.HexToHash("0xbeef"), time.Second)
	if !apperror.IsCode(err, apperror.CodeReceiptTimeout) {
		t.Fatalf("expected RECEIPT_TIMEOUT, got %v", err)
	}
}
