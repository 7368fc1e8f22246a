package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func TestInMemoryResolve(t *testing.T) {
	reg := NewInMemory()
	handle := domain.ContractHandle{
		Name:    "StakingEscrow",
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
	}
	reg.Register(handle)

	got, err := reg.Resolve("StakingEscrow")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Address != handle.Address {
		t.Errorf("got address %s, want %s", got.Address, handle.Address)
	}
}

func TestInMemoryResolveUnknown(t *testing.T) {
	reg := NewInMemory()

	_, err := reg.Resolve("Missing")
	if !apperror.IsCode(err, apperror.CodeUnknownContract) {
		t.Fatalf("expected UNKNOWN_CONTRACT, got %v", err)
	}
}

func TestInMemoryRegisterReplaces(t *testing.T) {
	reg := NewInMemory()
	reg.Register(domain.ContractHandle{
		Name:    "Adjudicator",
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
	})
	replacement := common.HexToAddress("0x2222222222222222222222222222222222222222")
	reg.Register(domain.ContractHandle{Name: "Adjudicator", Address: replacement})

	got, err := reg.Resolve("Adjudicator")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Address != replacement {
		t.Errorf("expected replacement address, got %s", got.Address)
	}
	if reg.Len() != 1 {
		t.Errorf("expected one entry, got %d", reg.Len())
	}
}

func TestProviderFetchLatestPublished(t *testing.T) {
	payload := `[
		["StakingEscrow", "0x1111111111111111111111111111111111111111", [{"name": "deposit"}]],
		["PolicyManager", "v1.0.0", "0x2222222222222222222222222222222222222222", []]
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	provider, err := NewProvider(srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	reg, err := provider.FetchLatestPublished(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	escrow, err := reg.Resolve("StakingEscrow")
	if err != nil {
		t.Fatalf("resolve StakingEscrow: %v", err)
	}
	if escrow.Address != common.HexToAddress("0x1111111111111111111111111111111111111111") {
		t.Errorf("unexpected StakingEscrow address %s", escrow.Address)
	}

	// Four-field records carry a version in the second slot.
	policy, err := reg.Resolve("PolicyManager")
	if err != nil {
		t.Fatalf("resolve PolicyManager: %v", err)
	}
	if policy.Address != common.HexToAddress("0x2222222222222222222222222222222222222222") {
		t.Errorf("unexpected PolicyManager address %s", policy.Address)
	}
}

func TestProviderFetchNotConfigured(t *testing.T) {
	provider, err := NewProvider("", time.Second, testLogger())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	_, err = provider.FetchLatestPublished(context.Background())
	if !apperror.IsCode(err, apperror.CodeRegistryNotConfigured) {
		t.Fatalf("expected REGISTRY_NOT_CONFIGURED, got %v", err)
	}
}

func TestProviderFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider, err := NewProvider(srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	_, err = provider.FetchLatestPublished(context.Background())
	if !apperror.IsCode(err, apperror.CodeRegistryFetchFailed) {
		t.Fatalf("expected REGISTRY_FETCH_FAILED, got %v", err)
	}
}

func TestProviderFetchMalformedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[["OnlyAName"]]`)
	}))
	defer srv.Close()

	provider, err := NewProvider(srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	_, err = provider.FetchLatestPublished(context.Background())
	if !apperror.IsCode(err, apperror.CodeRegistryMalformed) {
		t.Fatalf("expected REGISTRY_MALFORMED, got %v", err)
	}
}

func TestProviderFetchInvalidAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[["StakingEscrow", "not-an-address", []]]`)
	}))
	defer srv.Close()

	provider, err := NewProvider(srv.URL, time.Second, testLogger())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	_, err = provider.FetchLatestPublished(context.Background())
	if !apperror.IsCode(err, apperror.CodeRegistryMalformed) {
		t.Fatalf("expected REGISTRY_MALFORMED, got %v", err)
	}
}

func TestProviderEmpty(t *testing.T) {
	provider, err := NewProvider("", time.Second, testLogger())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	reg := provider.Empty()
	if _, err := reg.Resolve("Anything"); !apperror.IsCode(err, apperror.CodeUnknownContract) {
		t.Fatalf("empty registry must resolve nothing, got %v", err)
	}
}
