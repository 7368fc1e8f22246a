package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chainsync/business/nodeconn/app"
	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/httpclient"
	"github.com/fd1az/chainsync/internal/logger"
)

const defaultFetchTimeout = 15 * time.Second

// Provider fetches published registries over HTTP. Publications are a
// JSON array of [name, address, abi] records.
type Provider struct {
	publicationURL string
	client         httpclient.Client
	log            logger.LoggerInterface
}

// NewProvider builds a provider bound to publicationURL. An empty URL
// is allowed; FetchLatestPublished then reports REGISTRY_NOT_CONFIGURED.
func NewProvider(publicationURL string, fetchTimeout time.Duration, log logger.LoggerInterface) (*Provider, error) {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("registry-publication"),
		httpclient.WithRequestTimeout(fetchTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("build registry http client: %w", err)
	}

	return &Provider{
		publicationURL: publicationURL,
		client:         client,
		log:            log,
	}, nil
}

// FetchLatestPublished downloads and parses the latest published
// registry.
func (p *Provider) FetchLatestPublished(ctx context.Context) (app.Registry, error) {
	if p.publicationURL == "" {
		return nil, apperror.New(apperror.CodeRegistryNotConfigured)
	}

	var records []json.RawMessage
	resp, err := p.client.NewRequest().
		SetHeader("Accept", "application/json").
		SetResult(&records).
		Get(ctx, p.publicationURL)
	if err != nil {
		return nil, apperror.New(apperror.CodeRegistryFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext(p.publicationURL))
	}
	if resp.IsError() {
		return nil, apperror.New(apperror.CodeRegistryFetchFailed,
			apperror.WithContext(fmt.Sprintf("%s: status %d", p.publicationURL, resp.StatusCode)))
	}

	handles := make([]domain.ContractHandle, 0, len(records))
	for i, rec := range records {
		handle, err := parseRecord(rec)
		if err != nil {
			return nil, apperror.New(apperror.CodeRegistryMalformed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("record %d", i)))
		}
		handles = append(handles, handle)
	}

	p.log.Info(ctx, "registry publication fetched",
		"url", p.publicationURL, "contracts", len(handles))
	return NewInMemoryFrom(handles), nil
}

// Empty returns a fresh registry with no entries.
func (p *Provider) Empty() app.Registry {
	return NewInMemory()
}

// parseRecord decodes one publication record. Records are positional
// arrays; a fourth leading version element is tolerated.
func parseRecord(raw json.RawMessage) (domain.ContractHandle, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.ContractHandle{}, fmt.Errorf("record is not an array: %w", err)
	}
	if len(fields) != 3 && len(fields) != 4 {
		return domain.ContractHandle{}, fmt.Errorf("expected 3 or 4 fields, got %d", len(fields))
	}

	var handle domain.ContractHandle
	if err := json.Unmarshal(fields[0], &handle.Name); err != nil {
		return domain.ContractHandle{}, fmt.Errorf("contract name: %w", err)
	}

	// [name, version, address, abi] when 4 fields are present.
	addrIdx, abiIdx := 1, 2
	if len(fields) == 4 {
		addrIdx, abiIdx = 2, 3
	}

	var addr string
	if err := json.Unmarshal(fields[addrIdx], &addr); err != nil {
		return domain.ContractHandle{}, fmt.Errorf("contract address: %w", err)
	}
	if !common.IsHexAddress(addr) {
		return domain.ContractHandle{}, fmt.Errorf("invalid address %q", addr)
	}
	handle.Address = common.HexToAddress(addr)
	handle.ABI = fields[abiIdx]

	if handle.Name == "" {
		return domain.ContractHandle{}, fmt.Errorf("empty contract name")
	}
	return handle, nil
}
