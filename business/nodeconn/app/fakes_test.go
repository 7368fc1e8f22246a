package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

// fakeNodeClient is a scripted NodeClient. Peer snapshots and sync
// statuses are consumed from queues; the last peer snapshot repeats
// once the queue is drained, while a drained sync queue reports nil.
type fakeNodeClient struct {
	mu sync.Mutex

	uri string

	peerQueue [][]domain.Peer
	peersErr  error
	peerCalls int

	knownHeaders map[common.Hash]*domain.Header
	headerErr    error
	headerCalls  int

	syncQueue []*domain.SyncStatus
	syncErr   error
	syncCalls int

	receipt            *types.Receipt
	receiptErr         error
	lastReceiptTimeout time.Duration

	closed bool
}

func newFakeNodeClient(uri string) *fakeNodeClient {
	return &fakeNodeClient{
		uri:          uri,
		knownHeaders: make(map[common.Hash]*domain.Header),
	}
}

func (f *fakeNodeClient) Peers(ctx context.Context) ([]domain.Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.peerCalls++
	if f.peersErr != nil {
		return nil, f.peersErr
	}
	if len(f.peerQueue) == 0 {
		return nil, nil
	}
	peers := f.peerQueue[0]
	if len(f.peerQueue) > 1 {
		f.peerQueue = f.peerQueue[1:]
	}
	return peers, nil
}

func (f *fakeNodeClient) SyncProgress(ctx context.Context) (*domain.SyncStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.syncCalls++
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	if len(f.syncQueue) == 0 {
		return nil, nil
	}
	status := f.syncQueue[0]
	f.syncQueue = f.syncQueue[1:]
	return status, nil
}

func (f *fakeNodeClient) HeaderByHash(ctx context.Context, hash common.Hash) (*domain.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.headerCalls++
	if f.headerErr != nil {
		return nil, f.headerErr
	}
	header, ok := f.knownHeaders[hash]
	if !ok {
		return nil, apperror.New(apperror.CodeBlockNotFound, apperror.WithContext(hash.Hex()))
	}
	return header, nil
}

func (f *fakeNodeClient) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastReceiptTimeout = timeout
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipt, nil
}

func (f *fakeNodeClient) URI() string { return f.uri }

func (f *fakeNodeClient) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// fakeDialer hands out a preset client and counts dials.
type fakeDialer struct {
	mu      sync.Mutex
	client  NodeClient
	err     error
	calls   int
	lastURI string
}

func (d *fakeDialer) dial(ctx context.Context, uri string, mode domain.ClientMode, poaMode bool) (NodeClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.lastURI = uri
	if d.err != nil {
		return nil, d.err
	}
	if d.client != nil {
		return d.client, nil
	}
	return newFakeNodeClient(uri), nil
}

// fakeRegistry resolves from a fixed map.
type fakeRegistry struct {
	entries map[string]domain.ContractHandle
}

func newFakeRegistry(handles ...domain.ContractHandle) *fakeRegistry {
	r := &fakeRegistry{entries: make(map[string]domain.ContractHandle)}
	for _, h := range handles {
		r.entries[h.Name] = h
	}
	return r
}

func (r *fakeRegistry) Resolve(name string) (domain.ContractHandle, error) {
	handle, ok := r.entries[name]
	if !ok {
		return domain.ContractHandle{}, apperror.New(apperror.CodeUnknownContract,
			apperror.WithContext(name))
	}
	return handle, nil
}

// fakeRegistryProvider scripts the publication fetch.
type fakeRegistryProvider struct {
	published Registry
	fetchErr  error
	fetches   int
}

func (p *fakeRegistryProvider) FetchLatestPublished(ctx context.Context) (Registry, error) {
	p.fetches++
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	if p.published != nil {
		return p.published, nil
	}
	return newFakeRegistry(), nil
}

func (p *fakeRegistryProvider) Empty() Registry {
	return newFakeRegistry()
}

// fakeProcess records lifecycle calls.
type fakeProcess struct {
	startErr error
	stopErr  error
	starts   int
	stops    int
}

func (p *fakeProcess) Start(ctx context.Context) error {
	p.starts++
	return p.startErr
}

func (p *fakeProcess) Stop(ctx context.Context) error {
	p.stops++
	return p.stopErr
}

// recordingReporter captures the notification sequence.
type recordingReporter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingReporter) WaitingForPeers() {
	r.record("waiting-peers")
}

func (r *recordingReporter) WaitingForSyncStart(peers int) {
	r.record("waiting-start")
}

func (r *recordingReporter) Progress(current, highest uint64) {
	r.record("progress")
}

func (r *recordingReporter) Done(outcome domain.SyncOutcome) {
	r.record("done:" + outcome.String())
}

func (r *recordingReporter) record(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingReporter) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// fastSyncConfig keeps test sync loops in the millisecond range.
func fastSyncConfig() SyncCoordinatorConfig {
	return SyncCoordinatorConfig{
		PeerWaitBudget:       50 * time.Millisecond,
		PeerPollsPerSecond:   1000,
		ProgressPollInterval: time.Millisecond,
	}
}

func newTestConnection(client NodeClient, uri string, reg Registry) *Connection {
	return &Connection{
		client:         client,
		uri:            uri,
		mode:           domain.ModeReader,
		registry:       reg,
		receiptTimeout: DefaultReceiptTimeout,
	}
}
