package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/logger"
)

func newTestManager(dialer *fakeDialer, provider RegistryProvider) *ConnectionManager {
	if provider == nil {
		provider = &fakeRegistryProvider{}
	}
	syncer := NewSyncCoordinator(fastSyncConfig(), testLogger(), nil)
	return NewConnectionManager(dialer.dial, provider, syncer, testLogger(), 0)
}

func noSyncOptions(uri string) ConnectOptions {
	opts := NewConnectOptions(uri)
	opts.FullSync = false
	return opts
}

func TestConnectReturnsSingleton(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, nil)
	ctx := context.Background()

	first, err := manager.Connect(ctx, noSyncOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("first connect: %v", err)
	}
	second, err := manager.Connect(ctx, noSyncOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("second connect: %v", err)
	}

	if first != second {
		t.Error("expected both connects to return the same connection instance")
	}
	if dialer.calls != 1 {
		t.Errorf("expected exactly one dial, got %d", dialer.calls)
	}
}

func TestConnectConflictingURIWithoutForce(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, nil)
	ctx := context.Background()

	existing, err := manager.Connect(ctx, noSyncOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	opts := noSyncOptions("http://other:8545")
	opts.Force = false
	_, err = manager.Connect(ctx, opts)
	if !apperror.IsCode(err, apperror.CodeConflictingConnection) {
		t.Fatalf("expected CONFLICTING_CONNECTION, got %v", err)
	}

	// The existing connection must be untouched.
	current, err := manager.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != existing {
		t.Error("existing connection was replaced after a conflicting connect")
	}
	if dialer.calls != 1 {
		t.Errorf("conflicting connect must not dial, got %d dials", dialer.calls)
	}
}

func TestConnectConflictingURIWithForce(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, nil)
	ctx := context.Background()

	existing, err := manager.Connect(ctx, noSyncOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	conn, err := manager.Connect(ctx, noSyncOptions("http://other:8545"))
	if err != nil {
		t.Fatalf("forced connect: %v", err)
	}
	if conn != existing {
		t.Error("forced connect must return the existing connection")
	}
	if conn.URI() != "http://localhost:8545" {
		t.Errorf("connection URI changed to %s", conn.URI())
	}
	if dialer.calls != 1 {
		t.Errorf("forced connect must not redial, got %d dials", dialer.calls)
	}
}

func TestConnectSwapsRegistryOnExistingConnection(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, nil)
	ctx := context.Background()

	conn, err := manager.Connect(ctx, noSyncOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	original := conn.Registry()

	replacement := newFakeRegistry()
	opts := noSyncOptions("http://localhost:8545")
	opts.Registry = replacement

	again, err := manager.Connect(ctx, opts)
	if err != nil {
		t.Fatalf("reconnect with registry: %v", err)
	}
	if again != conn {
		t.Error("reconnect with registry must return the existing connection")
	}
	if conn.Registry() == original {
		t.Error("registry was not swapped")
	}
	if conn.Registry() != Registry(replacement) {
		t.Error("registry is not the supplied one")
	}
}

func TestConnectSuppliedRegistrySkipsFetch(t *testing.T) {
	dialer := &fakeDialer{}
	provider := &fakeRegistryProvider{}
	manager := newTestManager(dialer, provider)

	opts := noSyncOptions("http://localhost:8545")
	opts.Registry = newFakeRegistry()

	if _, err := manager.Connect(context.Background(), opts); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if provider.fetches != 0 {
		t.Errorf("supplied registry must skip publication fetch, got %d fetches", provider.fetches)
	}
}

func TestConnectFallsBackToEmptyRegistry(t *testing.T) {
	dialer := &fakeDialer{}
	provider := &fakeRegistryProvider{
		fetchErr: apperror.New(apperror.CodeRegistryNotConfigured),
	}
	manager := newTestManager(dialer, provider)

	conn, err := manager.Connect(context.Background(), noSyncOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if conn.Registry() == nil {
		t.Error("expected an empty registry, got nil")
	}
}

func TestConnectRegistryFetchFailure(t *testing.T) {
	dialer := &fakeDialer{}
	provider := &fakeRegistryProvider{
		fetchErr: apperror.New(apperror.CodeRegistryFetchFailed),
	}
	manager := newTestManager(dialer, provider)

	_, err := manager.Connect(context.Background(), noSyncOptions("http://localhost:8545"))
	if !apperror.IsCode(err, apperror.CodeRegistryFetchFailed) {
		t.Fatalf("expected REGISTRY_FETCH_FAILED, got %v", err)
	}
	if dialer.calls != 0 {
		t.Errorf("failed registry fetch must not dial, got %d dials", dialer.calls)
	}
}

func TestConnectStartsOwnedProcess(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, nil)
	proc := &fakeProcess{}

	opts := noSyncOptions("http://localhost:8545")
	opts.Process = proc

	conn, err := manager.Connect(context.Background(), opts)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if proc.starts != 1 {
		t.Errorf("expected one process start, got %d", proc.starts)
	}
	if !conn.OwnsProcess() {
		t.Error("connection should report an owned process")
	}
}

func TestConnectProcessStartFailure(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, nil)
	proc := &fakeProcess{startErr: apperror.New(apperror.CodeProcessStartFailed)}

	opts := noSyncOptions("http://localhost:8545")
	opts.Process = proc

	_, err := manager.Connect(context.Background(), opts)
	if !apperror.IsCode(err, apperror.CodeProcessStartFailed) {
		t.Fatalf("expected PROCESS_START_FAILED, got %v", err)
	}
	if dialer.calls != 0 {
		t.Errorf("failed process start must not dial, got %d dials", dialer.calls)
	}
	if _, err := manager.Current(); !apperror.IsCode(err, apperror.CodeNotConnected) {
		t.Errorf("manager must stay disconnected, got %v", err)
	}
}

func TestConnectDialFailureStopsOwnedProcess(t *testing.T) {
	dialer := &fakeDialer{err: apperror.New(apperror.CodeNodeConnectionFailed)}
	manager := newTestManager(dialer, nil)
	proc := &fakeProcess{}

	opts := noSyncOptions("http://localhost:8545")
	opts.Process = proc

	_, err := manager.Connect(context.Background(), opts)
	if !apperror.IsCode(err, apperror.CodeNodeConnectionFailed) {
		t.Fatalf("expected NODE_CONNECTION_FAILED, got %v", err)
	}
	if proc.stops != 1 {
		t.Errorf("owned process must be stopped after dial failure, got %d stops", proc.stops)
	}
	if _, err := manager.Current(); !apperror.IsCode(err, apperror.CodeNotConnected) {
		t.Errorf("manager must stay disconnected, got %v", err)
	}
}

func TestConnectSyncFailureTearsDown(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	client.peersErr = apperror.New(apperror.CodeNodeRPCError)
	dialer := &fakeDialer{client: client}
	manager := newTestManager(dialer, nil)

	opts := NewConnectOptions("http://localhost:8545")
	_, err := manager.Connect(context.Background(), opts)
	if !apperror.IsCode(err, apperror.CodeNodeRPCError) {
		t.Fatalf("expected NODE_RPC_ERROR from sync, got %v", err)
	}
	if !client.closed {
		t.Error("client must be closed after a failed sync")
	}
	if _, err := manager.Current(); !apperror.IsCode(err, apperror.CodeNotConnected) {
		t.Errorf("manager must be disconnected after a failed sync, got %v", err)
	}
}

func TestConnectWithFullSyncAlreadyInSync(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	head := common.HexToHash("0xaa")
	client.peerQueue = [][]domain.Peer{{{ID: "p1", Name: "geth/p1", Head: head}}}
	client.knownHeaders[head] = &domain.Header{Number: 100, Hash: head}
	dialer := &fakeDialer{client: client}
	manager := newTestManager(dialer, nil)

	conn, err := manager.Connect(context.Background(), NewConnectOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("connect with full sync: %v", err)
	}
	if conn == nil {
		t.Fatal("expected a connection")
	}
	if client.syncCalls != 0 {
		t.Errorf("in-sync node must never be asked for sync progress, got %d calls", client.syncCalls)
	}
}

func TestDisconnectIsNoopWhenNotConnected(t *testing.T) {
	manager := newTestManager(&fakeDialer{}, nil)

	if err := manager.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect on idle manager: %v", err)
	}
}

func TestDisconnectStopsProcessAndClears(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	dialer := &fakeDialer{client: client}
	manager := newTestManager(dialer, nil)
	proc := &fakeProcess{}

	opts := noSyncOptions("http://localhost:8545")
	opts.Process = proc

	first, err := manager.Connect(context.Background(), opts)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := manager.Disconnect(context.Background()); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if proc.stops != 1 {
		t.Errorf("expected one process stop, got %d", proc.stops)
	}
	if !client.closed {
		t.Error("client must be closed on disconnect")
	}
	if _, err := manager.Current(); !apperror.IsCode(err, apperror.CodeNotConnected) {
		t.Errorf("expected NOT_CONNECTED after disconnect, got %v", err)
	}

	// A later connect creates a fresh instance.
	second, err := manager.Connect(context.Background(), noSyncOptions("http://localhost:8545"))
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if second == first {
		t.Error("reconnect after disconnect must create a new connection")
	}
	if dialer.calls != 2 {
		t.Errorf("expected two dials across the reconnect, got %d", dialer.calls)
	}
}

func TestDisconnectProcessStopFailure(t *testing.T) {
	dialer := &fakeDialer{}
	manager := newTestManager(dialer, nil)
	proc := &fakeProcess{stopErr: apperror.New(apperror.CodeProcessStopFailed)}

	opts := noSyncOptions("http://localhost:8545")
	opts.Process = proc

	if _, err := manager.Connect(context.Background(), opts); err != nil {
		t.Fatalf("connect: %v", err)
	}

	err := manager.Disconnect(context.Background())
	if !apperror.IsCode(err, apperror.CodeProcessStopFailed) {
		t.Fatalf("expected PROCESS_STOP_FAILED, got %v", err)
	}
	// The connection is cleared even when the stop failed.
	if _, err := manager.Current(); !apperror.IsCode(err, apperror.CodeNotConnected) {
		t.Errorf("expected NOT_CONNECTED after failed stop, got %v", err)
	}
}

func TestCurrentWithoutConnection(t *testing.T) {
	manager := newTestManager(&fakeDialer{}, nil)

	_, err := manager.Current()
	if !apperror.IsCode(err, apperror.CodeNotConnected) {
		t.Fatalf("expected NOT_CONNECTED, got %v", err)
	}
}

func TestConnectSyncFailureLogsProcessStopFailure(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	dialer := &fakeDialer{client: client}
	process := &fakeProcess{stopErr: errors.New("still running")}

	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelDebug, "test", nil)
	syncer := NewSyncCoordinator(fastSyncConfig(), log, nil)
	manager := NewConnectionManager(dialer.dial, &fakeRegistryProvider{}, syncer, log, 0)

	// The peerless client makes the full sync time out after the
	// connection was established and the process started.
	opts := NewConnectOptions(client.uri)
	opts.Process = process

	_, err := manager.Connect(context.Background(), opts)
	if !apperror.IsCode(err, apperror.CodeSyncTimeout) {
		t.Fatalf("expected SYNC_TIMEOUT, got %v", err)
	}
	if process.stops != 1 {
		t.Errorf("expected the owned process to be stopped once, got %d", process.stops)
	}
	if !strings.Contains(buf.String(), "failed to stop node process after sync failure") {
		t.Error("expected the process stop failure to be logged")
	}
	if _, err := manager.Current(); !apperror.IsCode(err, apperror.CodeNotConnected) {
		t.Errorf("expected NOT_CONNECTED after teardown, got %v", err)
	}
}

func TestStatusReportsActiveConnection(t *testing.T) {
	manager := newTestManager(&fakeDialer{}, nil)

	if st := manager.Status(); st.Connected || st.Transitioning {
		t.Fatalf("expected idle status before connect, got %+v", st)
	}

	if _, err := manager.Connect(context.Background(), noSyncOptions("http://localhost:8545")); err != nil {
		t.Fatalf("connect: %v", err)
	}

	st := manager.Status()
	if !st.Connected || st.Transitioning {
		t.Fatalf("expected connected status, got %+v", st)
	}
	if st.URI != "http://localhost:8545" {
		t.Errorf("expected the connection URI in the status, got %q", st.URI)
	}
}

func TestStatusDoesNotBlockDuringConnect(t *testing.T) {
	client := newFakeNodeClient("http://localhost:8545")
	// No peers ever arrive, so the full sync holds the manager lock
	// for the whole peer-wait budget.
	dialer := &fakeDialer{client: client}

	cfg := fastSyncConfig()
	cfg.PeerWaitBudget = 500 * time.Millisecond
	syncer := NewSyncCoordinator(cfg, testLogger(), nil)
	manager := NewConnectionManager(dialer.dial, &fakeRegistryProvider{}, syncer, testLogger(), 0)

	done := make(chan error, 1)
	go func() {
		_, err := manager.Connect(context.Background(), NewConnectOptions(client.uri))
		done <- err
	}()

	// Give the connect goroutine time to take the lock and enter the
	// peer wait.
	time.Sleep(50 * time.Millisecond)

	statusCh := make(chan Status, 1)
	go func() { statusCh <- manager.Status() }()
	select {
	case st := <-statusCh:
		if !st.Transitioning {
			t.Errorf("expected transitioning status during connect, got %+v", st)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Status blocked while a connect was in flight")
	}

	if err := <-done; !apperror.IsCode(err, apperror.CodeSyncTimeout) {
		t.Fatalf("expected SYNC_TIMEOUT from the peerless connect, got %v", err)
	}
	if st := manager.Status(); st.Connected || st.Transitioning {
		t.Errorf("expected idle status after failed connect, got %+v", st)
	}
}
