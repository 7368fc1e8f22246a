package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apm"
	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/logger"
)

const tracerName = "github.com/fd1az/chainsync/business/nodeconn/app"

// DefaultReceiptTimeout is the receipt-wait budget a new Connection
// carries when the manager is not configured otherwise.
const DefaultReceiptTimeout = 120 * time.Second

// ConnectOptions carries the parameters of a Connect call.
type ConnectOptions struct {
	// NodeURI is the endpoint of an already-running node. Ignored for
	// the dial when Process is set and exposes its own endpoint there.
	NodeURI string

	// Process, when set, is a child node process the new connection
	// will own: started before dialing, stopped on Disconnect.
	Process ProcessHandle

	// Registry, when set, is bound to the connection as-is and no
	// publication fetch happens.
	Registry Registry

	// AsDeployer selects the deployer-capable client variant.
	AsDeployer bool

	// PoAMode enables proof-of-authority header compatibility at the
	// lowest decoding layer.
	PoAMode bool

	// Force allows a Connect with a differing NodeURI to return the
	// existing connection instead of failing.
	Force bool

	// FetchRegistry enables fetching the latest published registry
	// when none was supplied.
	FetchRegistry bool

	// FullSync runs the sync coordinator before the connection is
	// handed out.
	FullSync bool

	// SyncTimeout overrides the coordinator's overall budget when
	// positive.
	SyncTimeout time.Duration
}

// NewConnectOptions returns options with the defaults callers expect:
// force on, registry fetch on, full sync on.
func NewConnectOptions(nodeURI string) ConnectOptions {
	return ConnectOptions{
		NodeURI:       nodeURI,
		Force:         true,
		FetchRegistry: true,
		FullSync:      true,
	}
}

// ConnectionManager owns the single process-wide Connection. All
// lifecycle transitions happen under its lock, which is the
// initialization barrier callers would otherwise have to provide.
type ConnectionManager struct {
	mu   sync.Mutex
	conn *Connection

	dial           DialFunc
	registries     RegistryProvider
	syncer         *SyncCoordinator
	log            logger.LoggerInterface
	tracer         apm.Tracer
	receiptTimeout time.Duration
}

// NewConnectionManager creates a manager with no active connection.
// receiptTimeout <= 0 falls back to DefaultReceiptTimeout.
func NewConnectionManager(
	dial DialFunc,
	registries RegistryProvider,
	syncer *SyncCoordinator,
	log logger.LoggerInterface,
	receiptTimeout time.Duration,
) *ConnectionManager {
	if receiptTimeout <= 0 {
		receiptTimeout = DefaultReceiptTimeout
	}
	return &ConnectionManager{
		dial:           dial,
		registries:     registries,
		syncer:         syncer,
		log:            log,
		tracer:         apm.NewTracer(tracerName),
		receiptTimeout: receiptTimeout,
	}
}

// Connect returns the singleton Connection, creating it on first call.
// A repeat call with a differing NodeURI fails with
// CONFLICTING_CONNECTION unless opts.Force is set; a repeat call with
// a Registry swaps the existing connection's registry in place.
func (m *ConnectionManager) Connect(ctx context.Context, opts ConnectOptions) (*Connection, error) {
	ctx, span := m.tracer.StartSpanFromContext(ctx, "nodeconn.connect",
		trace.WithAttributes(
			attribute.String("uri", opts.NodeURI),
			attribute.Bool("force", opts.Force),
			attribute.Bool("full_sync", opts.FullSync),
		),
	)
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	var conn *Connection
	var err error
	if m.conn != nil {
		conn, err = m.reuseLocked(ctx, opts)
	} else {
		conn, err = m.establishLocked(ctx, opts)
	}

	if err != nil {
		span.NoticeError(err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "connected")
	return conn, nil
}

func (m *ConnectionManager) reuseLocked(ctx context.Context, opts ConnectOptions) (*Connection, error) {
	if opts.NodeURI != "" && opts.NodeURI != m.conn.uri && !opts.Force {
		return nil, apperror.New(apperror.CodeConflictingConnection,
			apperror.WithContext(fmt.Sprintf(
				"there is an existing connection to %s; add a secondary provider explicitly instead of reconnecting",
				m.conn.uri)))
	}

	if opts.Registry != nil {
		// A cached connection can be rebound to a different registry.
		m.conn.setRegistry(opts.Registry)
		m.log.Debug(ctx, "registry swapped on existing connection", "uri", m.conn.uri)
	}

	return m.conn, nil
}

func (m *ConnectionManager) establishLocked(ctx context.Context, opts ConnectOptions) (*Connection, error) {
	registry, err := m.resolveRegistry(ctx, opts)
	if err != nil {
		return nil, err
	}

	if opts.Process != nil {
		if err := opts.Process.Start(ctx); err != nil {
			return nil, apperror.New(apperror.CodeProcessStartFailed,
				apperror.WithCause(err),
				apperror.WithContext(opts.NodeURI))
		}
	} else {
		m.log.Info(ctx, "using external node provider", "uri", opts.NodeURI)
	}

	mode := domain.ModeReader
	if opts.AsDeployer {
		mode = domain.ModeDeployer
	}

	client, err := m.dial(ctx, opts.NodeURI, mode, opts.PoAMode)
	if err != nil {
		if opts.Process != nil {
			if stopErr := opts.Process.Stop(ctx); stopErr != nil {
				m.log.Error(ctx, "failed to stop node process after dial failure", "error", stopErr)
			}
		}
		return nil, apperror.Wrap(err, apperror.CodeNodeConnectionFailed, opts.NodeURI)
	}

	conn := &Connection{
		client:         client,
		uri:            opts.NodeURI,
		mode:           mode,
		process:        opts.Process,
		registry:       registry,
		receiptTimeout: m.receiptTimeout,
	}
	m.conn = conn

	if opts.FullSync {
		if _, err := m.syncer.Sync(ctx, conn, opts.SyncTimeout); err != nil {
			if stopErr := m.teardownLocked(ctx); stopErr != nil {
				m.log.Error(ctx, "failed to stop node process after sync failure", "error", stopErr)
			}
			return nil, err
		}
	}

	m.log.Info(ctx, "node connection established", "connection", conn.String())
	return conn, nil
}

func (m *ConnectionManager) resolveRegistry(ctx context.Context, opts ConnectOptions) (Registry, error) {
	if opts.Registry != nil {
		return opts.Registry, nil
	}
	if !opts.FetchRegistry {
		return m.registries.Empty(), nil
	}

	reg, err := m.registries.FetchLatestPublished(ctx)
	if err != nil {
		if apperror.IsCode(err, apperror.CodeRegistryNotConfigured) {
			m.log.Warn(ctx, "no registry publication configured, starting with an empty registry")
			return m.registries.Empty(), nil
		}
		return nil, err
	}
	return reg, nil
}

// Disconnect stops any owned node process and clears the singleton so
// a later Connect creates a fresh Connection. No-op when not connected.
func (m *ConnectionManager) Disconnect(ctx context.Context) error {
	ctx, span := m.tracer.StartSpanFromContext(ctx, "nodeconn.disconnect")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	if err := m.teardownLocked(ctx); err != nil {
		span.NoticeError(err)
		return err
	}
	span.SetStatus(codes.Ok, "disconnected")
	return nil
}

func (m *ConnectionManager) teardownLocked(ctx context.Context) error {
	var stopErr error
	if m.conn.process != nil {
		if err := m.conn.process.Stop(ctx); err != nil {
			stopErr = apperror.New(apperror.CodeProcessStopFailed, apperror.WithCause(err))
		}
	}
	m.conn.client.Close()
	m.conn = nil
	return stopErr
}

// Current returns the active Connection, or NOT_CONNECTED.
func (m *ConnectionManager) Current() (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil, apperror.New(apperror.CodeNotConnected)
	}
	return m.conn, nil
}

// Status describes the manager state for health reporting.
type Status struct {
	// Connected is true when a Connection is established.
	Connected bool

	// Transitioning is true while a Connect or Disconnect is in
	// flight, which can take the whole sync budget.
	Transitioning bool

	// URI is the endpoint of the active connection, when connected.
	URI string
}

// Status reports the connection state without waiting on lifecycle
// transitions. Health probes use this instead of Current so they stay
// responsive while a Connect is full-syncing.
func (m *ConnectionManager) Status() Status {
	if !m.mu.TryLock() {
		return Status{Transitioning: true}
	}
	defer m.mu.Unlock()

	if m.conn == nil {
		return Status{}
	}
	return Status{Connected: true, URI: m.conn.uri}
}
