package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apm"
	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/logger"
	"github.com/fd1az/chainsync/internal/ratelimit"
)

const (
	// DefaultSyncTimeout bounds the whole sync attempt.
	DefaultSyncTimeout = 600 * time.Second

	// DefaultPeerWaitBudget bounds peer discovery alone; it is shorter
	// than the overall budget because finding peers should be fast even
	// when catching up is slow.
	DefaultPeerWaitBudget = 30 * time.Second

	defaultPeerPollsPerSecond   = 4.0
	defaultProgressPollInterval = time.Second
)

// SyncCoordinatorConfig tunes the polling cadence and budgets.
type SyncCoordinatorConfig struct {
	PeerWaitBudget       time.Duration
	PeerPollsPerSecond   float64
	ProgressPollInterval time.Duration
}

// DefaultSyncCoordinatorConfig returns production cadence values.
func DefaultSyncCoordinatorConfig() SyncCoordinatorConfig {
	return SyncCoordinatorConfig{
		PeerWaitBudget:       DefaultPeerWaitBudget,
		PeerPollsPerSecond:   defaultPeerPollsPerSecond,
		ProgressPollInterval: defaultProgressPollInterval,
	}
}

// SyncCoordinator drives the peer-wait, need-detection, start-wait and
// progress phases of waiting for a node to catch up with its peers.
type SyncCoordinator struct {
	cfg      SyncCoordinatorConfig
	log      logger.LoggerInterface
	reporter SyncReporter
	limiter  *ratelimit.Limiter
	tracer   apm.Tracer
}

// NewSyncCoordinator creates a coordinator. reporter may be nil.
func NewSyncCoordinator(cfg SyncCoordinatorConfig, log logger.LoggerInterface, reporter SyncReporter) *SyncCoordinator {
	if cfg.PeerWaitBudget <= 0 {
		cfg.PeerWaitBudget = DefaultPeerWaitBudget
	}
	if cfg.PeerPollsPerSecond <= 0 {
		cfg.PeerPollsPerSecond = defaultPeerPollsPerSecond
	}
	if cfg.ProgressPollInterval <= 0 {
		cfg.ProgressPollInterval = defaultProgressPollInterval
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &SyncCoordinator{
		cfg:      cfg,
		log:      log,
		reporter: reporter,
		limiter:  ratelimit.New(cfg.PeerPollsPerSecond),
		tracer:   apm.NewTracer(tracerName),
	}
}

// Sync blocks until the node has at least one peer and knows every
// block its peers advertise as their heads. timeout <= 0 uses
// DefaultSyncTimeout. The returned outcome distinguishes a sync that
// ran from one that was never needed; any elapsed budget aborts the
// whole attempt with SYNC_TIMEOUT and the caller must retry from
// scratch.
func (c *SyncCoordinator) Sync(ctx context.Context, conn *Connection, timeout time.Duration) (domain.SyncOutcome, error) {
	if timeout <= 0 {
		timeout = DefaultSyncTimeout
	}

	ctx, span := c.tracer.StartSpanFromContext(ctx, "nodeconn.sync",
		trace.WithAttributes(
			attribute.String("uri", conn.URI()),
			attribute.String("timeout", timeout.String()),
		),
	)
	defer span.End()

	outcome, err := c.run(ctx, conn, timeout)
	if err != nil {
		span.NoticeError(err)
		return outcome, err
	}
	span.SetAttributes(attribute.String("outcome", outcome.String()))
	span.SetStatus(otelcodes.Ok, "sync finished")
	return outcome, nil
}

func (c *SyncCoordinator) run(ctx context.Context, conn *Connection, timeout time.Duration) (domain.SyncOutcome, error) {
	client := conn.Client()
	start := time.Now()

	checkTimeout := func(budget time.Duration, phase string) error {
		if time.Since(start) > budget {
			return apperror.New(apperror.CodeSyncTimeout,
				apperror.WithContext(fmt.Sprintf("%s exceeded %s", phase, budget)))
		}
		return nil
	}

	// Peer-wait phase.
	c.log.Info(ctx, "waiting for node peers", "uri", conn.URI())
	c.reporter.WaitingForPeers()

	var peers []domain.Peer
	for {
		var err error
		peers, err = client.Peers(ctx)
		if err != nil {
			return domain.SyncUnknown, err
		}
		if len(peers) > 0 {
			break
		}
		if err := checkTimeout(c.cfg.PeerWaitBudget, "peer discovery"); err != nil {
			return domain.SyncUnknown, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.SyncUnknown, err
		}
	}

	// Sync-need detection: one head block the node does not know is
	// sufficient evidence.
	needsSync := false
	for _, peer := range peers {
		_, err := client.HeaderByHash(ctx, peer.Head)
		if err == nil {
			continue
		}
		if apperror.IsCode(err, apperror.CodeBlockNotFound) {
			needsSync = true
			break
		}
		return domain.SyncUnknown, err
	}

	if !needsSync {
		c.log.Info(ctx, "node already in sync with peers", "peers", len(peers))
		c.reporter.Done(domain.SyncNotNeeded)
		return domain.SyncNotNeeded, nil
	}

	// Sync-start-wait phase, on the overall budget.
	c.log.Info(ctx, "waiting for sync to begin", "peers", len(peers))
	c.reporter.WaitingForSyncStart(len(peers))

	var status *domain.SyncStatus
	for {
		var err error
		status, err = client.SyncProgress(ctx)
		if err != nil {
			return domain.SyncUnknown, err
		}
		if status != nil {
			break
		}
		if err := checkTimeout(timeout, "sync start"); err != nil {
			return domain.SyncUnknown, err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.SyncUnknown, err
		}
	}

	// Sync-progress phase.
	for status != nil {
		c.log.Info(ctx, "syncing", "current", status.CurrentBlock, "highest", status.HighestBlock)
		c.reporter.Progress(status.CurrentBlock, status.HighestBlock)

		select {
		case <-ctx.Done():
			return domain.SyncUnknown, ctx.Err()
		case <-time.After(c.cfg.ProgressPollInterval):
		}

		if err := checkTimeout(timeout, "sync progress"); err != nil {
			return domain.SyncUnknown, err
		}

		var err error
		status, err = client.SyncProgress(ctx)
		if err != nil {
			return domain.SyncUnknown, err
		}
	}

	c.log.Info(ctx, "sync complete", "elapsed", time.Since(start).Round(time.Millisecond))
	c.reporter.Done(domain.SyncPerformed)
	return domain.SyncPerformed, nil
}

// nopReporter discards all notifications.
type nopReporter struct{}

func (nopReporter) WaitingForPeers()        {}
func (nopReporter) WaitingForSyncStart(int) {}
func (nopReporter) Progress(uint64, uint64) {}
func (nopReporter) Done(domain.SyncOutcome) {}
