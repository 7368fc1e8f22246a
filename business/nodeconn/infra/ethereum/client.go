// Package ethereum provides the go-ethereum backed node client.
package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/chainsync/business/nodeconn/app"
	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/internal/apperror"
	"github.com/fd1az/chainsync/internal/circuitbreaker"
	"github.com/fd1az/chainsync/internal/logger"
)

const (
	tracerName = "github.com/fd1az/chainsync/business/nodeconn/infra/ethereum"
	meterName  = "github.com/fd1az/chainsync/business/nodeconn/infra/ethereum"
)

// Config holds configuration for the node client.
type Config struct {
	URI                 string
	Mode                domain.ClientMode
	PoACompat           bool          // lenient header decoding for proof-of-authority chains
	RPCTimeout          time.Duration // per-call budget
	ReceiptPollInterval time.Duration // cadence of receipt polling
}

// DefaultConfig returns sensible defaults for uri.
func DefaultConfig(uri string) Config {
	return Config{
		URI:                 uri,
		Mode:                domain.ModeReader,
		RPCTimeout:          15 * time.Second,
		ReceiptPollInterval: time.Second,
	}
}

// clientMetrics holds OTEL metric instruments.
type clientMetrics struct {
	rpcCalls      metric.Int64Counter
	rpcErrors     metric.Int64Counter
	peersSeen     metric.Int64Gauge
	syncRemaining metric.Int64Gauge
}

// Client implements app.NodeClient over a go-ethereum RPC connection.
// Peer and sync queries go through the raw rpc.Client because ethclient
// does not expose admin_peers; receipts go through ethclient.
type Client struct {
	cfg Config
	log logger.LoggerInterface

	rpc *rpc.Client
	eth *ethclient.Client

	peersCB  *circuitbreaker.CircuitBreaker[[]domain.Peer]
	syncCB   *circuitbreaker.CircuitBreaker[*domain.SyncStatus]
	headerCB *circuitbreaker.CircuitBreaker[*domain.Header]

	tracer  trace.Tracer
	metrics *clientMetrics
}

// Dialer returns an app.DialFunc carrying base as the template config.
func Dialer(base Config, log logger.LoggerInterface) app.DialFunc {
	return func(ctx context.Context, uri string, mode domain.ClientMode, poaMode bool) (app.NodeClient, error) {
		cfg := base
		cfg.URI = uri
		cfg.Mode = mode
		cfg.PoACompat = poaMode
		return New(ctx, cfg, log)
	}
}

// New dials cfg.URI and returns a node client. In ModeDeployer the
// returned client additionally carries the transaction-sending surface.
func New(ctx context.Context, cfg Config, log logger.LoggerInterface) (app.NodeClient, error) {
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 15 * time.Second
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = time.Second
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.URI)
	if err != nil {
		return nil, apperror.New(apperror.CodeNodeConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(cfg.URI))
	}

	c := &Client{
		cfg:    cfg,
		log:    log,
		rpc:    rpcClient,
		eth:    ethclient.NewClient(rpcClient),
		tracer: otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		rpcClient.Close()
		return nil, err
	}
	c.initCircuitBreakers()

	if cfg.PoACompat {
		log.Debug(ctx, "proof-of-authority header compatibility enabled", "uri", cfg.URI)
	}

	if cfg.Mode == domain.ModeDeployer {
		return &DeployerClient{Client: c}, nil
	}
	return c, nil
}

// initMetrics initializes OTEL metric instruments.
func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.rpcCalls, err = meter.Int64Counter(
		"node_rpc_calls_total",
		metric.WithDescription("Total node RPC calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.rpcErrors, err = meter.Int64Counter(
		"node_rpc_errors_total",
		metric.WithDescription("Total failed node RPC calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	c.metrics.peersSeen, err = meter.Int64Gauge(
		"node_peers",
		metric.WithDescription("Peers reported by the node"),
		metric.WithUnit("{peer}"),
	)
	if err != nil {
		return err
	}

	c.metrics.syncRemaining, err = meter.Int64Gauge(
		"node_sync_remaining_blocks",
		metric.WithDescription("Blocks remaining in the active sync"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// initCircuitBreakers initializes circuit breakers for the RPC surface.
func (c *Client) initCircuitBreakers() {
	onChange := func(name string, from, to gobreaker.State) {
		c.log.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	peersCfg := circuitbreaker.DefaultConfig("node-peers")
	peersCfg.OnStateChange = onChange
	c.peersCB = circuitbreaker.New[[]domain.Peer](peersCfg)

	syncCfg := circuitbreaker.DefaultConfig("node-syncing")
	syncCfg.OnStateChange = onChange
	c.syncCB = circuitbreaker.New[*domain.SyncStatus](syncCfg)

	headerCfg := circuitbreaker.DefaultConfig("node-headers")
	headerCfg.OnStateChange = onChange
	c.headerCB = circuitbreaker.New[*domain.Header](headerCfg)
}

// rpcPeer is the loose decode target for admin_peers entries. The eth
// protocol field is a string while the handshake is still running, so
// protocols stay raw until inspected.
type rpcPeer struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	Protocols map[string]json.RawMessage `json:"protocols"`
}

type rpcEthProtocol struct {
	Head common.Hash `json:"head"`
}

// Peers returns the node's current peer snapshot.
func (c *Client) Peers(ctx context.Context) ([]domain.Peer, error) {
	ctx, span := c.tracer.Start(ctx, "node.peers")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout)
	defer cancel()

	peers, err := c.peersCB.Execute(func() ([]domain.Peer, error) {
		c.metrics.rpcCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "admin_peers")))

		var raw []rpcPeer
		if err := c.rpc.CallContext(ctx, &raw, "admin_peers"); err != nil {
			return nil, apperror.New(apperror.CodeNodeRPCError,
				apperror.WithCause(err),
				apperror.WithContext("admin_peers"))
		}

		peers := make([]domain.Peer, 0, len(raw))
		for _, p := range raw {
			ethRaw, ok := p.Protocols["eth"]
			if !ok {
				continue
			}
			var eth rpcEthProtocol
			if err := json.Unmarshal(ethRaw, &eth); err != nil {
				// Handshake still in progress; the peer has no head yet.
				continue
			}
			peers = append(peers, domain.Peer{ID: p.ID, Name: p.Name, Head: eth.Head})
		}
		return peers, nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "peers fetch failed")
		c.metrics.rpcErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "admin_peers")))
		return nil, err
	}

	c.metrics.peersSeen.Record(ctx, int64(len(peers)))
	span.SetAttributes(attribute.Int("peer_count", len(peers)))
	span.SetStatus(codes.Ok, "fetched")
	return peers, nil
}

// rpcSyncStatus is the decode target for an active eth_syncing report.
type rpcSyncStatus struct {
	StartingBlock hexutil.Uint64 `json:"startingBlock"`
	CurrentBlock  hexutil.Uint64 `json:"currentBlock"`
	HighestBlock  hexutil.Uint64 `json:"highestBlock"`
}

// SyncProgress returns the active sync status, or nil when idle.
func (c *Client) SyncProgress(ctx context.Context) (*domain.SyncStatus, error) {
	ctx, span := c.tracer.Start(ctx, "node.sync_progress")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout)
	defer cancel()

	status, err := c.syncCB.Execute(func() (*domain.SyncStatus, error) {
		c.metrics.rpcCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "eth_syncing")))

		var raw json.RawMessage
		if err := c.rpc.CallContext(ctx, &raw, "eth_syncing"); err != nil {
			return nil, apperror.New(apperror.CodeNodeRPCError,
				apperror.WithCause(err),
				apperror.WithContext("eth_syncing"))
		}

		// A node that is not syncing reports the literal false.
		var active bool
		if err := json.Unmarshal(raw, &active); err == nil && !active {
			return nil, nil
		}

		var decoded rpcSyncStatus
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, apperror.New(apperror.CodeNodeRPCError,
				apperror.WithCause(err),
				apperror.WithContext("eth_syncing: unexpected payload"))
		}
		return &domain.SyncStatus{
			StartingBlock: uint64(decoded.StartingBlock),
			CurrentBlock:  uint64(decoded.CurrentBlock),
			HighestBlock:  uint64(decoded.HighestBlock),
		}, nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync status fetch failed")
		c.metrics.rpcErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "eth_syncing")))
		return nil, err
	}

	if status != nil {
		c.metrics.syncRemaining.Record(ctx, int64(status.Remaining()))
		span.SetAttributes(
			attribute.Int64("current_block", int64(status.CurrentBlock)),
			attribute.Int64("highest_block", int64(status.HighestBlock)),
		)
	}
	span.SetStatus(codes.Ok, "fetched")
	return status, nil
}

// looseHeader is the lenient decode target used in PoA mode. Clique
// headers carry the signer seal in extra-data, which overflows the
// strict codec's expectations.
type looseHeader struct {
	Number     *hexutil.Big   `json:"number"`
	Hash       common.Hash    `json:"hash"`
	ParentHash common.Hash    `json:"parentHash"`
	Time       hexutil.Uint64 `json:"timestamp"`
	ExtraData  hexutil.Bytes  `json:"extraData"`
}

// HeaderByHash looks up a block header. Missing blocks yield
// BLOCK_NOT_FOUND; the caller treats that as a sync signal.
func (c *Client) HeaderByHash(ctx context.Context, hash common.Hash) (*domain.Header, error) {
	ctx, span := c.tracer.Start(ctx, "node.header_by_hash",
		trace.WithAttributes(attribute.String("hash", hash.Hex())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout)
	defer cancel()

	header, err := c.headerCB.Execute(func() (*domain.Header, error) {
		if c.cfg.PoACompat {
			return c.looseHeaderByHash(ctx, hash)
		}
		return c.strictHeaderByHash(ctx, hash)
	})

	if err != nil {
		if !apperror.IsCode(err, apperror.CodeBlockNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "header fetch failed")
			c.metrics.rpcErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "eth_getBlockByHash")))
		} else {
			span.AddEvent("block_not_found")
		}
		return nil, err
	}

	span.SetStatus(codes.Ok, "fetched")
	return header, nil
}

func (c *Client) strictHeaderByHash(ctx context.Context, hash common.Hash) (*domain.Header, error) {
	c.metrics.rpcCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "eth_getBlockByHash")))

	h, err := c.eth.HeaderByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gethereum.NotFound) {
			return nil, apperror.New(apperror.CodeBlockNotFound, apperror.WithContext(hash.Hex()))
		}
		return nil, apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_getBlockByHash"))
	}
	return &domain.Header{
		Number:     h.Number.Uint64(),
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Time:       h.Time,
	}, nil
}

func (c *Client) looseHeaderByHash(ctx context.Context, hash common.Hash) (*domain.Header, error) {
	c.metrics.rpcCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("method", "eth_getBlockByHash")))

	var raw *looseHeader
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByHash", hash, false); err != nil {
		return nil, apperror.New(apperror.CodeNodeRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_getBlockByHash"))
	}
	if raw == nil {
		return nil, apperror.New(apperror.CodeBlockNotFound, apperror.WithContext(hash.Hex()))
	}

	header := &domain.Header{
		Hash:       raw.Hash,
		ParentHash: raw.ParentHash,
		Time:       uint64(raw.Time),
	}
	if raw.Number != nil {
		header.Number = raw.Number.ToInt().Uint64()
	}
	return header, nil
}

// WaitForReceipt polls for the transaction receipt until it appears or
// timeout elapses.
func (c *Client) WaitForReceipt(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, span := c.tracer.Start(ctx, "node.wait_for_receipt",
		trace.WithAttributes(
			attribute.String("tx", txHash.Hex()),
			attribute.String("timeout", timeout.String()),
		),
	)
	defer span.End()

	deadline := time.Now().Add(timeout)
	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			span.SetStatus(codes.Ok, "mined")
			return receipt, nil
		}
		if !errors.Is(err, gethereum.NotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "receipt lookup failed")
			return nil, apperror.New(apperror.CodeNodeRPCError,
				apperror.WithCause(err),
				apperror.WithContext("eth_getTransactionReceipt"))
		}

		if time.Now().After(deadline) {
			err := apperror.New(apperror.CodeReceiptTimeout, apperror.WithContext(txHash.Hex()))
			span.RecordError(err)
			span.SetStatus(codes.Error, "timed out")
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.ReceiptPollInterval):
		}
	}
}

// URI returns the endpoint this client is bound to.
func (c *Client) URI() string {
	return c.cfg.URI
}

// Close releases the underlying transport.
func (c *Client) Close() {
	c.rpc.Close()
}
