// Package nodeconn implements the node connection bounded context:
// connection lifecycle, sync coordination, contract resolution and
// receipt waiting against an Ethereum node.
package nodeconn

import (
	"context"

	"github.com/fd1az/chainsync/business/nodeconn/app"
	nodeconnDI "github.com/fd1az/chainsync/business/nodeconn/di"
	"github.com/fd1az/chainsync/business/nodeconn/domain"
	"github.com/fd1az/chainsync/business/nodeconn/infra"
	"github.com/fd1az/chainsync/business/nodeconn/infra/ethereum"
	"github.com/fd1az/chainsync/business/nodeconn/infra/process"
	"github.com/fd1az/chainsync/business/nodeconn/infra/registry"
	"github.com/fd1az/chainsync/internal/config"
	"github.com/fd1az/chainsync/internal/di"
	"github.com/fd1az/chainsync/internal/logger"
	"github.com/fd1az/chainsync/internal/monolith"
)

// Module implements the node connection bounded context. Reporter
// selects the sync progress surface; nil means console output.
type Module struct {
	Reporter app.SyncReporter
}

// RegisterServices registers all node connection services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Sync reporter - private dependency
	di.RegisterToken(c, nodeconnDI.SyncReporter, func(sr di.ServiceRegistry) app.SyncReporter {
		if m.Reporter != nil {
			return m.Reporter
		}
		return infra.NewConsoleReporter()
	})

	// Dial function - private dependency
	di.RegisterToken(c, nodeconnDI.DialFunc, func(sr di.ServiceRegistry) app.DialFunc {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		base := ethereum.DefaultConfig(cfg.Node.URI)
		if cfg.Node.RPCTimeout > 0 {
			base.RPCTimeout = cfg.Node.RPCTimeout
		}
		return ethereum.Dialer(base, log)
	})

	// Registry provider - private dependency
	di.RegisterToken(c, nodeconnDI.RegistryProvider, func(sr di.ServiceRegistry) app.RegistryProvider {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		provider, err := registry.NewProvider(cfg.Registry.PublicationURL, cfg.Registry.FetchTimeout, log)
		if err != nil {
			panic("failed to create registry provider: " + err.Error())
		}
		return provider
	})

	// Sync coordinator - private dependency
	di.RegisterToken(c, nodeconnDI.SyncCoordinator, func(sr di.ServiceRegistry) *app.SyncCoordinator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		syncCfg := app.SyncCoordinatorConfig{
			PeerWaitBudget:       cfg.Sync.PeerWaitBudget,
			PeerPollsPerSecond:   cfg.Sync.PeerPollsPerSecond,
			ProgressPollInterval: cfg.Sync.ProgressPollInterval,
		}
		return app.NewSyncCoordinator(syncCfg, log, nodeconnDI.GetSyncReporter(sr))
	})

	// Connection manager (public - exposed to other modules)
	di.RegisterToken(c, nodeconnDI.Manager, func(sr di.ServiceRegistry) *app.ConnectionManager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewConnectionManager(
			nodeconnDI.GetDialFunc(sr),
			nodeconnDI.GetRegistryProvider(sr),
			nodeconnDI.GetSyncCoordinator(sr),
			log,
			cfg.Node.ReceiptTimeout,
		)
	})

	// Contract accessor (public)
	di.RegisterToken(c, nodeconnDI.ContractAccessor, func(sr di.ServiceRegistry) *app.ContractAccessor {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewContractAccessor(log)
	})

	// Receipt waiter (public)
	di.RegisterToken(c, nodeconnDI.ReceiptWaiter, func(sr di.ServiceRegistry) *app.ReceiptWaiter {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewReceiptWaiter(log)
	})

	return nil
}

// Startup connects to the configured node and performs the initial sync.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	manager := nodeconnDI.GetManager(mono.Services())

	opts := app.NewConnectOptions(cfg.Node.URI)
	opts.AsDeployer = cfg.Node.AsDeployer
	opts.PoAMode = cfg.Node.PoAMode
	opts.FullSync = cfg.Node.FullSync
	opts.SyncTimeout = cfg.Sync.Timeout

	if cfg.Node.Process.Binary != "" {
		opts.Process = process.New(process.Config{
			Binary:      cfg.Node.Process.Binary,
			Args:        cfg.Node.Process.Args,
			DataDir:     cfg.Node.Process.DataDir,
			StopTimeout: cfg.Node.Process.StopTimeout,
		}, log)
	}

	conn, err := manager.Connect(ctx, opts)
	if err != nil {
		return err
	}

	mode := "reader"
	if conn.Mode() == domain.ModeDeployer {
		mode = "deployer"
	}
	log.Info(ctx, "node connection module started", "uri", conn.URI(), "mode", mode)
	return nil
}
