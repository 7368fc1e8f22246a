// Package di contains dependency injection tokens for the node connection context.
package di

import (
	"github.com/fd1az/chainsync/business/nodeconn/app"
	"github.com/fd1az/chainsync/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Manager          = di.NewToken[*app.ConnectionManager]("nodeconn.ConnectionManager")
	ContractAccessor = di.NewToken[*app.ContractAccessor]("nodeconn.ContractAccessor")
	ReceiptWaiter    = di.NewToken[*app.ReceiptWaiter]("nodeconn.ReceiptWaiter")
)

// Private dependency tokens - internal to the nodeconn module
var (
	DialFunc         = di.NewToken[app.DialFunc]("nodeconn:dialFunc")
	RegistryProvider = di.NewToken[app.RegistryProvider]("nodeconn:registryProvider")
	SyncCoordinator  = di.NewToken[*app.SyncCoordinator]("nodeconn:syncCoordinator")
	SyncReporter     = di.NewToken[app.SyncReporter]("nodeconn:syncReporter")
)

// Helper functions for type-safe access
func GetManager(c di.ServiceRegistry) *app.ConnectionManager {
	return di.GetToken(c, Manager)
}

func GetContractAccessor(c di.ServiceRegistry) *app.ContractAccessor {
	return di.GetToken(c, ContractAccessor)
}

func GetReceiptWaiter(c di.ServiceRegistry) *app.ReceiptWaiter {
	return di.GetToken(c, ReceiptWaiter)
}

func GetDialFunc(c di.ServiceRegistry) app.DialFunc {
	return di.GetToken(c, DialFunc)
}

func GetRegistryProvider(c di.ServiceRegistry) app.RegistryProvider {
	return di.GetToken(c, RegistryProvider)
}

func GetSyncCoordinator(c di.ServiceRegistry) *app.SyncCoordinator {
	return di.GetToken(c, SyncCoordinator)
}

func GetSyncReporter(c di.ServiceRegistry) app.SyncReporter {
	return di.GetToken(c, SyncReporter)
}
