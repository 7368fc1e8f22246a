package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField: "Required field is missing",
	CodeInvalidInput:  "Invalid input provided",
	CodeInvalidState:  "Invalid state for this operation",
	CodeNotFound:      "Resource not found",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// System errors
	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	// Connection lifecycle
	CodeNotConnected:          "No node connection has been established",
	CodeConflictingConnection: "A connection to a different node already exists",
	CodeNodeConnectionFailed:  "Failed to connect to node",
	CodeNodeRPCError:          "Node RPC call failed",
	CodeProcessStartFailed:    "Failed to start node process",
	CodeProcessStopFailed:     "Failed to stop node process",

	// Sync
	CodeSyncTimeout:   "Node synchronization timed out",
	CodeBlockNotFound: "Block not found",

	// Contract registry
	CodeUnknownContract:       "Contract not found in registry",
	CodeRegistryFetchFailed:   "Failed to fetch published contract registry",
	CodeRegistryNotConfigured: "No contract registry publication configured",
	CodeRegistryMalformed:     "Published contract registry is malformed",

	// Transactions
	CodeReceiptTimeout: "Timed out waiting for transaction receipt",

	// Circuit breaker
	CodeCircuitOpen: "Circuit breaker is open",
}
