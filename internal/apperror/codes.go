package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField Code = "REQUIRED_FIELD"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeNotFound      Code = "NOT_FOUND"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Connection lifecycle error codes
const (
	CodeNotConnected          Code = "NOT_CONNECTED"
	CodeConflictingConnection Code = "CONFLICTING_CONNECTION"
	CodeNodeConnectionFailed  Code = "NODE_CONNECTION_FAILED"
	CodeNodeRPCError          Code = "NODE_RPC_ERROR"
	CodeProcessStartFailed    Code = "PROCESS_START_FAILED"
	CodeProcessStopFailed     Code = "PROCESS_STOP_FAILED"
)

// Sync error codes
const (
	CodeSyncTimeout   Code = "SYNC_TIMEOUT"
	CodeBlockNotFound Code = "BLOCK_NOT_FOUND"
)

// Contract registry error codes
const (
	CodeUnknownContract       Code = "UNKNOWN_CONTRACT"
	CodeRegistryFetchFailed   Code = "REGISTRY_FETCH_FAILED"
	CodeRegistryNotConfigured Code = "REGISTRY_NOT_CONFIGURED"
	CodeRegistryMalformed     Code = "REGISTRY_MALFORMED"
)

// Transaction error codes
const (
	CodeReceiptTimeout Code = "RECEIPT_TIMEOUT"
)

// Circuit breaker error codes
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
