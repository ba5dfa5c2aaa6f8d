package retry

// Defaults for the retry manager's tunable constants; PipelineConfig may
// override each when constructing a Manager.
const (
	DefaultMaxRetryAttempts           = 3
	DefaultMaxTotalRetryAttempts      = 10
	DefaultManualRetryCooldownSeconds = 60
)
