package types

type RunMode string

const (
	// ModeLocal runs the API server, the scheduler and the event consumer in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server and the event consumer
	ModeAPI RunMode = "api"
	// ModeWorker runs just the scheduler
	ModeWorker RunMode = "worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
