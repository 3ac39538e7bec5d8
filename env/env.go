// Package env contains the environment variable names and lookup helpers
// used to configure the driver.
package env

import "os"

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Lookup is the default LookupFunc backed by the OS environment.
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// EmptyLookup is a LookupFunc that never finds anything.
func EmptyLookup(string) (string, bool) { return "", false }

// MapLookup returns a LookupFunc reading from m.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Driver behavior.
const (
	// DefaultWait is the default time to wait for a modal dialog.
	DefaultWait = "K6_ACCEPTANCE_DEFAULT_WAIT"

	// ModalPollInterval is how often the driver checks for a modal dialog.
	ModalPollInterval = "K6_ACCEPTANCE_MODAL_POLL_INTERVAL"

	// BlankURL is the page a reset navigates to.
	BlankURL = "K6_ACCEPTANCE_BLANK_URL"

	// ResetMaxAttempts bounds the dialog draining loop of a reset.
	ResetMaxAttempts = "K6_ACCEPTANCE_RESET_MAX_ATTEMPTS"

	// ResetDialogPause is the pause after accepting a dialog during a reset.
	ResetDialogPause = "K6_ACCEPTANCE_RESET_DIALOG_PAUSE"

	// AppHost is prepended to relative paths passed to visit.
	AppHost = "K6_ACCEPTANCE_APP_HOST"

	// Timeout is the navigation timeout.
	Timeout = "K6_ACCEPTANCE_TIMEOUT"
)

// Browser process.
const (
	// Headless runs the browser without a window.
	Headless = "K6_ACCEPTANCE_HEADLESS"

	// ExecutablePath is the browser binary to launch.
	ExecutablePath = "K6_ACCEPTANCE_EXECUTABLE_PATH"

	// Args are extra command line flags for the browser, comma separated.
	Args = "K6_ACCEPTANCE_ARGS"

	// WebSocketURL connects to an already running browser instead of
	// launching one.
	WebSocketURL = "K6_ACCEPTANCE_WS_URL"
)

// Logging.
const (
	// LogLevel is the logrus level name.
	LogLevel = "K6_ACCEPTANCE_LOG_LEVEL"

	// Debug forces debug logging.
	Debug = "K6_ACCEPTANCE_DEBUG"

	// LogCategoryFilter is a regexp selecting log categories.
	LogCategoryFilter = "K6_ACCEPTANCE_LOG_CATEGORY_FILTER"
)

// Tracing.
const (
	// TracesEndpoint enables OTLP tracing towards the given endpoint.
	TracesEndpoint = "K6_ACCEPTANCE_TRACES_ENDPOINT"

	// TracesProto is the OTLP protocol: http or grpc.
	TracesProto = "K6_ACCEPTANCE_TRACES_PROTO"

	// TracesInsecure disables TLS for the OTLP exporter.
	TracesInsecure = "K6_ACCEPTANCE_TRACES_INSECURE"
)
