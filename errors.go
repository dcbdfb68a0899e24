package sqllogic

import "errors"

// Common errors used throughout the sqllogic package
var (
	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrUnknownProtocol indicates a backend was configured with an unsupported protocol kind.
	ErrUnknownProtocol = errors.New("unknown backend protocol")
	// ErrDuplicateLabel indicates two backends share the same label.
	ErrDuplicateLabel = errors.New("duplicate backend label")
	// ErrNoBackends indicates the configuration declares no backends.
	ErrNoBackends = errors.New("no backends configured")

	// ErrParse indicates a malformed fixture file; fatal to that file.
	ErrParse = errors.New("fixture parse error")
	// ErrNoSuitesFound indicates no fixture files matched under the suite root.
	ErrNoSuitesFound = errors.New("no suite files found")

	// ErrConnection indicates a backend was unreachable (refused, reset, dial timeout).
	ErrConnection = errors.New("backend connection error")
	// ErrExecution indicates the backend rejected a statement or query.
	ErrExecution = errors.New("statement execution error")
	// ErrTimeout indicates a statement or query exceeded the per-record bound.
	ErrTimeout = errors.New("record execution timed out")
	// ErrAssertion indicates actual results diverged from expected results.
	ErrAssertion = errors.New("result assertion mismatch")

	// ErrRunFailed is returned by the run command when any record failed or errored.
	ErrRunFailed = errors.New("test run failed")
	// ErrUnsupportedType indicates a raw backend value had a type the normalizer cannot handle.
	ErrUnsupportedType = errors.New("unsupported value type")
)
