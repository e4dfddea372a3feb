package tools

import "errors"

// Sentinel errors for tool operations.
var (
	// ErrToolNotFound is returned when a requested tool is not in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameRequired is returned when registering a tool without a name.
	ErrToolNameRequired = errors.New("tool name is required")

	// ErrInvokerRequired is returned when a descriptor has neither an Invoke
	// function nor a registered invoker name.
	ErrInvokerRequired = errors.New("tool invoker is required")

	// ErrInvokerNotFound is returned when a manifest names an unregistered invoker.
	ErrInvokerNotFound = errors.New("named invoker is not registered")

	// ErrDuplicateTool is returned when registering a name that already exists.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrEngineIncompatible is returned when the engine version does not
	// satisfy the tool's declared constraint.
	ErrEngineIncompatible = errors.New("engine version does not satisfy tool constraint")

	// ErrInvalidManifest is returned for malformed tool manifests.
	ErrInvalidManifest = errors.New("invalid tool manifest")
)

// ValidationError carries structured argument validation failures.
type ValidationError struct {
	Tool   string
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "tool " + e.Tool + ": " + e.Detail
}
