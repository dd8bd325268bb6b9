package debug

import "github.com/pkg/errors"

var (
	// ErrNotCompiled is returned by Attach when the item has no valid build.
	ErrNotCompiled = errors.New("item is not compiled")
	// ErrStackOverflow terminates a session whose invocation recursed past the maximum stack depth.
	ErrStackOverflow = errors.New("stack overflow")
	// ErrStepLimit terminates a session whose invocation ran more statements than allowed.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrInvalidState is returned when a command is not valid in the current session state.
	ErrInvalidState       = errors.New("invalid session state")
	ErrInvalidBreakpoint  = errors.New("invalid breakpoint")
	ErrNotPaused          = errors.New("session is not paused")
	ErrTargetMustBeSet    = errors.New("target must be set")
	ErrVariablesMustBeSet = errors.New("system variables must be set")
	ErrUnknownCommand     = errors.New("unknown command")
	// ErrItemMismatch is returned when a command names an item other than the attached one.
	ErrItemMismatch = errors.New("item is not the attached item")
	ErrEmptyRegion  = errors.New("region is empty")
)
