package interp

import "github.com/pkg/errors"

var (
	// ErrStackOverflow is returned when a call would exceed the maximum stack depth.
	ErrStackOverflow = errors.New("stack overflow")
	// ErrStepLimit is returned when an invocation executes more statements than allowed.
	ErrStepLimit = errors.New("step limit exceeded")
	// ErrUnsupported is returned for language features the interpreter does not implement.
	ErrUnsupported = errors.New("unsupported")
	// ErrNoEntryPoint is returned when the entry function does not exist.
	ErrNoEntryPoint = errors.New("no entry point")
	// ErrUndefined is returned when an identifier does not resolve.
	ErrUndefined = errors.New("undefined identifier")
	// ErrType is returned when operand types do not fit an operation.
	ErrType = errors.New("type error")
	// ErrHalt is returned by hooks to stop execution. Run reports it unchanged.
	ErrHalt = errors.New("halted")
)
