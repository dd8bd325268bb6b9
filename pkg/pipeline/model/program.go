package model

import (
	"fmt"
	"strings"
)

// Source is the text of one shader stage.
type Source struct {
	// Path is the file the text was read from, if any.
	Path string
	Text string
	// Entry selects the entry point. Empty picks the first one for the stage.
	Entry string
}

// Severity of a compiler diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Diagnostic is one compiler message. Line and Column are 1-based, zero when unknown.
type Diagnostic struct {
	Stage    Stage
	Line     int
	Column   int
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Stage, d.Line, d.Column, d.Severity, d.Message)
}

// CompileError carries the ordered diagnostics of a failed build.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "compile error"
	}

	msgs := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityError {
			msgs = append(msgs, d.String())
		}
	}
	if len(msgs) == 0 {
		return "compile error"
	}

	return "compile error: " + strings.Join(msgs, "; ")
}

// Program is a compiled shader stage.
type Program interface {
	Stage() Stage
	EntryPoint() string
	// Slots lists the resource slots the program declares.
	Slots() []Slot
	// Warnings lists non-fatal diagnostics.
	Warnings() []Diagnostic
}

// Compiler turns stage sources into programs. A failure is reported as a
// *CompileError holding the ordered diagnostics.
type Compiler interface {
	Compile(stage Stage, src Source) (Program, error)
}
