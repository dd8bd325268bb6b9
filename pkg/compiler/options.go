package compiler

import (
	"log/slog"

	"github.com/gogpu/naga/spirv"
)

// DefaultSPIRVVersion is the SPIR-V version emitted unless WithSPIRV says otherwise.
var DefaultSPIRVVersion = spirv.Version1_3

type Option func(c *Compiler)

// WithValidation toggles IR validation.
func WithValidation(enabled bool) Option {
	return func(c *Compiler) {
		c.validate = enabled
	}
}

// WithSPIRV toggles SPIR-V generation and sets the target version.
func WithSPIRV(enabled bool, version spirv.Version) Option {
	return func(c *Compiler) {
		c.emitSPIRV = enabled
		c.version = version
	}
}

// WithDebugInfo embeds debug names and line information in SPIR-V output.
func WithDebugInfo() Option {
	return func(c *Compiler) {
		c.debug = true
	}
}

// WithSyntaxOnly stops after parsing. Programs keep their AST so they can be
// debugged, but carry no IR or SPIR-V.
func WithSyntaxOnly() Option {
	return func(c *Compiler) {
		c.syntaxOnly = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}
