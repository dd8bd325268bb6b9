package compiler

import (
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

// Program is a compiled WGSL stage.
type Program struct {
	stage    model.Stage
	entry    string
	source   model.Source
	ast      *wgsl.Module
	module   *ir.Module
	spirv    []byte
	slots    []model.Slot
	warnings []model.Diagnostic
}

func (p *Program) Stage() model.Stage { return p.stage }

func (p *Program) EntryPoint() string { return p.entry }

func (p *Program) Slots() []model.Slot { return p.slots }

func (p *Program) Warnings() []model.Diagnostic { return p.warnings }

// AST returns the parsed module used for instrumented execution.
func (p *Program) AST() *wgsl.Module { return p.ast }

// IR returns the lowered module, nil in syntax-only mode.
func (p *Program) IR() *ir.Module { return p.module }

// SPIRV returns the generated binary, nil when generation is disabled.
func (p *Program) SPIRV() []byte { return p.spirv }

// File returns the path the source was read from.
func (p *Program) File() string { return p.source.Path }

// Text returns the source text.
func (p *Program) Text() string { return p.source.Text }

var _ model.Program = (*Program)(nil)
