// Package compiler implements the pipeline compiler collaborator on top of
// the naga WGSL frontend.
//
// Compilation runs parse, lowering, validation and SPIR-V generation in that
// order and stops at the first failing phase. Every failure is reported as a
// *model.CompileError whose diagnostics are ordered by source position.
package compiler

import (
	"log/slog"
	"sort"
	"strconv"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

var stageAttributes = map[model.Stage]string{
	model.StageVertex:  "vertex",
	model.StagePixel:   "fragment",
	model.StageCompute: "compute",
}

// Compiler compiles WGSL stage sources.
type Compiler struct {
	validate   bool
	emitSPIRV  bool
	syntaxOnly bool
	debug      bool
	version    spirv.Version
	logger     *slog.Logger
}

// New creates a compiler. By default programs are lowered and translated to
// SPIR-V 1.3, IR validation is opt-in.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		emitSPIRV: true,
		version:   DefaultSPIRVVersion,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compile implements model.Compiler.
func (c *Compiler) Compile(stage model.Stage, src model.Source) (model.Program, error) {
	prog, err := c.compile(stage, src)
	if err != nil {
		return nil, err
	}

	return prog, nil
}

func (c *Compiler) compile(stage model.Stage, src model.Source) (*Program, error) {
	attr, ok := stageAttributes[stage]
	if !ok {
		return nil, fail(model.Diagnostic{
			Stage:    stage,
			Severity: model.SeverityError,
			Message:  "stage " + stage.String() + " is not supported by WGSL",
		})
	}

	ast, err := naga.Parse(src.Text)
	if err != nil {
		return nil, fail(parseDiagnostic(stage, err))
	}

	entry, ok := findEntryPoint(ast, attr, src.Entry)
	if !ok {
		msg := "no @" + attr + " entry point"
		if src.Entry != "" {
			msg = "entry point " + strconv.Quote(src.Entry) + " is not a @" + attr + " function"
		}
		return nil, fail(model.Diagnostic{Stage: stage, Severity: model.SeverityError, Message: msg})
	}

	prog := &Program{
		stage:  stage,
		entry:  entry,
		source: src,
		ast:    ast,
		slots:  declaredSlots(ast),
	}

	if c.syntaxOnly {
		return prog, nil
	}

	lowered, err := wgsl.LowerWithWarnings(ast, src.Text)
	if err != nil {
		return nil, fail(lowerDiagnostics(stage, err)...)
	}
	prog.module = lowered.Module
	for _, w := range lowered.Warnings {
		prog.warnings = append(prog.warnings, model.Diagnostic{
			Stage:    stage,
			Line:     w.Span.Start.Line,
			Column:   w.Span.Start.Column,
			Severity: model.SeverityWarning,
			Message:  w.Message,
		})
	}
	sortDiagnostics(prog.warnings)

	if c.validate {
		issues, err := naga.Validate(lowered.Module)
		if err != nil {
			return nil, fail(model.Diagnostic{Stage: stage, Severity: model.SeverityError, Message: err.Error()})
		}
		if len(issues) > 0 {
			return nil, fail(validationDiagnostics(stage, ast, issues)...)
		}
	}

	if c.emitSPIRV {
		words, err := naga.GenerateSPIRV(lowered.Module, spirv.Options{Version: c.version, Debug: c.debug})
		if err != nil {
			return nil, fail(model.Diagnostic{Stage: stage, Severity: model.SeverityError, Message: err.Error()})
		}
		prog.spirv = words
	}

	c.logger.Debug("compiled shader stage",
		"stage", stage.String(), "entry", entry, "slots", len(prog.slots), "warnings", len(prog.warnings))

	return prog, nil
}

func fail(diags ...model.Diagnostic) error {
	sortDiagnostics(diags)

	return &model.CompileError{Diagnostics: diags}
}

func sortDiagnostics(diags []model.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Column < diags[j].Column
	})
}

func parseDiagnostic(stage model.Stage, err error) model.Diagnostic {
	diag := model.Diagnostic{Stage: stage, Severity: model.SeverityError, Message: err.Error()}

	var perr wgsl.ParseError
	if errors.As(err, &perr) {
		diag.Line = perr.Token.Line
		diag.Column = perr.Token.Column
		diag.Message = perr.Message
	}

	return diag
}

func lowerDiagnostics(stage model.Stage, err error) []model.Diagnostic {
	var list wgsl.SourceErrors
	var ptr *wgsl.SourceErrors
	switch {
	case errors.As(err, &ptr) && ptr != nil:
		list = *ptr
	case errors.As(err, &list):
	}
	if len(list) == 0 {
		return []model.Diagnostic{{Stage: stage, Severity: model.SeverityError, Message: err.Error()}}
	}

	diags := make([]model.Diagnostic, 0, len(list))
	for _, se := range list {
		diags = append(diags, model.Diagnostic{
			Stage:    stage,
			Line:     se.Span.Start.Line,
			Column:   se.Span.Start.Column,
			Severity: model.SeverityError,
			Message:  se.Message,
		})
	}

	return diags
}

// validationDiagnostics places each issue on the line of the function it was
// found in, validation errors carry no source position of their own.
func validationDiagnostics(stage model.Stage, ast *wgsl.Module, issues []ir.ValidationError) []model.Diagnostic {
	lines := make(map[string]int, len(ast.Functions))
	for _, fn := range ast.Functions {
		lines[fn.Name] = fn.Span.Start.Line
	}

	diags := make([]model.Diagnostic, 0, len(issues))
	for _, issue := range issues {
		diags = append(diags, model.Diagnostic{
			Stage:    stage,
			Line:     lines[issue.Function],
			Severity: model.SeverityError,
			Message:  issue.Error(),
		})
	}

	return diags
}

func findEntryPoint(ast *wgsl.Module, attr, name string) (string, bool) {
	for _, fn := range ast.Functions {
		if name != "" && fn.Name != name {
			continue
		}
		for _, a := range fn.Attributes {
			if a.Name == attr {
				return fn.Name, true
			}
		}
	}

	return "", false
}

func declaredSlots(ast *wgsl.Module) []model.Slot {
	var slots []model.Slot
	for _, v := range ast.GlobalVars {
		slot, ok := SlotOf(v.Attributes)
		if ok {
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Group != slots[j].Group {
			return slots[i].Group < slots[j].Group
		}
		return slots[i].Binding < slots[j].Binding
	})

	return slots
}

// SlotOf reads the @group and @binding attributes of a global declaration.
func SlotOf(attrs []wgsl.Attribute) (model.Slot, bool) {
	var slot model.Slot
	var hasGroup, hasBinding bool

	for _, a := range attrs {
		if len(a.Args) != 1 {
			continue
		}
		lit, ok := a.Args[0].(*wgsl.Literal)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(trimIntSuffix(lit.Value), 0, 32)
		if err != nil {
			continue
		}
		switch a.Name {
		case "group":
			slot.Group, hasGroup = uint32(n), true
		case "binding":
			slot.Binding, hasBinding = uint32(n), true
		}
	}

	return slot, hasGroup && hasBinding
}

func trimIntSuffix(s string) string {
	if n := len(s); n > 0 && (s[n-1] == 'u' || s[n-1] == 'i') {
		return s[:n-1]
	}

	return s
}
