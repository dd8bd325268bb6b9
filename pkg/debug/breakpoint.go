package debug

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

// Breakpoint pauses execution when the invocation reaches Line of File in
// Stage. An empty File matches the source of any item.
type Breakpoint struct {
	File  string      `json:"file" yaml:"file"`
	Line  int         `json:"line" yaml:"line"`
	Stage model.Stage `json:"stage" yaml:"stage"`
	// Disabled breakpoints stay in the list but never pause.
	Disabled bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	// Condition is a WGSL expression evaluated in the innermost frame. The
	// breakpoint only pauses when it is true.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

type breakpointKey struct {
	file  string
	line  int
	stage model.Stage
}

func (b Breakpoint) key() breakpointKey {
	return breakpointKey{file: b.File, line: b.Line, stage: b.Stage}
}

func (b Breakpoint) String() string {
	return fmt.Sprintf("%s:%d (%s)", b.File, b.Line, b.Stage)
}

func (b Breakpoint) validate() error {
	if b.Line <= 0 {
		return errors.Wrapf(ErrInvalidBreakpoint, "line %d", b.Line)
	}
	if b.Stage.String() == "unknown" {
		return errors.Wrapf(ErrInvalidBreakpoint, "stage %d", b.Stage)
	}

	return nil
}

func (b Breakpoint) matches(file string, stage model.Stage, line int) bool {
	return !b.Disabled && b.Line == line && b.Stage == stage && (b.File == "" || b.File == file)
}

// breakpoints is a set unique per (file, line, stage), ordered by file then line.
type breakpoints struct {
	list []Breakpoint
}

func (s *breakpoints) set(b Breakpoint) {
	for i, cur := range s.list {
		if cur.key() == b.key() {
			s.list[i] = b
			return
		}
	}
	s.list = append(s.list, b)
	sort.SliceStable(s.list, func(i, j int) bool {
		if s.list[i].File != s.list[j].File {
			return s.list[i].File < s.list[j].File
		}
		if s.list[i].Line != s.list[j].Line {
			return s.list[i].Line < s.list[j].Line
		}
		return s.list[i].Stage < s.list[j].Stage
	})
}

func (s *breakpoints) clear(b Breakpoint) bool {
	for i, cur := range s.list {
		if cur.key() == b.key() {
			s.list = append(s.list[:i], s.list[i+1:]...)
			return true
		}
	}

	return false
}

func (s *breakpoints) all() []Breakpoint {
	return append([]Breakpoint(nil), s.list...)
}
