package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// PassID identifies a pass. IDs are never reused within a pipeline.
type PassID uint64

// ItemID identifies an item. IDs are never reused within a pipeline.
type ItemID uint64

func (id PassID) String() string { return fmt.Sprintf("pass-%d", uint64(id)) }

func (id ItemID) String() string { return fmt.Sprintf("item-%d", uint64(id)) }

// Slot is a resource binding slot, @group(Group) @binding(Binding).
type Slot struct {
	Group   uint32 `yaml:"group" json:"group"`
	Binding uint32 `yaml:"binding" json:"binding"`
}

func (s Slot) String() string {
	return fmt.Sprintf("@group(%d) @binding(%d)", s.Group, s.Binding)
}

// Stage is a programmable shader stage.
type Stage uint8

const (
	StageVertex Stage = iota + 1
	StagePixel
	StageGeometry
	StageCompute
	StageTessControl
	StageTessEvaluation
)

var ErrUnknownName = errors.New("unknown name")

var stageNames = map[Stage]string{
	StageVertex:         "vertex",
	StagePixel:          "pixel",
	StageGeometry:       "geometry",
	StageCompute:        "compute",
	StageTessControl:    "tess_control",
	StageTessEvaluation: "tess_evaluation",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}

	return "unknown"
}

// ParseStage returns the stage named name.
func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(name)
	if name == "fragment" {
		return StagePixel, nil
	}
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}

	return 0, errors.Wrapf(ErrUnknownName, "stage %q", name)
}

// MarshalText encodes the stage by name. The zero stage encodes as an empty string.
func (s Stage) MarshalText() ([]byte, error) {
	if s == 0 {
		return []byte{}, nil
	}
	if _, ok := stageNames[s]; !ok {
		return nil, errors.Wrapf(ErrUnknownName, "stage %d", uint8(s))
	}

	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = 0
		return nil
	}
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage

	return nil
}

// ItemKind is the category of GPU work an item issues.
type ItemKind uint8

const (
	KindGeometry ItemKind = iota + 1
	KindCompute
	KindPlugin
)

var kindNames = map[ItemKind]string{
	KindGeometry: "geometry",
	KindCompute:  "compute",
	KindPlugin:   "plugin",
}

func (k ItemKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// ParseItemKind returns the kind named name.
func ParseItemKind(name string) (ItemKind, error) {
	for k, n := range kindNames {
		if n == strings.ToLower(name) {
			return k, nil
		}
	}

	return 0, errors.Wrapf(ErrUnknownName, "item kind %q", name)
}

func (k ItemKind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, errors.Wrapf(ErrUnknownName, "item kind %d", uint8(k))
	}

	return []byte(k.String()), nil
}

func (k *ItemKind) UnmarshalText(text []byte) error {
	kind, err := ParseItemKind(string(text))
	if err != nil {
		return err
	}
	*k = kind

	return nil
}

// RequiredStages lists the stages an item of kind k must provide.
func (k ItemKind) RequiredStages() []Stage {
	switch k {
	case KindGeometry:
		return []Stage{StageVertex, StagePixel}
	case KindCompute:
		return []Stage{StageCompute}
	default:
		return nil
	}
}
