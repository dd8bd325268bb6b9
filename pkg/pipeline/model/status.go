package model

// BuildState is the compile state of an item.
type BuildState uint8

const (
	Unbuilt BuildState = iota
	Compiling
	Valid
	Failed
)

func (s BuildState) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Compiling:
		return "compiling"
	case Valid:
		return "valid"
	case Failed:
		return "compile error"
	default:
		return "unknown"
	}
}

// Status is the build status of an item. Diagnostics are set when State is
// Failed, and may hold warnings when State is Valid.
type Status struct {
	State       BuildState
	Diagnostics []Diagnostic
}

// RenderState is the fixed-function state of an item.
type RenderState struct {
	Topology      string    `yaml:"topology,omitempty"`
	VertexCount   uint32    `yaml:"vertex_count,omitempty"`
	InstanceCount uint32    `yaml:"instance_count,omitempty"`
	Workgroups    [3]uint32 `yaml:"workgroups,omitempty,flow"`
	CullMode      string    `yaml:"cull_mode,omitempty"`
	DepthTest     bool      `yaml:"depth_test,omitempty"`
	Blend         bool      `yaml:"blend,omitempty"`
}
