package debug

import (
	"fmt"

	"github.com/askiada/go-shaderpipe/internal/interp"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Locus is the invocation a session targets: a Pixel, a Vertex or a compute
// Invocation.
type Locus interface {
	// Stage is the shader stage that runs the invocation.
	Stage() model.Stage
	String() string
	inputs() interp.Inputs
}

// Pixel targets the fragment invocation covering pixel (X, Y). Varyings are
// the interpolated stage inputs keyed by @location.
type Pixel struct {
	X, Y     int
	Varyings map[int]value.Value
}

func (Pixel) Stage() model.Stage { return model.StagePixel }

func (p Pixel) String() string { return fmt.Sprintf("pixel(%d, %d)", p.X, p.Y) }

func (p Pixel) inputs() interp.Inputs {
	return interp.Inputs{
		Builtins: map[string]value.Value{
			"position":     value.Vec4(float32(p.X)+0.5, float32(p.Y)+0.5, 0, 1),
			"sample_index": value.NewU32(0),
		},
		Locations: p.Varyings,
	}
}

// Vertex targets the vertex shader invocation of one vertex of one instance.
type Vertex struct {
	Index      uint32
	Instance   uint32
	Attributes map[int]value.Value
}

func (Vertex) Stage() model.Stage { return model.StageVertex }

func (v Vertex) String() string { return fmt.Sprintf("vertex(%d, instance %d)", v.Index, v.Instance) }

func (v Vertex) inputs() interp.Inputs {
	return interp.Inputs{
		Builtins: map[string]value.Value{
			"vertex_index":   value.NewU32(v.Index),
			"instance_index": value.NewU32(v.Instance),
		},
		Locations: v.Attributes,
	}
}

// Invocation targets one compute invocation by global id. WorkgroupSize is
// used to derive the local and workgroup ids, a zero size counts as 1.
type Invocation struct {
	X, Y, Z       uint32
	WorkgroupSize [3]uint32
}

func (Invocation) Stage() model.Stage { return model.StageCompute }

func (c Invocation) String() string { return fmt.Sprintf("invocation(%d, %d, %d)", c.X, c.Y, c.Z) }

func (c Invocation) inputs() interp.Inputs {
	size := c.WorkgroupSize
	for i := range size {
		if size[i] == 0 {
			size[i] = 1
		}
	}
	global := [3]uint32{c.X, c.Y, c.Z}
	var local, group [3]float64
	for i := range global {
		local[i] = float64(global[i] % size[i])
		group[i] = float64(global[i] / size[i])
	}

	flat := uint32(local[0]) + uint32(local[1])*size[0] + uint32(local[2])*size[0]*size[1]

	return interp.Inputs{
		Builtins: map[string]value.Value{
			"global_invocation_id":   value.NewVector(value.U32, float64(c.X), float64(c.Y), float64(c.Z)),
			"local_invocation_id":    value.NewVector(value.U32, local[0], local[1], local[2]),
			"workgroup_id":           value.NewVector(value.U32, group[0], group[1], group[2]),
			"local_invocation_index": value.NewU32(flat),
		},
	}
}
