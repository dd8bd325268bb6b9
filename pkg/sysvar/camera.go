package sysvar

import (
	"github.com/chewxy/math32"
)

// Camera is the active viewpoint. Angles are in radians.
type Camera struct {
	Position [3]float32
	Target   [3]float32
	Up       [3]float32
	FovY     float32
	Near     float32
	Far      float32
}

// DefaultCamera looks at the origin from +Z.
func DefaultCamera() Camera {
	return Camera{
		Position: [3]float32{0, 0, 5},
		Up:       [3]float32{0, 1, 0},
		FovY:     math32.Pi / 4,
		Near:     0.1,
		Far:      100,
	}
}

func (c Camera) isZero() bool {
	return c.FovY == 0 && c.Near == 0 && c.Far == 0
}

// mat4 is a column-major 4x4 matrix.
type mat4 [16]float32

func identity() mat4 {
	return mat4{0: 1, 5: 1, 10: 1, 15: 1}
}

func mul4(a, b mat4) mat4 {
	var out mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+r] * b[c*4+k]
			}
			out[c*4+r] = sum
		}
	}

	return out
}

// perspective maps depth to the [0, 1] clip range used by WebGPU.
func perspective(fovY, aspect, near, far float32) mat4 {
	if aspect == 0 {
		aspect = 1
	}
	f := 1 / math32.Tan(fovY/2)

	out := identity()
	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1
	out[14] = near * far / (near - far)
	out[15] = 0

	return out
}

func normalize3(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 {
		return v
	}

	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

func cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func lookAt(eye, center, up [3]float32) mat4 {
	z := normalize3([3]float32{eye[0] - center[0], eye[1] - center[1], eye[2] - center[2]})
	x := normalize3(cross3(up, z))
	y := cross3(z, x)

	return mat4{
		x[0], y[0], z[0], 0,
		x[1], y[1], z[1], 0,
		x[2], y[2], z[2], 0,
		-dot3(x, eye), -dot3(y, eye), -dot3(z, eye), 1,
	}
}
