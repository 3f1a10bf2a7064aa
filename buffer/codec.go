package buffer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Codec converts elements to and from the 32 bit words devices store.
type Codec[T any] struct {
	Stride int // words per element
	Encode func(dst []uint32, v T)
	Decode func(src []uint32) T
}

// Vec3 stores vectors as three float32 words, the layout of GPU vec3
// arrays.
var Vec3 = Codec[r3.Vec]{
	Stride: 3,
	Encode: func(dst []uint32, v r3.Vec) {
		dst[0] = math.Float32bits(float32(v.X))
		dst[1] = math.Float32bits(float32(v.Y))
		dst[2] = math.Float32bits(float32(v.Z))
	},
	Decode: func(src []uint32) r3.Vec {
		return r3.Vec{
			X: float64(math.Float32frombits(src[0])),
			Y: float64(math.Float32frombits(src[1])),
			Z: float64(math.Float32frombits(src[2])),
		}
	},
}

// Float32 stores float32 values verbatim.
var Float32 = Codec[float32]{
	Stride: 1,
	Encode: func(dst []uint32, v float32) { dst[0] = math.Float32bits(v) },
	Decode: func(src []uint32) float32 { return math.Float32frombits(src[0]) },
}

// Float64 narrows values to float32.
var Float64 = Codec[float64]{
	Stride: 1,
	Encode: func(dst []uint32, v float64) { dst[0] = math.Float32bits(float32(v)) },
	Decode: func(src []uint32) float64 { return float64(math.Float32frombits(src[0])) },
}

// Int32 stores indices bit for bit.
var Int32 = Codec[int32]{
	Stride: 1,
	Encode: func(dst []uint32, v int32) { dst[0] = uint32(v) },
	Decode: func(src []uint32) int32 { return int32(src[0]) },
}
