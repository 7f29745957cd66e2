package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Frame is a reference frame fixed on a body: a rotation taking frame
// coordinates into body coordinates, and the frame origin measured in the
// body frame. Joints are described by the frame their axes are aligned with.
type Frame struct {
	Rotation mgl64.Mat3
	Location r3.Vector
}

// NewZeroFrame returns a frame coincident with the body frame.
func NewZeroFrame() Frame {
	return Frame{Rotation: mgl64.Ident3()}
}

// NewFrameFromZAxis builds a frame whose z axis is aligned with the given
// direction. The rotation about that axis is arbitrary but deterministic.
func NewFrameFromZAxis(zVec r3.Vector) Frame {
	zDir := R3ToVec3(zVec.Normalize())

	// Spherical coordinates of the target direction.
	theta := math.Acos(zDir.Z())             // zenith (90-elevation)
	psi := math.Atan2(zDir.X(), zDir.Y())    // 90-azimuth
	sinT, cosT := math.Sincos(theta)
	sinP, cosP := math.Sincos(psi)

	// Space-fixed 1-2-3 sequence with angles (-theta, 0, -psi): rotate by
	// -theta about the body x axis, then -psi about the body z axis.
	rot := mgl64.Mat3FromRows(
		mgl64.Vec3{cosP, cosT * sinP, sinP * sinT},
		mgl64.Vec3{-sinP, cosT * cosP, cosP * sinT},
		mgl64.Vec3{0, -sinT, cosT},
	)
	return Frame{Rotation: rot}
}

// R3ToVec3 converts an r3.Vector to its mgl64 equivalent.
func R3ToVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// Vec3ToR3 converts an mgl64 3-vector to an r3.Vector.
func Vec3ToR3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v.X(), Y: v.Y(), Z: v.Z()}
}
