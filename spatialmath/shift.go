package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// ShiftMatrix is the φ operator relating spatial quantities measured about a
// parent body origin to those measured about a child origin offset by l
// (ground frame):
//
//	φ = | I  l× |
//	    | 0  I  |
//
// Force quantities shift child-to-parent by φ, motion quantities
// parent-to-child by φᵀ. Both products are applied in closed form rather
// than by building the full matrix.
type ShiftMatrix struct {
	l mgl64.Vec3
}

// NewShiftMatrix builds the shift operator for a parent-to-child origin
// offset expressed in ground frame.
func NewShiftMatrix(offset mgl64.Vec3) ShiftMatrix {
	return ShiftMatrix{l: offset}
}

// Offset returns the parent-to-child origin offset the operator was built from.
func (s ShiftMatrix) Offset() mgl64.Vec3 {
	return s.l
}

// MulForce returns φ·f, the child force quantity re-expressed about the
// parent origin.
func (s ShiftMatrix) MulForce(f ForceVector) ForceVector {
	return ForceVector{
		Moment: f.Moment.Add(s.l.Cross(f.Force)),
		Force:  f.Force,
	}
}

// TransposeMulMotion returns φᵀ·v, the parent motion quantity re-expressed
// about the child origin.
func (s ShiftMatrix) TransposeMulMotion(v MotionVector) MotionVector {
	return MotionVector{
		Angular: v.Angular,
		Linear:  v.Linear.Sub(s.l.Cross(v.Angular)),
	}
}

// TransposeDense returns φᵀ as a 6x6 dense matrix for use in matrix products.
func (s ShiftMatrix) TransposeDense() *mat.Dense {
	ident := mgl64.Ident3()
	return BlockMat22(ident, mgl64.Mat3{}, CrossMat(s.l).Transpose(), ident)
}
