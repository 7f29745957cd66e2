// Package spatialmath implements the small fixed-size spatial algebra used by
// the articulated-body dynamics recursion: six-component motion and force
// quantities, cross-product matrices, 3x3-blocked 6x6 operators, and the
// parent-to-child shift operator.
package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// MotionVector is a spatial motion quantity (velocity or acceleration):
// angular part on top, linear part on the bottom, expressed in ground frame.
type MotionVector struct {
	Angular mgl64.Vec3
	Linear  mgl64.Vec3
}

// ForceVector is a spatial force quantity: moment on top, force on the bottom.
type ForceVector struct {
	Moment mgl64.Vec3
	Force  mgl64.Vec3
}

// Add returns the sum of two motion vectors.
func (m MotionVector) Add(other MotionVector) MotionVector {
	return MotionVector{m.Angular.Add(other.Angular), m.Linear.Add(other.Linear)}
}

// Sub returns the difference of two motion vectors.
func (m MotionVector) Sub(other MotionVector) MotionVector {
	return MotionVector{m.Angular.Sub(other.Angular), m.Linear.Sub(other.Linear)}
}

// Dot returns the spatial inner product of a motion and a force quantity.
func (m MotionVector) Dot(f ForceVector) float64 {
	return m.Angular.Dot(f.Moment) + m.Linear.Dot(f.Force)
}

// Vec6 returns the motion vector as a dense 6-vector, angular part first.
func (m MotionVector) Vec6() *mat.VecDense {
	return mat.NewVecDense(6, []float64{
		m.Angular.X(), m.Angular.Y(), m.Angular.Z(),
		m.Linear.X(), m.Linear.Y(), m.Linear.Z(),
	})
}

// NewMotionVectorFromVec6 splits a dense 6-vector into angular and linear parts.
func NewMotionVectorFromVec6(v mat.Vector) MotionVector {
	return MotionVector{
		Angular: mgl64.Vec3{v.AtVec(0), v.AtVec(1), v.AtVec(2)},
		Linear:  mgl64.Vec3{v.AtVec(3), v.AtVec(4), v.AtVec(5)},
	}
}

// Add returns the sum of two force vectors.
func (f ForceVector) Add(other ForceVector) ForceVector {
	return ForceVector{f.Moment.Add(other.Moment), f.Force.Add(other.Force)}
}

// Sub returns the difference of two force vectors.
func (f ForceVector) Sub(other ForceVector) ForceVector {
	return ForceVector{f.Moment.Sub(other.Moment), f.Force.Sub(other.Force)}
}

// Vec6 returns the force vector as a dense 6-vector, moment part first.
func (f ForceVector) Vec6() *mat.VecDense {
	return mat.NewVecDense(6, []float64{
		f.Moment.X(), f.Moment.Y(), f.Moment.Z(),
		f.Force.X(), f.Force.Y(), f.Force.Z(),
	})
}

// NewForceVectorFromVec6 splits a dense 6-vector into moment and force parts.
func NewForceVectorFromVec6(v mat.Vector) ForceVector {
	return ForceVector{
		Moment: mgl64.Vec3{v.AtVec(0), v.AtVec(1), v.AtVec(2)},
		Force:  mgl64.Vec3{v.AtVec(3), v.AtVec(4), v.AtVec(5)},
	}
}

// Vec3At reads elements i..i+2 of a dense vector as an mgl64 3-vector.
func Vec3At(v mat.Vector, i int) mgl64.Vec3 {
	return mgl64.Vec3{v.AtVec(i), v.AtVec(i + 1), v.AtVec(i + 2)}
}

// SetVec3 writes a 3-vector into elements i..i+2 of a dense vector.
func SetVec3(v *mat.VecDense, i int, w mgl64.Vec3) {
	v.SetVec(i, w.X())
	v.SetVec(i+1, w.Y())
	v.SetVec(i+2, w.Z())
}
