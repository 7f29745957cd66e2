package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multibody/spatialmath"
)

// joint is the variant-specific behavior a nodeSpec delegates to. Each
// variant must supply its position kinematics (rPB, obP and the transition
// operator H); everything else has a shared default in jointBase that only
// the quaternion-bearing joints override.
type joint interface {
	name() string
	// dim is the node's state-vector width for the given mobility; a
	// quaternion orientation widens it by one.
	dim(dof int) int

	calcPosKinematics(n *nodeSpec)
	calcVelKinematics(n *nodeSpec)
	// calcAccel finishes joint-internal coordinate second derivatives after
	// the node's generalized acceleration is known.
	calcAccel(n *nodeSpec)
	// setRatesFromJointRates re-derives any internal rate representation
	// after dTheta was written directly (SetVelocityFromSpatial).
	setRatesFromJointRates(n *nodeSpec)

	setPos(n *nodeSpec, posv []float64)
	getPos(n *nodeSpec, posv []float64)
	setVel(n *nodeSpec, velv []float64)
	getVel(n *nodeSpec, velv []float64)
	getAccel(n *nodeSpec, accv []float64)
	getInternalForce(n *nodeSpec, fv []float64) error
	enforceConstraints(n *nodeSpec, posv, velv []float64)
}

// jointBase supplies the behavior shared by the simple joint variants:
// joint coordinates map one-to-one onto the node's state slice, the
// relative velocity is Hᵀ·dTheta, and there are no internal representations
// or constraints to maintain.
type jointBase struct{}

func (jointBase) dim(dof int) int { return dof }

func (jointBase) calcVelKinematics(n *nodeSpec) {
	var v mat.VecDense
	v.MulVec(n.h.T(), n.dTheta)
	n.vPBG = spatialmath.NewMotionVectorFromVec6(&v)
}

func (jointBase) calcAccel(*nodeSpec) {}

func (jointBase) setRatesFromJointRates(*nodeSpec) {}

func (jointBase) setPos(n *nodeSpec, posv []float64) {
	copyIntoVec(n.theta, posv[n.stateOffset:n.stateOffset+n.dof])
}

func (jointBase) getPos(n *nodeSpec, posv []float64) {
	copy(posv[n.stateOffset:n.stateOffset+n.dof], n.theta.RawVector().Data)
}

func (jointBase) setVel(n *nodeSpec, velv []float64) {
	copyIntoVec(n.dTheta, velv[n.stateOffset:n.stateOffset+n.dof])
}

func (jointBase) getVel(n *nodeSpec, velv []float64) {
	copy(velv[n.stateOffset:n.stateOffset+n.dof], n.dTheta.RawVector().Data)
}

func (jointBase) getAccel(n *nodeSpec, accv []float64) {
	copy(accv[n.stateOffset:n.stateOffset+n.dof], n.ddTheta.RawVector().Data)
}

func (jointBase) getInternalForce(n *nodeSpec, fv []float64) error {
	copy(fv[n.stateOffset:n.stateOffset+n.dof], n.forceInternal.RawVector().Data)
	return nil
}

func (jointBase) enforceConstraints(*nodeSpec, []float64, []float64) {}

func copyIntoVec(dst *mat.VecDense, src []float64) {
	copy(dst.RawVector().Data, src)
}

// translateJoint provides three translational degrees of freedom, suitable
// for example for connecting a free point mass to ground. The joint frame
// is aligned with the body frame.
type translateJoint struct{ jointBase }

func (translateJoint) name() string { return "translate" }

func (translateJoint) calcPosKinematics(n *nodeSpec) {
	n.obP = n.refOriginP.Add(spatialmath.Vec3At(n.theta, 0))
	n.rPB = mgl64.Ident3() // translation cannot change orientation

	// H = [0 | R_GPᵀ]; R_GP = R_GB for this joint.
	rGPt := n.parent.rGB.Transpose()
	for i := 0; i < 3; i++ {
		spatialmath.SetRow3(n.h, i, 3, rGPt.Row(i))
	}
}

// pinJoint is a torsion joint: one degree of rotational freedom about the
// joint frame's z axis.
type pinJoint struct{ jointBase }

func (pinJoint) name() string { return "torsion" }

func (pinJoint) calcPosKinematics(n *nodeSpec) {
	n.obP = n.refOriginP // a torsion joint cannot move the body origin

	sinT, cosT := math.Sincos(n.theta.AtVec(0))
	rJiJ := mgl64.Mat3FromRows(
		mgl64.Vec3{cosT, -sinT, 0},
		mgl64.Vec3{sinT, cosT, 0},
		mgl64.Vec3{0, 0, 1},
	)
	// R_PB = R_PJi·R_JiJ·R_JB with R_PJi = R_BJ.
	n.rPB = spatialmath.OrthoTransform(rJiJ, n.rBJ)

	// The joint z axis is the same in body and parent; a single rotational
	// row along it, in ground frame.
	z := n.parent.rGB.Mul3x1(n.rBJ.Mul3x1(mgl64.Vec3{0, 0, 1}))
	spatialmath.SetRow3(n.h, 0, 0, z)
}

// universalJoint allows rotation about the two axes perpendicular to the
// joint frame's z axis, e.g. for torsion plus bond-angle bending.
type universalJoint struct{ jointBase }

func (universalJoint) name() string { return "rotate2" }

func (universalJoint) calcPosKinematics(n *nodeSpec) {
	n.obP = n.refOriginP
	n.rPB = spatialmath.OrthoTransform(
		yxRotation(n.theta.AtVec(0), n.theta.AtVec(1)), n.rBJ)

	x, y := perpendicularAxes(n)
	spatialmath.SetRow3(n.h, 0, 0, x)
	spatialmath.SetRow3(n.h, 1, 0, y)
}

// diatomJoint is the equivalent of a free joint for a body with no inertia
// about one axis, such as a two-point body: unrestricted translation plus
// rotation about the two directions perpendicular to the inertialess axis.
type diatomJoint struct{ jointBase }

func (diatomJoint) name() string { return "diatom" }

func (diatomJoint) calcPosKinematics(n *nodeSpec) {
	n.obP = n.refOriginP.Add(spatialmath.Vec3At(n.theta, 2))
	n.rPB = spatialmath.OrthoTransform(
		yxRotation(n.theta.AtVec(0), n.theta.AtVec(1)), n.rBJ)

	x, y := perpendicularAxes(n)
	spatialmath.SetRow3(n.h, 0, 0, x)
	spatialmath.SetRow3(n.h, 1, 0, y)
	rGPt := n.parent.rGB.Transpose()
	for i := 0; i < 3; i++ {
		spatialmath.SetRow3(n.h, 2+i, 3, rGPt.Row(i))
	}
}

// ballJoint provides unrestricted orientation: three degrees of rotational
// freedom carried by a ballOrientation, in either the Euler-angle or the
// quaternion representation. The joint frame is aligned with the body frame.
type ballJoint struct {
	jointBase
	orientation ballOrientation
}

func (ballJoint) name() string { return "rotate3" }

func (j ballJoint) dim(int) int { return j.orientation.dim() }

func (j ballJoint) calcPosKinematics(n *nodeSpec) {
	n.obP = n.refOriginP
	n.rPB = j.orientation.rotation(spatialmath.Vec3At(n.theta, 0))

	// H = [R_GPᵀ | 0].
	rGPt := n.parent.rGB.Transpose()
	for i := 0; i < 3; i++ {
		spatialmath.SetRow3(n.h, i, 0, rGPt.Row(i))
	}
}

func (j ballJoint) calcAccel(n *nodeSpec) {
	j.orientation.calcAccel(spatialmath.Vec3At(n.dTheta, 0), spatialmath.Vec3At(n.ddTheta, 0))
}

func (j ballJoint) setRatesFromJointRates(n *nodeSpec) {
	j.orientation.setRates(spatialmath.Vec3At(n.dTheta, 0))
}

func (j ballJoint) setPos(n *nodeSpec, posv []float64) {
	var th mgl64.Vec3
	j.orientation.setPos(n.stateOffset, posv, &th)
	if j.orientation.usesAngles() {
		spatialmath.SetVec3(n.theta, 0, th)
	}
}

func (j ballJoint) getPos(n *nodeSpec, posv []float64) {
	j.orientation.getPos(spatialmath.Vec3At(n.theta, 0), n.stateOffset, posv)
}

func (j ballJoint) setVel(n *nodeSpec, velv []float64) {
	var dth mgl64.Vec3
	j.orientation.setVel(n.stateOffset, velv, &dth)
	spatialmath.SetVec3(n.dTheta, 0, dth)
}

func (j ballJoint) getVel(n *nodeSpec, velv []float64) {
	j.orientation.getVel(spatialmath.Vec3At(n.dTheta, 0), n.stateOffset, velv)
}

func (j ballJoint) getAccel(n *nodeSpec, accv []float64) {
	j.orientation.getAccel(spatialmath.Vec3At(n.ddTheta, 0), n.stateOffset, accv)
}

func (j ballJoint) getInternalForce(n *nodeSpec, fv []float64) error {
	return j.orientation.internalForce(spatialmath.Vec3At(n.forceInternal, 0), n.stateOffset, fv)
}

func (j ballJoint) enforceConstraints(n *nodeSpec, posv, velv []float64) {
	j.orientation.enforceConstraints(n.stateOffset, posv, velv)
}

// freeJoint provides all six degrees of freedom for a free rigid body:
// a ballOrientation plus three translational coordinates. The joint frame
// is aligned with the body frame.
type freeJoint struct {
	jointBase
	orientation ballOrientation
}

func (freeJoint) name() string { return "full" }

func (j freeJoint) dim(int) int { return j.orientation.dim() + 3 }

func (j freeJoint) calcPosKinematics(n *nodeSpec) {
	n.obP = n.refOriginP.Add(spatialmath.Vec3At(n.theta, 3))
	n.rPB = j.orientation.rotation(spatialmath.Vec3At(n.theta, 0))

	// H = diag(R_GPᵀ, R_GPᵀ).
	rGPt := n.parent.rGB.Transpose()
	for i := 0; i < 3; i++ {
		spatialmath.SetRow3(n.h, i, 0, rGPt.Row(i))
		spatialmath.SetRow3(n.h, 3+i, 3, rGPt.Row(i))
	}
}

func (j freeJoint) calcAccel(n *nodeSpec) {
	// Angular velocity and acceleration live in the first three slots.
	j.orientation.calcAccel(spatialmath.Vec3At(n.dTheta, 0), spatialmath.Vec3At(n.ddTheta, 0))
}

func (j freeJoint) setRatesFromJointRates(n *nodeSpec) {
	j.orientation.setRates(spatialmath.Vec3At(n.dTheta, 0))
}

func (j freeJoint) setPos(n *nodeSpec, posv []float64) {
	var th mgl64.Vec3
	j.orientation.setPos(n.stateOffset, posv, &th)
	if j.orientation.usesAngles() {
		spatialmath.SetVec3(n.theta, 0, th)
	}
	transOffset := n.stateOffset + j.orientation.dim()
	spatialmath.SetVec3(n.theta, 3,
		mgl64.Vec3{posv[transOffset], posv[transOffset+1], posv[transOffset+2]})
}

func (j freeJoint) getPos(n *nodeSpec, posv []float64) {
	j.orientation.getPos(spatialmath.Vec3At(n.theta, 0), n.stateOffset, posv)
	transOffset := n.stateOffset + j.orientation.dim()
	copy(posv[transOffset:transOffset+3], n.theta.RawVector().Data[3:6])
}

func (j freeJoint) setVel(n *nodeSpec, velv []float64) {
	var dth mgl64.Vec3
	j.orientation.setVel(n.stateOffset, velv, &dth)
	spatialmath.SetVec3(n.dTheta, 0, dth)
	transOffset := n.stateOffset + j.orientation.dim()
	spatialmath.SetVec3(n.dTheta, 3,
		mgl64.Vec3{velv[transOffset], velv[transOffset+1], velv[transOffset+2]})
}

func (j freeJoint) getVel(n *nodeSpec, velv []float64) {
	j.orientation.getVel(spatialmath.Vec3At(n.dTheta, 0), n.stateOffset, velv)
	transOffset := n.stateOffset + j.orientation.dim()
	copy(velv[transOffset:transOffset+3], n.dTheta.RawVector().Data[3:6])
}

func (j freeJoint) getAccel(n *nodeSpec, accv []float64) {
	j.orientation.getAccel(spatialmath.Vec3At(n.ddTheta, 0), n.stateOffset, accv)
	transOffset := n.stateOffset + j.orientation.dim()
	copy(accv[transOffset:transOffset+3], n.ddTheta.RawVector().Data[3:6])
}

func (j freeJoint) getInternalForce(n *nodeSpec, fv []float64) error {
	if err := j.orientation.internalForce(spatialmath.Vec3At(n.forceInternal, 0), n.stateOffset, fv); err != nil {
		return err
	}
	transOffset := n.stateOffset + j.orientation.dim()
	copy(fv[transOffset:transOffset+3], n.forceInternal.RawVector().Data[3:6])
	return nil
}

func (j freeJoint) enforceConstraints(n *nodeSpec, posv, velv []float64) {
	j.orientation.enforceConstraints(n.stateOffset, posv, velv)
}

// yxRotation is the parent-fixed 1-2-3 rotation sequence with the third
/// rotation zero: Ry(psi)·Rx(phi). The composition order is a documented
// convention and defines the meaning of the two stored angles.
func yxRotation(phi, psi float64) mgl64.Mat3 {
	sinPhi, cosPhi := math.Sincos(phi)
	sinPsi, cosPsi := math.Sincos(psi)
	return mgl64.Mat3FromRows(
		mgl64.Vec3{cosPsi, sinPsi * sinPhi, sinPsi * cosPhi},
		mgl64.Vec3{0, cosPhi, -sinPhi},
		mgl64.Vec3{-sinPsi, cosPsi * sinPhi, cosPsi * cosPhi},
	)
}

// perpendicularAxes returns the joint frame x and y axes in ground frame
// for the current (not yet committed) configuration of n.
func perpendicularAxes(n *nodeSpec) (mgl64.Vec3, mgl64.Vec3) {
	rGB := n.parent.rGB.Mul3(n.rPB)
	x := rGB.Mul3x1(n.rBJ.Mul3x1(mgl64.Vec3{1, 0, 0}))
	y := rGB.Mul3x1(n.rBJ.Mul3x1(mgl64.Vec3{0, 1, 0}))
	return x, y
}
