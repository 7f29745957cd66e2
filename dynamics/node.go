// Package dynamics computes the equations of motion of an articulated
// mechanism, a tree of rigid bodies connected by joints, with a recursive
// spatial-algebra algorithm that is linear in the number of bodies.
//
// Most methods here expect to be called in a particular order during
// traversal of the tree, either base to tip or tip to base; the Tree type
// drives the traversals in the required order.
package dynamics

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multibody/spatialmath"
)

// MassProperties are the constant mass properties of a body, expressed in
// the body frame: total mass, center of mass station, and the inertia
// matrix taken about the body origin.
type MassProperties struct {
	Mass         float64
	CenterOfMass r3.Vector
	Inertia      mgl64.Mat3
}

// Node is one body of the multibody tree together with its inboard joint.
// Setters take the full system state vector and read only this node's own
// slice of it; the caller is responsible for visiting nodes in traversal
// order (see Tree).
type Node interface {
	// Type names the joint variant connecting this body to its parent.
	Type() string
	// Level is the depth of the node in the tree; ground is level 0.
	Level() int
	// DOF is the joint's mobility.
	DOF() int
	// Dim is the width of the node's slice of the state vectors. It exceeds
	// DOF when a quaternion orientation is in use.
	Dim() int
	// StateOffset is the start of the node's slice of the state vectors.
	StateOffset() int

	// SetPosition reads the node's joint coordinates out of the full system
	// position vector and recomputes all position kinematics for this node.
	// The parent's position kinematics must already be current.
	SetPosition(posv []float64)
	// SetVelocity reads the node's joint rates out of the full system
	// velocity vector and recomputes all velocity kinematics for this node.
	// Position kinematics for this node, and velocity kinematics for the
	// parent, must already be current.
	SetVelocity(velv []float64)
	// SetVelocityFromSpatial backs joint rates out of a prescribed spatial
	// velocity of the body. It does not rerun velocity kinematics.
	SetVelocityFromSpatial(sVel spatialmath.MotionVector)
	// EnforceConstraints applies any representation-specific projection
	// (quaternion renormalization) to the full system state vectors.
	EnforceConstraints(posv, velv []float64)

	// GetPosition writes the node's joint coordinates into its slice of the
	// full system position vector; likewise the other getters.
	GetPosition(posv []float64)
	GetVelocity(velv []float64)
	GetAcceleration(accv []float64)
	// GetInternalForce writes the accumulated joint-space internal force.
	// It errs for a quaternion-mode ball or free joint, whose torque
	// conversion is defined only for the Euler-angle representation.
	GetInternalForce(fv []float64) error

	// CalcArticulatedInertia folds the children's articulated inertias into
	// this node's and factors out the joint-direction coupling. Tip to base;
	// the only phase with an error path (singular joint-projected inertia).
	CalcArticulatedInertia() error
	// CalcBiasForce accumulates the velocity-dependent bias force plus the
	// applied spatial force and solves the joint-space residual. Tip to base.
	CalcBiasForce(applied spatialmath.ForceVector)
	// CalcCompliance accumulates the operator used for constraint and
	// compliance queries. Base to tip; independent of the bias/accel chain.
	CalcCompliance()
	// CalcAccel solves this node's generalized and spatial accelerations
	// from the parent's spatial acceleration. Base to tip.
	CalcAccel()
	// CalcInternalForce projects the accumulated spatial force distribution
	// into joint space. Tip to base, independent of the bias/accel chain.
	CalcInternalForce(applied spatialmath.ForceVector)

	// KineticEnergy returns the body's kinetic energy from its current
	// spatial velocity and spatial mass matrix.
	KineticEnergy() float64

	// Orientation, Origin and CenterOfMass report the body's ground-frame
	// configuration; SpatialVelocity and SpatialAcceleration its ground-frame
	// motion. These are the reporter-facing queries.
	Orientation() mgl64.Mat3
	Origin() r3.Vector
	CenterOfMass() r3.Vector
	SpatialVelocity() spatialmath.MotionVector
	SpatialAcceleration() spatialmath.MotionVector

	// Dump renders the node's spatial and joint-space state for diagnostics.
	Dump() string

	body() *rigidBody
}

// rigidBody carries the per-body state every joint variant shares. All of
// its transient fields are recomputed by the traversal passes; only the mass
// properties and joint frame are fixed at construction.
type rigidBody struct {
	level    int
	parent   *rigidBody
	children []*rigidBody

	// Mass properties in the body frame, immutable after construction.
	mass     float64
	comB     mgl64.Vec3
	inertiaB mgl64.Mat3

	rBJ        mgl64.Mat3 // rotation of the inboard joint frame in body
	refOriginP mgl64.Vec3 // body origin in parent at the reference configuration

	// Configuration, recomputed every position pass.
	rPB         mgl64.Mat3 // orientation of body in parent (joint kinematics)
	obP         mgl64.Vec3 // body origin in parent (joint kinematics)
	rGB         mgl64.Mat3 // orientation of body in ground
	obG         mgl64.Vec3 // body origin in ground
	comStationG mgl64.Vec3 // vector from body origin to COM, ground frame
	comG        mgl64.Vec3 // COM location in ground
	inertiaG    mgl64.Mat3 // inertia about body origin, ground frame
	phi         spatialmath.ShiftMatrix
	mk          *mat.Dense // 6x6 spatial mass matrix about the body origin

	// Velocity-dependent quantities, recomputed every velocity pass.
	vPBG spatialmath.MotionVector // velocity of body in parent, ground frame
	sVel spatialmath.MotionVector // spatial velocity
	gyro spatialmath.ForceVector  // gyroscopic bias force
	cor  spatialmath.MotionVector // coriolis acceleration term

	// Dynamics-recursion quantities, recomputed every solve.
	artP *mat.Dense               // articulated-body inertia
	tau  *mat.Dense               // null-space projector I - G·H
	psiT *mat.Dense               // tauᵀ·φᵀ, used by the compliance pass
	z    spatialmath.ForceVector  // bias force
	gEps spatialmath.ForceVector  // coupling-weighted residual, read by parent
	y    *mat.Dense               // compliance operator
	sAcc spatialmath.MotionVector // spatial acceleration
}

func newRigidBody(m MassProperties, jointFrame spatialmath.Frame) rigidBody {
	return rigidBody{
		mass:     m.Mass,
		comB:     spatialmath.R3ToVec3(m.CenterOfMass),
		inertiaB: m.Inertia,
		rBJ:      jointFrame.Rotation,
		rPB:      mgl64.Ident3(),
		rGB:      mgl64.Ident3(),
		mk:       mat.NewDense(6, 6, nil),
		artP:     mat.NewDense(6, 6, nil),
		tau:      mat.NewDense(6, 6, nil),
		psiT:     mat.NewDense(6, 6, nil),
		y:        mat.NewDense(6, 6, nil),
	}
}

// addChild attaches a child at the given station in this body's frame,
// seeding the child's ground-frame configuration from this body's current
// one. Model construction only; no pass may have run yet for the child.
func (b *rigidBody) addChild(child *rigidBody, attach r3.Vector) {
	b.children = append(b.children, child)
	child.parent = b
	child.level = b.level + 1
	child.refOriginP = spatialmath.R3ToVec3(attach)
	child.rGB = b.rGB
	child.obG = b.obG.Add(child.refOriginP)
	child.comG = child.obG.Add(child.comStationG)
}

// calcJointIndependentKinematicsPos finishes the position pass for this node
// after the joint-specific kinematics have set rPB and obP. Requires the
// parent's position pass to be complete.
func (b *rigidBody) calcJointIndependentKinematicsPos() {
	// Re-express the parent-to-child shift vector in the ground frame; the
	// shift operator moves spatial quantities between the two origins.
	obOpG := b.parent.rGB.Mul3x1(b.obP)
	b.phi = spatialmath.NewShiftMatrix(obOpG)

	b.rGB = b.parent.rGB.Mul3(b.rPB)
	b.obG = b.parent.obG.Add(obOpG)

	b.inertiaG = spatialmath.OrthoTransform(b.inertiaB, b.rGB)
	b.comStationG = b.rGB.Mul3x1(b.comB)
	b.comG = b.obG.Add(b.comStationG)

	// Spatial mass matrix about the body origin. The off-diagonal block is
	// skew symmetric, so its transpose is its negation.
	offDiag := spatialmath.CrossMat(b.comStationG).Mul(b.mass)
	b.mk = spatialmath.BlockMat22(
		b.inertiaG, offDiag,
		offDiag.Mul(-1), mgl64.Ident3().Mul(b.mass),
	)
}

// calcJointIndependentKinematicsVel finishes the velocity pass for this node
// after the joint-specific kinematics have set vPBG. Requires the parent's
// velocity pass to be complete.
func (b *rigidBody) calcJointIndependentKinematicsVel() {
	b.sVel = b.phi.TransposeMulMotion(b.parent.sVel).Add(b.vPBG)

	omega := b.sVel.Angular
	gMoment := omega.Cross(b.inertiaG.Mul3x1(omega))
	gForce := omega.Cross(omega.Cross(b.comStationG)).Mul(b.mass)
	b.gyro = spatialmath.ForceVector{Moment: gMoment, Force: gForce}

	pOmega := b.parent.sVel.Angular
	b.cor = spatialmath.MotionVector{
		Angular: pOmega.Cross(b.vPBG.Angular),
		Linear: pOmega.Cross(b.vPBG.Linear).
			Add(pOmega.Cross(b.sVel.Linear.Sub(b.parent.sVel.Linear))),
	}
}

func (b *rigidBody) kineticEnergy() float64 {
	sv := b.sVel.Vec6()
	var msv mat.VecDense
	msv.MulVec(b.mk, sv)
	return 0.5 * mat.Dot(sv, &msv)
}

func (b *rigidBody) body() *rigidBody { return b }

func (b *rigidBody) Level() int { return b.level }

func (b *rigidBody) Orientation() mgl64.Mat3 { return b.rGB }

func (b *rigidBody) Origin() r3.Vector { return spatialmath.Vec3ToR3(b.obG) }

func (b *rigidBody) CenterOfMass() r3.Vector { return spatialmath.Vec3ToR3(b.comG) }

func (b *rigidBody) SpatialVelocity() spatialmath.MotionVector { return b.sVel }

func (b *rigidBody) SpatialAcceleration() spatialmath.MotionVector { return b.sAcc }

// groundNode is the distinguished immobile body representing the ground
// frame. Other bodies may be fixed to it, but only this is the actual
// ground: it has no degrees of freedom and every mutating operation on it
// is a complete no-op.
type groundNode struct {
	rigidBody
}

func newGroundNode() *groundNode {
	return &groundNode{newRigidBody(MassProperties{Inertia: mgl64.Ident3()}, spatialmath.NewZeroFrame())}
}

func (g *groundNode) Type() string { return "ground" }

func (g *groundNode) DOF() int { return 0 }

func (g *groundNode) Dim() int { return 0 }

func (g *groundNode) StateOffset() int { return 0 }

func (g *groundNode) SetPosition([]float64) {}

func (g *groundNode) SetVelocity([]float64) {}

func (g *groundNode) SetVelocityFromSpatial(spatialmath.MotionVector) {}

func (g *groundNode) EnforceConstraints([]float64, []float64) {}

func (g *groundNode) GetPosition([]float64) {}

func (g *groundNode) GetVelocity([]float64) {}

func (g *groundNode) GetAcceleration([]float64) {}

func (g *groundNode) GetInternalForce([]float64) error { return nil }

func (g *groundNode) CalcArticulatedInertia() error { return nil }

func (g *groundNode) CalcBiasForce(spatialmath.ForceVector) {}

func (g *groundNode) CalcCompliance() {}

func (g *groundNode) CalcAccel() {}

func (g *groundNode) CalcInternalForce(spatialmath.ForceVector) {}

func (g *groundNode) KineticEnergy() float64 { return 0 }

func (g *groundNode) Dump() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "node level=%d type=%s\n", g.level, g.Type())
	return buf.String()
}
