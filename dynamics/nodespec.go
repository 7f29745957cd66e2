package dynamics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/multibody/spatialmath"
)

// nodeSpec implements the recursion phases generically over the joint's
// coordinate count. The joint variant supplies only position and velocity
// kinematics (plus state-vector mapping overrides for quaternion modes);
// everything else is shared.
type nodeSpec struct {
	rigidBody

	joint       joint
	dof         int
	dim         int
	stateOffset int

	theta   *mat.VecDense // joint coordinates
	dTheta  *mat.VecDense // joint rates
	ddTheta *mat.VecDense // joint accelerations, from the equations of motion

	h  *mat.Dense // dof x 6 joint transition operator, ground-frame aligned
	dI *mat.Dense // dof x dof inverse of the joint-projected inertia
	g  *mat.Dense // 6 x dof coupling operator

	nu            *mat.VecDense // solved joint-space residual
	epsilon       *mat.VecDense // joint-space residual
	forceInternal *mat.VecDense // accumulated joint-space internal force
}

func newNodeSpec(m MassProperties, jointFrame spatialmath.Frame, j joint, dof int, nextStateOffset *int) *nodeSpec {
	n := &nodeSpec{
		rigidBody:     newRigidBody(m, jointFrame),
		joint:         j,
		dof:           dof,
		dim:           j.dim(dof),
		theta:         mat.NewVecDense(dof, nil),
		dTheta:        mat.NewVecDense(dof, nil),
		ddTheta:       mat.NewVecDense(dof, nil),
		h:             mat.NewDense(dof, 6, nil),
		dI:            mat.NewDense(dof, dof, nil),
		g:             mat.NewDense(6, dof, nil),
		nu:            mat.NewVecDense(dof, nil),
		epsilon:       mat.NewVecDense(dof, nil),
		forceInternal: mat.NewVecDense(dof, nil),
	}
	n.stateOffset = *nextStateOffset
	*nextStateOffset += n.dim
	return n
}

func (n *nodeSpec) Type() string { return n.joint.name() }

func (n *nodeSpec) DOF() int { return n.dof }

func (n *nodeSpec) Dim() int { return n.dim }

func (n *nodeSpec) StateOffset() int { return n.stateOffset }

// SetPosition installs a new configuration and computes the consequent
// position kinematics. Any previously accumulated internal force refers to
// the old configuration and is forgotten.
func (n *nodeSpec) SetPosition(posv []float64) {
	n.forceInternal.Zero()
	n.joint.setPos(n, posv)
	n.joint.calcPosKinematics(n)
	n.calcJointIndependentKinematicsPos()
}

// SetVelocity installs new joint rates for the current configuration and
// computes the velocity-dependent terms.
func (n *nodeSpec) SetVelocity(velv []float64) {
	n.joint.setVel(n, velv)
	n.joint.calcVelKinematics(n)
	n.calcJointIndependentKinematicsVel()
}

// SetVelocityFromSpatial solves H·(sVel - φᵀ·parentVel) for the joint rates
// realizing a prescribed spatial velocity.
func (n *nodeSpec) SetVelocityFromSpatial(sVel spatialmath.MotionVector) {
	rel := sVel.Sub(n.phi.TransposeMulMotion(n.parent.sVel))
	n.dTheta.MulVec(n.h, rel.Vec6())
	n.joint.setRatesFromJointRates(n)
}

func (n *nodeSpec) EnforceConstraints(posv, velv []float64) {
	n.joint.enforceConstraints(n, posv, velv)
}

func (n *nodeSpec) GetPosition(posv []float64) { n.joint.getPos(n, posv) }

func (n *nodeSpec) GetVelocity(velv []float64) { n.joint.getVel(n, velv) }

func (n *nodeSpec) GetAcceleration(accv []float64) { n.joint.getAccel(n, accv) }

func (n *nodeSpec) GetInternalForce(fv []float64) error {
	return n.joint.getInternalForce(n, fv)
}

// CalcArticulatedInertia shifts each child's projected articulated inertia
// to this node's origin block by block and sums it into this node's spatial
// mass matrix, then factors out the joint-direction coupling. Requires the
// children's phase to be complete (tip to base).
func (n *nodeSpec) CalcArticulatedInertia() error {
	n.artP.Copy(n.mk)
	for _, child := range n.children {
		lt := spatialmath.CrossMat(child.obG.Sub(n.obG))
		var m mat.Dense
		m.Mul(child.tau, child.artP)

		m11 := spatialmath.Block(&m, 0, 0)
		m12 := spatialmath.Block(&m, 0, 3)
		m21 := spatialmath.Block(&m, 3, 0)
		m22 := spatialmath.Block(&m, 3, 3)

		// Shift the four 3x3 blocks through the skew-symmetric offset.
		spatialmath.AddBlock(n.artP, 0, 0,
			m11.Add(lt.Mul3(m21)).Sub(m12.Mul3(lt)).Sub(lt.Mul3(m22).Mul3(lt)))
		spatialmath.AddBlock(n.artP, 0, 3, m12.Add(lt.Mul3(m22)))
		spatialmath.AddBlock(n.artP, 3, 0, m21.Sub(m22.Mul3(lt)))
		spatialmath.AddBlock(n.artP, 3, 3, m22)
	}

	// Project the summed inertia onto the joint directions and invert.
	var hp, d mat.Dense
	hp.Mul(n.h, n.artP)
	d.Mul(&hp, n.h.T())
	if err := n.dI.Inverse(&d); err != nil {
		return &SingularInertiaError{
			D:           mat.DenseCopyOf(&d),
			H:           mat.DenseCopyOf(n.h),
			Level:       n.level,
			NumChildren: len(n.children),
		}
	}

	// Coupling operator and the null-space projector used by ancestors.
	var pht mat.Dense
	pht.Mul(n.artP, n.h.T())
	n.g.Mul(&pht, n.dI)

	var gh mat.Dense
	gh.Mul(n.g, n.h)
	n.tau.Sub(eye6, &gh)
	n.psiT.Mul(n.tau.T(), n.phi.TransposeDense())
	return nil
}

// CalcBiasForce accumulates the velocity-dependent bias force, folds in the
// children's solved bias-plus-coupling terms, and solves the joint-space
// residual. Requires the children's phase to be complete (tip to base).
func (n *nodeSpec) CalcBiasForce(applied spatialmath.ForceVector) {
	var pa mat.VecDense
	pa.MulVec(n.artP, n.cor.Vec6())
	z := spatialmath.NewForceVectorFromVec6(&pa).Add(n.gyro).Sub(applied)
	for _, child := range n.children {
		z = z.Add(child.phi.MulForce(child.z.Add(child.gEps)))
	}
	n.z = z

	var hz mat.VecDense
	hz.MulVec(n.h, z.Vec6())
	n.epsilon.SubVec(n.forceInternal, &hz)
	n.nu.MulVec(n.dI, n.epsilon)

	var ge mat.VecDense
	ge.MulVec(n.g, n.epsilon)
	n.gEps = spatialmath.NewForceVectorFromVec6(&ge)
}

// CalcCompliance accumulates the operator answering constraint and
// compliance queries: the joint's own inverse-inertia contribution plus the
// parent's operator carried through this node's null-space projector.
// Requires the parent's phase to be complete (base to tip).
func (n *nodeSpec) CalcCompliance() {
	var hd, own, py, carried mat.Dense
	hd.Mul(n.h.T(), n.dI)
	own.Mul(&hd, n.h)
	py.Mul(n.psiT, n.parent.y)
	carried.Mul(&py, n.psiT.T())
	n.y.Add(&own, &carried)
}

// CalcAccel solves the generalized acceleration from the residual cached by
// CalcBiasForce and composes the spatial acceleration. Requires the parent's
// phase to be complete (base to tip).
func (n *nodeSpec) CalcAccel() {
	alphaP := n.phi.TransposeMulMotion(n.parent.sAcc)

	var ga mat.VecDense
	ga.MulVec(n.g.T(), alphaP.Vec6())
	n.ddTheta.SubVec(n.nu, &ga)

	var hdd mat.VecDense
	hdd.MulVec(n.h.T(), n.ddTheta)
	n.sAcc = alphaP.Add(spatialmath.NewMotionVectorFromVec6(&hdd)).Add(n.cor)

	// Joints with an internal representation (quaternions) finish their own
	// coordinate second derivatives here.
	n.joint.calcAccel(n)
}

// CalcInternalForce accumulates the children's net spatial force with the
// locally applied one and projects the sum into joint space. Tip to base;
// independent of the bias-force and acceleration phases.
func (n *nodeSpec) CalcInternalForce(applied spatialmath.ForceVector) {
	z := spatialmath.ForceVector{}.Sub(applied)
	for _, child := range n.children {
		z = z.Add(child.phi.MulForce(child.z))
	}
	n.z = z

	var hz mat.VecDense
	hz.MulVec(n.h, z.Vec6())
	n.forceInternal.AddVec(n.forceInternal, &hz)
}

func (n *nodeSpec) KineticEnergy() float64 { return n.kineticEnergy() }

// Dump renders the node's spatial and joint-space state for diagnostics.
func (n *nodeSpec) Dump() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "node level=%d type=%s\n", n.level, n.Type())
	fmt.Fprintf(&buf, "stateOffset=%d mass=%g comG=%v\n", n.stateOffset, n.mass, n.comG)
	fmt.Fprintf(&buf, "inertiaG=%v\n", n.inertiaG)
	fmt.Fprintf(&buf, "H=\n%v\n", mat.Formatted(n.h))
	fmt.Fprintf(&buf, "sVel=%v\n", n.sVel)
	fmt.Fprintf(&buf, "coriolis=%v\n", n.cor)
	fmt.Fprintf(&buf, "gyro=%v\n", n.gyro)
	fmt.Fprintf(&buf, "theta=%v\n", n.theta.RawVector().Data)
	fmt.Fprintf(&buf, "dTheta=%v\n", n.dTheta.RawVector().Data)
	fmt.Fprintf(&buf, "ddTheta=%v\n", n.ddTheta.RawVector().Data)
	fmt.Fprintf(&buf, "sAcc=%v\n", n.sAcc)
	return buf.String()
}

// eye6 is the 6x6 identity.
var eye6 = func() *mat.Dense {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		m.Set(i, i, 1)
	}
	return m
}()
