package dynamics

import (
	"errors"
	"testing"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/multibody/spatialmath"
)

// pointMassProps returns the mass properties of a point mass at station c,
// with the inertia taken about the body origin.
func pointMassProps(mass float64, c r3.Vector) MassProperties {
	cv := spatialmath.R3ToVec3(c)
	inertia := mgl64.Ident3().Mul(mass * cv.Dot(cv)).
		Sub(outerProduct(cv, cv).Mul(mass))
	return MassProperties{Mass: mass, CenterOfMass: c, Inertia: inertia}
}

func outerProduct(a, b mgl64.Vec3) mgl64.Mat3 {
	var m mgl64.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, a[i]*b[j])
		}
	}
	return m
}

func TestSinglePinFreeSpin(t *testing.T) {
	// Unit mass at unit radius from a z-axis pin, spinning at 1 rad/s with
	// no applied force: principal-axis rotation, so the gyroscopic term is
	// zero and the joint acceleration must be exactly zero.
	tree := NewTree(golog.NewTestLogger(t))
	idx, err := tree.AddBody(tree.Ground(), pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.DOF(), test.ShouldEqual, 1)
	test.That(t, tree.Dim(), test.ShouldEqual, 1)

	applied := make([]spatialmath.ForceVector, tree.NumBodies())
	accv := make([]float64, tree.Dim())
	err = tree.SolveAccelerations([]float64{0}, []float64{1}, applied, accv)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, accv[0], test.ShouldAlmostEqual, 0)

	// The gyroscopic moment vanishes on a principal axis; the centripetal
	// part m·ω×(ω×c) points back along -x with magnitude m·ω²·r = 1.
	n := tree.Node(idx).(*nodeSpec)
	test.That(t, n.gyro.Moment.Len(), test.ShouldAlmostEqual, 0)
	test.That(t, n.gyro.Force[0], test.ShouldAlmostEqual, -1)
	test.That(t, n.gyro.Force[1], test.ShouldAlmostEqual, 0)
	test.That(t, n.gyro.Force[2], test.ShouldAlmostEqual, 0)

	// KE = 1/2·I_axis·ω² = 1/2, which equals 1/2·m·|v_com|².
	test.That(t, tree.KineticEnergy(), test.ShouldAlmostEqual, 0.5)
}

func TestSinglePinGravityDrop(t *testing.T) {
	// Same pendulum at angle zero under gravity along -y: the torque about
	// the pin is r×F = -9.8 about z, and I about the axis is 1.
	tree := NewTree(golog.NewTestLogger(t))
	_, err := tree.AddBody(tree.Ground(), pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)

	posv := []float64{0}
	velv := []float64{0}
	test.That(t, tree.SetPositions(posv), test.ShouldBeNil)
	applied := tree.GravityForces(r3.Vector{Y: -9.8})

	accv := make([]float64, tree.Dim())
	err = tree.SolveAccelerations(posv, velv, applied, accv)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, accv[0], test.ShouldAlmostEqual, -9.8)
}

func TestTwoPinChainTipTorque(t *testing.T) {
	// ground→pin→pin, both about z, unit point masses at unit link lengths,
	// straight configuration at rest, unit moment applied to the tip body.
	// The joint-space mass matrix is [[5,2],[2,1]] and the generalized force
	// is [1,1], so the accelerations are [-1, 3].
	tree := NewTree(golog.NewTestLogger(t))
	link1, err := tree.AddBody(tree.Ground(), pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)
	link2, err := tree.AddBody(link1, pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{X: 1}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.DOF(), test.ShouldEqual, 2)

	applied := make([]spatialmath.ForceVector, tree.NumBodies())
	applied[link2] = spatialmath.ForceVector{Moment: mgl64.Vec3{0, 0, 1}}

	accv := make([]float64, tree.Dim())
	err = tree.SolveAccelerations([]float64{0, 0}, []float64{0, 0}, applied, accv)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, accv[0], test.ShouldAlmostEqual, -1)
	test.That(t, accv[1], test.ShouldAlmostEqual, 3)

	// body origins follow the chain
	test.That(t, tree.Node(link2).Origin().X, test.ShouldAlmostEqual, 1)
	test.That(t, tree.Node(link2).CenterOfMass().X, test.ShouldAlmostEqual, 2)
}

func TestInternalForcePass(t *testing.T) {
	tree := NewTree(golog.NewTestLogger(t))
	link1, err := tree.AddBody(tree.Ground(), pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)
	link2, err := tree.AddBody(link1, pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{X: 1}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, tree.SetPositions([]float64{0, 0}), test.ShouldBeNil)

	// A moment about z on the tip body projects as -1 onto both pins: the
	// shift operator carries the moment to the base unchanged.
	applied := make([]spatialmath.ForceVector, tree.NumBodies())
	applied[link2] = spatialmath.ForceVector{Moment: mgl64.Vec3{0, 0, 1}}
	test.That(t, tree.CalcInternalForces(applied), test.ShouldBeNil)

	fv := make([]float64, tree.Dim())
	test.That(t, tree.GetInternalForces(fv), test.ShouldBeNil)
	test.That(t, fv[0], test.ShouldAlmostEqual, -1)
	test.That(t, fv[1], test.ShouldAlmostEqual, -1)
}

func TestFreeBodyGravityFall(t *testing.T) {
	// A free (quaternion-mode) body with its COM at the origin under
	// gravity: no angular acceleration, linear acceleration equal to g.
	tree := NewTree(golog.NewTestLogger(t))
	_, err := tree.AddBody(tree.Ground(),
		MassProperties{Mass: 2, Inertia: mgl64.Ident3()},
		r3.Vector{}, spatialmath.NewZeroFrame(), JointFree, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Dim(), test.ShouldEqual, 7)

	posv := []float64{1, 0, 0, 0, 0, 0, 0} // identity quaternion, no offset
	velv := make([]float64, 7)
	test.That(t, tree.SetPositions(posv), test.ShouldBeNil)
	applied := tree.GravityForces(r3.Vector{Z: -9.8})

	accv := make([]float64, tree.Dim())
	err = tree.SolveAccelerations(posv, velv, applied, accv)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 4; i++ {
		test.That(t, accv[i], test.ShouldAlmostEqual, 0)
	}
	test.That(t, accv[4], test.ShouldAlmostEqual, 0)
	test.That(t, accv[5], test.ShouldAlmostEqual, 0)
	test.That(t, accv[6], test.ShouldAlmostEqual, -9.8)
}

func TestSingularTopology(t *testing.T) {
	// A zero-mass body on a translation joint projects a zero inertia onto
	// the joint directions; the inertia-composition pass must fail with the
	// singular-configuration error, not proceed silently.
	tree := NewTree(golog.NewTestLogger(t))
	_, err := tree.AddBody(tree.Ground(), MassProperties{},
		r3.Vector{}, spatialmath.NewZeroFrame(), JointCartesian, true)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, tree.SetPositions(make([]float64, 3)), test.ShouldBeNil)
	test.That(t, tree.SetVelocities(make([]float64, 3)), test.ShouldBeNil)

	err = tree.CalcArticulatedInertias()
	test.That(t, err, test.ShouldNotBeNil)
	var singular *SingularInertiaError
	test.That(t, errors.As(err, &singular), test.ShouldBeTrue)
	test.That(t, singular.Level, test.ShouldEqual, 1)
	test.That(t, singular.NumChildren, test.ShouldEqual, 0)
}

func TestKineticEnergyMatchesBodySum(t *testing.T) {
	// Tree energy must equal the independent per-body sum of
	// 1/2·m·|v_com|² + 1/2·ωᵀ·I_com·ω at an arbitrary state.
	tree := NewTree(golog.NewTestLogger(t))
	props := []MassProperties{pointMassProps(1.5, r3.Vector{X: 0.8, Z: 0.2})}
	link1, err := tree.AddBody(tree.Ground(), props[0],
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)
	props = append(props, MassProperties{
		Mass:         2,
		CenterOfMass: r3.Vector{X: 0.5, Y: 0.1},
		Inertia:      mgl64.Ident3().Mul(0.7),
	})
	link2, err := tree.AddBody(link1, props[1],
		r3.Vector{X: 1}, spatialmath.NewZeroFrame(), JointBall, true)
	test.That(t, err, test.ShouldBeNil)

	posv := []float64{0.4, 20, -35, 50} // pin angle rad; ball angles deg
	velv := []float64{1.2, 0.5, -0.7, 0.3}
	test.That(t, tree.SetPositions(posv), test.ShouldBeNil)
	test.That(t, tree.SetVelocities(velv), test.ShouldBeNil)

	var want float64
	for i, idx := range []int{link1, link2} {
		n := tree.Node(idx)
		sv := n.SpatialVelocity()
		rot := n.Orientation()
		c := spatialmath.R3ToVec3(n.CenterOfMass().Sub(n.Origin()))
		vCOM := sv.Linear.Add(sv.Angular.Cross(c))

		m := props[i].Mass
		cB := spatialmath.R3ToVec3(props[i].CenterOfMass)
		iCOMBody := props[i].Inertia.
			Sub(mgl64.Ident3().Mul(m * cB.Dot(cB))).
			Add(outerProduct(cB, cB).Mul(m))
		iCOM := spatialmath.OrthoTransform(iCOMBody, rot)

		want += 0.5*m*vCOM.Dot(vCOM) + 0.5*sv.Angular.Dot(iCOM.Mul3x1(sv.Angular))
	}
	test.That(t, tree.KineticEnergy(), test.ShouldAlmostEqual, want)
}

func TestComplianceOperator(t *testing.T) {
	// For a single pin the compliance operator is Hᵀ·D⁻¹·H. With the unit
	// pendulum D = 1, so the only nonzero entry is the (z,z) angular block.
	tree := NewTree(golog.NewTestLogger(t))
	idx, err := tree.AddBody(tree.Ground(), pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, tree.SetPositions([]float64{0}), test.ShouldBeNil)
	test.That(t, tree.SetVelocities([]float64{0}), test.ShouldBeNil)
	test.That(t, tree.CalcArticulatedInertias(), test.ShouldBeNil)
	tree.CalcCompliances()

	y := tree.Node(idx).(*nodeSpec).y
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			want := 0.0
			if i == 2 && j == 2 {
				want = 1
			}
			test.That(t, y.At(i, j), test.ShouldAlmostEqual, want)
		}
	}
}

func TestTreeValidation(t *testing.T) {
	tree := NewTree(golog.NewTestLogger(t))
	_, err := tree.AddBody(tree.Ground(), pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)

	_, err = tree.AddBody(7, MassProperties{}, r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = tree.AddBody(tree.Ground(), MassProperties{}, r3.Vector{}, spatialmath.NewZeroFrame(), JointGround, true)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, tree.SetPositions([]float64{1, 2}), test.ShouldNotBeNil)
	test.That(t, tree.SetVelocities(nil), test.ShouldNotBeNil)
	test.That(t, tree.CalcBiasForces(nil), test.ShouldNotBeNil)
	test.That(t, tree.CalcInternalForces([]spatialmath.ForceVector{}), test.ShouldNotBeNil)
	test.That(t, tree.ValidateState([]float64{0}, []float64{0}), test.ShouldBeNil)

	// nil and short vectors must be rejected by every driver before any
	// node slices its state range
	test.That(t, tree.SetPositions(nil), test.ShouldNotBeNil)
	test.That(t, tree.GetPositions(nil), test.ShouldNotBeNil)
	test.That(t, tree.GetVelocities([]float64{}), test.ShouldNotBeNil)
	test.That(t, tree.GetAccelerations(nil), test.ShouldNotBeNil)
	test.That(t, tree.GetInternalForces(nil), test.ShouldNotBeNil)
	test.That(t, tree.EnforceConstraints(nil, []float64{0}), test.ShouldNotBeNil)
	test.That(t, tree.EnforceConstraints([]float64{0}, nil), test.ShouldNotBeNil)

	accv := make([]float64, tree.Dim())
	err = tree.SolveAccelerations([]float64{0}, nil,
		make([]spatialmath.ForceVector, tree.NumBodies()), accv)
	test.That(t, err, test.ShouldNotBeNil)

	// the diagnostic names the vector that was wrong
	err = tree.GetAccelerations([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "acceleration vector has 3 elements")
}

func TestDumpNodes(t *testing.T) {
	tree := NewTree(golog.NewTestLogger(t))
	idx, err := tree.AddBody(tree.Ground(), pointMassProps(1, r3.Vector{X: 1}),
		r3.Vector{}, spatialmath.NewZeroFrame(), JointTorsion, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.SetPositions([]float64{0.5}), test.ShouldBeNil)

	dump := tree.Node(idx).Dump()
	test.That(t, dump, test.ShouldContainSubstring, "type=torsion")
	test.That(t, dump, test.ShouldContainSubstring, "theta=[0.5]")
	tree.DumpNodes()
}
