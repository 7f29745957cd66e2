package dynamics

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/multibody/spatialmath"
)

func singleBodyTree(t *testing.T, jointType JointType, useEulerAngles bool, jointFrame spatialmath.Frame) (*Tree, int) {
	t.Helper()
	tree := NewTree(golog.NewTestLogger(t))
	idx, err := tree.AddBody(tree.Ground(),
		MassProperties{Mass: 1, Inertia: mgl64.Ident3()},
		r3.Vector{}, jointFrame, jointType, useEulerAngles)
	test.That(t, err, test.ShouldBeNil)
	return tree, idx
}

func TestJointStateRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		jointType JointType
		euler     bool
		posv      []float64
		velv      []float64
	}{
		{JointTorsion, true, []float64{0.3}, []float64{-1.1}},
		{JointUniversal, true, []float64{0.2, -0.4}, []float64{0.5, 0.6}},
		{JointBall, true, []float64{15, -40, 75}, []float64{1, -2, 3}},
		{JointBall, false, []float64{0.6, 0.8, 0, 0}, []float64{0, 0.4, -0.3, 0}},
		{JointCartesian, true, []float64{1, -2, 3}, []float64{0.1, 0.2, 0.3}},
		{JointFreeLine, true, []float64{0.1, 0.2, 1, 2, 3}, []float64{4, 5, 6, 7, 8}},
		{JointFree, false,
			[]float64{1, 0, 0, 0, 0.5, -0.5, 2}, []float64{0, 0.1, 0.2, 0.3, 1, 2, 3}},
	} {
		t.Run(string(tc.jointType), func(t *testing.T) {
			tree, _ := singleBodyTree(t, tc.jointType, tc.euler, spatialmath.NewZeroFrame())
			test.That(t, tree.SetPositions(tc.posv), test.ShouldBeNil)
			test.That(t, tree.SetVelocities(tc.velv), test.ShouldBeNil)

			posv := make([]float64, tree.Dim())
			velv := make([]float64, tree.Dim())
			test.That(t, tree.GetPositions(posv), test.ShouldBeNil)
			test.That(t, tree.GetVelocities(velv), test.ShouldBeNil)
			for i := range tc.posv {
				test.That(t, posv[i], test.ShouldAlmostEqual, tc.posv[i])
			}
			for i := range tc.velv {
				test.That(t, velv[i], test.ShouldAlmostEqual, tc.velv[i])
			}
		})
	}
}

func TestPinTiltedAxis(t *testing.T) {
	// A pin whose joint frame z lands on the body x axis rotates the body
	// about x: a quarter turn sends y to z.
	tree, idx := singleBodyTree(t, JointTorsion, true,
		spatialmath.NewFrameFromZAxis(r3.Vector{X: 1}))
	test.That(t, tree.SetPositions([]float64{math.Pi / 2}), test.ShouldBeNil)

	got := tree.Node(idx).Orientation()
	want := mgl64.Mat3FromRows(
		mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{0, 0, -1},
		mgl64.Vec3{0, 1, 0},
	)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, got.At(i, j), test.ShouldAlmostEqual, want.At(i, j), 1e-12)
		}
	}
}

func TestUniversalOrientation(t *testing.T) {
	// With an identity joint frame the body orientation is exactly the
	// two-angle composition the joint defines.
	tree, idx := singleBodyTree(t, JointUniversal, true, spatialmath.NewZeroFrame())
	phi, psi := 0.3, -0.7
	test.That(t, tree.SetPositions([]float64{phi, psi}), test.ShouldBeNil)

	got := tree.Node(idx).Orientation()
	want := yxRotation(phi, psi)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, got.At(i, j), test.ShouldAlmostEqual, want.At(i, j), 1e-12)
		}
	}
}

func TestDiatomKinematics(t *testing.T) {
	// The diatom joint translates the body origin and orients it like the
	// two-angle joint; the inertialess axis stays unactuated.
	tree := NewTree(golog.NewTestLogger(t))
	idx, err := tree.AddBody(tree.Ground(),
		MassProperties{Mass: 1, Inertia: mgl64.Ident3()},
		r3.Vector{X: 2}, spatialmath.NewZeroFrame(), JointFreeLine, true)
	test.That(t, err, test.ShouldBeNil)

	phi, psi := 0.4, 0.9
	test.That(t, tree.SetPositions([]float64{phi, psi, 1, -2, 3}), test.ShouldBeNil)

	n := tree.Node(idx)
	origin := n.Origin()
	test.That(t, origin.X, test.ShouldAlmostEqual, 3)
	test.That(t, origin.Y, test.ShouldAlmostEqual, -2)
	test.That(t, origin.Z, test.ShouldAlmostEqual, 3)

	got := n.Orientation()
	want := yxRotation(phi, psi)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, got.At(i, j), test.ShouldAlmostEqual, want.At(i, j), 1e-12)
		}
	}
}

func TestTranslateKinematics(t *testing.T) {
	tree, idx := singleBodyTree(t, JointCartesian, true, spatialmath.NewZeroFrame())
	test.That(t, tree.SetPositions([]float64{1, 2, 3}), test.ShouldBeNil)
	test.That(t, tree.SetVelocities([]float64{-1, 0, 4}), test.ShouldBeNil)

	n := tree.Node(idx)
	test.That(t, n.Origin().X, test.ShouldAlmostEqual, 1)
	test.That(t, n.Origin().Y, test.ShouldAlmostEqual, 2)
	test.That(t, n.Origin().Z, test.ShouldAlmostEqual, 3)

	sv := n.SpatialVelocity()
	test.That(t, sv.Angular.Len(), test.ShouldAlmostEqual, 0)
	test.That(t, sv.Linear[0], test.ShouldAlmostEqual, -1)
	test.That(t, sv.Linear[1], test.ShouldAlmostEqual, 0)
	test.That(t, sv.Linear[2], test.ShouldAlmostEqual, 4)

	// translation leaves the orientation alone
	ori := n.Orientation()
	test.That(t, ori.Trace(), test.ShouldAlmostEqual, 3)
}

func TestSetVelocityFromSpatial(t *testing.T) {
	tree, idx := singleBodyTree(t, JointTorsion, true, spatialmath.NewZeroFrame())
	test.That(t, tree.SetPositions([]float64{0}), test.ShouldBeNil)

	n := tree.Node(idx)
	n.SetVelocityFromSpatial(spatialmath.MotionVector{Angular: mgl64.Vec3{0, 0, 2}})

	velv := make([]float64, tree.Dim())
	test.That(t, tree.GetVelocities(velv), test.ShouldBeNil)
	test.That(t, velv[0], test.ShouldAlmostEqual, 2)
}
