package dynamics

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/multibody/spatialmath"
)

// Tree owns the nodes of a multibody system and drives the recursion
// phases in the order they require: position and velocity kinematics and
// the acceleration and compliance solves run base to tip (every ancestor
// before its descendants), inertia composition and the force passes run
// tip to base. Within a phase no node is visited twice.
//
// Nodes live in an arena indexed by the value AddBody returns; index 0 is
// always the ground node. The generalized position, velocity and
// acceleration vectors are caller-owned; each node reads and writes only
// its own disjoint slice of them.
type Tree struct {
	logger   golog.Logger
	nodes    []Node
	byLevel  [][]int // node indices grouped by tree depth
	stateDim int
	dof      int
}

// NewTree returns a tree holding only the ground node.
func NewTree(logger golog.Logger) *Tree {
	return &Tree{
		logger:  logger,
		nodes:   []Node{newGroundNode()},
		byLevel: [][]int{{0}},
	}
}

// Ground returns the arena index of the ground node.
func (t *Tree) Ground() int { return 0 }

// NumBodies returns the number of nodes, ground included.
func (t *Tree) NumBodies() int { return len(t.nodes) }

// DOF returns the system's total degree-of-freedom count.
func (t *Tree) DOF() int { return t.dof }

// Dim returns the width of the system state vectors. It exceeds DOF when
// quaternion-mode joints are present.
func (t *Tree) Dim() int { return t.stateDim }

// Node returns the node at the given arena index.
func (t *Tree) Node(i int) Node { return t.nodes[i] }

// AddBody attaches a new body under the parent at the given station in the
// parent's frame, connected by a joint of the given type whose axes are
// aligned with jointFrame. Model construction only: bodies must be added
// parent before child, and no pass may have run yet.
func (t *Tree) AddBody(
	parent int,
	m MassProperties,
	attach r3.Vector,
	jointFrame spatialmath.Frame,
	jointType JointType,
	useEulerAngles bool,
) (int, error) {
	if parent < 0 || parent >= len(t.nodes) {
		return 0, errors.Errorf("parent index %d out of range", parent)
	}
	if jointType == JointGround {
		return 0, errors.New("tree already has a ground node; attach bodies to it instead")
	}
	node, err := NewNode(m, jointFrame, jointType, false, useEulerAngles, &t.stateDim)
	if err != nil {
		return 0, err
	}

	t.nodes[parent].body().addChild(node.body(), attach)
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node)

	level := node.body().level
	if level == len(t.byLevel) {
		t.byLevel = append(t.byLevel, nil)
	}
	t.byLevel[level] = append(t.byLevel[level], idx)
	t.dof += node.DOF()
	return idx, nil
}

func (t *Tree) baseToTip(visit func(i int, n Node)) {
	for _, level := range t.byLevel {
		for _, i := range level {
			visit(i, t.nodes[i])
		}
	}
}

func (t *Tree) tipToBase(visit func(i int, n Node)) {
	for li := len(t.byLevel) - 1; li >= 0; li-- {
		for _, i := range t.byLevel[li] {
			visit(i, t.nodes[i])
		}
	}
}

// ValidateState checks caller-supplied state vectors against the system
// dimension; either argument may be nil to skip its check. The drivers
// below do not accept nil and use checkDim instead.
func (t *Tree) ValidateState(posv, velv []float64) error {
	var err error
	if posv != nil {
		err = multierr.Append(err, t.checkDim("position", posv))
	}
	if velv != nil {
		err = multierr.Append(err, t.checkDim("velocity", velv))
	}
	return err
}

// checkDim requires a full-width state vector. A nil vector has length 0
// and fails like any other wrong length; the node-level setters index
// their state slices unchecked and must never see a short vector.
func (t *Tree) checkDim(name string, v []float64) error {
	if len(v) != t.stateDim {
		return errors.Errorf("%s vector has %d elements, system dimension is %d", name, len(v), t.stateDim)
	}
	return nil
}

// SetPositions installs a full configuration and runs position kinematics
// for every node, base to tip.
func (t *Tree) SetPositions(posv []float64) error {
	if err := t.checkDim("position", posv); err != nil {
		return err
	}
	t.baseToTip(func(_ int, n Node) { n.SetPosition(posv) })
	return nil
}

// SetVelocities installs full joint rates and runs velocity kinematics for
// every node, base to tip. Positions must be current.
func (t *Tree) SetVelocities(velv []float64) error {
	if err := t.checkDim("velocity", velv); err != nil {
		return err
	}
	t.baseToTip(func(_ int, n Node) { n.SetVelocity(velv) })
	return nil
}

// EnforceConstraints applies representation-specific projections (such as
// quaternion renormalization) to externally integrated state vectors.
func (t *Tree) EnforceConstraints(posv, velv []float64) error {
	if err := multierr.Combine(t.checkDim("position", posv), t.checkDim("velocity", velv)); err != nil {
		return err
	}
	for _, n := range t.nodes {
		n.EnforceConstraints(posv, velv)
	}
	return nil
}

// GetPositions reads every node's joint coordinates into posv.
func (t *Tree) GetPositions(posv []float64) error {
	if err := t.checkDim("position", posv); err != nil {
		return err
	}
	for _, n := range t.nodes {
		n.GetPosition(posv)
	}
	return nil
}

// GetVelocities reads every node's joint rates into velv.
func (t *Tree) GetVelocities(velv []float64) error {
	if err := t.checkDim("velocity", velv); err != nil {
		return err
	}
	for _, n := range t.nodes {
		n.GetVelocity(velv)
	}
	return nil
}

// GetAccelerations reads every node's generalized accelerations into accv.
func (t *Tree) GetAccelerations(accv []float64) error {
	if err := t.checkDim("acceleration", accv); err != nil {
		return err
	}
	for _, n := range t.nodes {
		n.GetAcceleration(accv)
	}
	return nil
}

// GetInternalForces reads every node's joint-space internal force into fv.
// Quaternion-mode ball and free joints cannot express theirs and report
// errors, aggregated per node.
func (t *Tree) GetInternalForces(fv []float64) error {
	if err := t.checkDim("internal force", fv); err != nil {
		return err
	}
	var err error
	for i, n := range t.nodes {
		err = multierr.Append(err, errors.Wrapf(n.GetInternalForce(fv), "body %d", i))
	}
	return err
}

// CalcArticulatedInertias runs the inertia-composition phase tip to base.
// A singular joint-projected inertia aborts the pass.
func (t *Tree) CalcArticulatedInertias() error {
	var failed error
	t.tipToBase(func(i int, n Node) {
		if failed != nil {
			return
		}
		if err := n.CalcArticulatedInertia(); err != nil {
			failed = errors.Wrapf(err, "body %d", i)
		}
	})
	return failed
}

// CalcBiasForces runs the bias-force phase tip to base. The applied
// spatial forces are indexed by arena position (the ground entry is
// ignored) and are taken about each body's origin.
func (t *Tree) CalcBiasForces(applied []spatialmath.ForceVector) error {
	if len(applied) != len(t.nodes) {
		return errors.Errorf("have %d applied forces for %d bodies", len(applied), len(t.nodes))
	}
	t.tipToBase(func(i int, n Node) { n.CalcBiasForce(applied[i]) })
	return nil
}

// CalcCompliances runs the compliance-operator phase base to tip. It
// depends on CalcArticulatedInertias only.
func (t *Tree) CalcCompliances() {
	t.baseToTip(func(_ int, n Node) { n.CalcCompliance() })
}

// CalcAccels runs the acceleration phase base to tip, consuming the
// residuals cached by CalcBiasForces.
func (t *Tree) CalcAccels() {
	t.baseToTip(func(_ int, n Node) { n.CalcAccel() })
}

// CalcInternalForces runs the single-pass internal-force accumulation tip
// to base. Like CalcBiasForces, applied forces are indexed by arena
// position.
func (t *Tree) CalcInternalForces(applied []spatialmath.ForceVector) error {
	if len(applied) != len(t.nodes) {
		return errors.Errorf("have %d applied forces for %d bodies", len(applied), len(t.nodes))
	}
	t.tipToBase(func(i int, n Node) { n.CalcInternalForce(applied[i]) })
	return nil
}

// SolveAccelerations runs the full ordered sequence for one dynamics
// evaluation: position and velocity kinematics, inertia composition, bias
// forces, the acceleration solve, and finally gathers the generalized
// accelerations into accv.
func (t *Tree) SolveAccelerations(posv, velv []float64, applied []spatialmath.ForceVector, accv []float64) error {
	if err := t.SetPositions(posv); err != nil {
		return err
	}
	if err := t.SetVelocities(velv); err != nil {
		return err
	}
	if err := t.CalcArticulatedInertias(); err != nil {
		return err
	}
	if err := t.CalcBiasForces(applied); err != nil {
		return err
	}
	t.CalcAccels()
	return t.GetAccelerations(accv)
}

// GravityForces builds the applied-force set equivalent to a uniform
// gravitational field: each body gets m·g acting at its center of mass,
// expressed about the body origin. Positions must be current.
func (t *Tree) GravityForces(g r3.Vector) []spatialmath.ForceVector {
	forces := make([]spatialmath.ForceVector, len(t.nodes))
	gv := spatialmath.R3ToVec3(g)
	for i, n := range t.nodes {
		b := n.body()
		f := gv.Mul(b.mass)
		forces[i] = spatialmath.ForceVector{
			Moment: b.comStationG.Cross(f),
			Force:  f,
		}
	}
	return forces
}

// KineticEnergy returns the system kinetic energy from the current
// velocity pass.
func (t *Tree) KineticEnergy() float64 {
	var ke float64
	for _, n := range t.nodes {
		ke += n.KineticEnergy()
	}
	return ke
}

// DumpNodes logs every node's diagnostic state at debug level.
func (t *Tree) DumpNodes() {
	for i, n := range t.nodes {
		t.logger.Debugf("body %d:\n%s", i, n.Dump())
	}
}
