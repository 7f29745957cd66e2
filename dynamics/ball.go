package dynamics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/multibody/utils"
)

// ballOrientation is the orientation sub-model shared by the ball and free
// joints. The representation is chosen once at construction: three Euler
// angles, or four quaternion parameters with one redundant constraint.
// Operations that exist in only one representation live behind this
// interface so the node code stays representation-agnostic.
type ballOrientation interface {
	// dim is the representation's width in the state vectors.
	dim() int
	// usesAngles reports whether theta carries the position coordinates;
	// the quaternion representation keeps its own.
	usesAngles() bool

	// rotation builds the parent-to-body rotation from the representation's
	// current position coordinates (theta in Euler mode, q otherwise).
	rotation(theta mgl64.Vec3) mgl64.Mat3

	setPos(offset int, posv []float64, theta *mgl64.Vec3)
	getPos(theta mgl64.Vec3, offset int, posv []float64)
	// setVel installs the representation's rates and reports the resulting
	// angular velocity of the body in its parent.
	setVel(offset int, velv []float64, dTheta *mgl64.Vec3)
	getVel(dTheta mgl64.Vec3, offset int, velv []float64)
	// calcAccel re-derives the representation's coordinate second
	// derivatives from the solved angular velocity and acceleration.
	calcAccel(omega, dOmega mgl64.Vec3)
	getAccel(ddTheta mgl64.Vec3, offset int, accv []float64)
	// setRates re-derives the representation's rates from an angular
	// velocity written directly into dTheta.
	setRates(omega mgl64.Vec3)

	// enforceConstraints projects externally integrated coordinates back
	// onto the representation's manifold.
	enforceConstraints(offset int, posv, velv []float64)
	// internalForce converts the joint-space internal torque into the
	// Euler-angle basis; defined only for the Euler representation.
	internalForce(torque mgl64.Vec3, offset int, fv []float64) error
}

// eulerOrientation stores the orientation as body 3-2-1 Euler angles
// (phi, theta, psi), in degrees. The sequence is singular at a zenith angle
// of 0 or pi; that is documented, not defended against.
type eulerOrientation struct {
	cPhi, sPhi     float64
	cTheta, sTheta float64
	cPsi, sPsi     float64
}

func (e *eulerOrientation) dim() int { return 3 }

func (e *eulerOrientation) usesAngles() bool { return true }

func (e *eulerOrientation) rotation(theta mgl64.Vec3) mgl64.Mat3 {
	e.sPhi, e.cPhi = math.Sincos(utils.DegToRad(theta.X()))
	e.sTheta, e.cTheta = math.Sincos(utils.DegToRad(theta.Y()))
	e.sPsi, e.cPsi = math.Sincos(utils.DegToRad(theta.Z()))

	// Body-three 3-2-1 sequence.
	return mgl64.Mat3FromRows(
		mgl64.Vec3{
			e.cPhi * e.cTheta,
			-e.sPhi*e.cPsi + e.cPhi*e.sTheta*e.sPsi,
			e.sPhi*e.sPsi + e.cPhi*e.sTheta*e.cPsi,
		},
		mgl64.Vec3{
			e.sPhi * e.cTheta,
			e.cPhi*e.cPsi + e.sPhi*e.sTheta*e.sPsi,
			-e.cPhi*e.sPsi + e.sPhi*e.sTheta*e.cPsi,
		},
		mgl64.Vec3{-e.sTheta, e.cTheta * e.sPsi, e.cTheta * e.cPsi},
	)
}

func (e *eulerOrientation) setPos(offset int, posv []float64, theta *mgl64.Vec3) {
	*theta = mgl64.Vec3{posv[offset], posv[offset+1], posv[offset+2]}
}

func (e *eulerOrientation) getPos(theta mgl64.Vec3, offset int, posv []float64) {
	posv[offset] = theta.X()
	posv[offset+1] = theta.Y()
	posv[offset+2] = theta.Z()
}

func (e *eulerOrientation) setVel(offset int, velv []float64, dTheta *mgl64.Vec3) {
	*dTheta = mgl64.Vec3{velv[offset], velv[offset+1], velv[offset+2]}
}

func (e *eulerOrientation) getVel(dTheta mgl64.Vec3, offset int, velv []float64) {
	velv[offset] = dTheta.X()
	velv[offset+1] = dTheta.Y()
	velv[offset+2] = dTheta.Z()
}

// calcAccel has nothing to do in Euler mode; ddTheta already is the angular
// acceleration.
func (e *eulerOrientation) calcAccel(omega, dOmega mgl64.Vec3) {}

func (e *eulerOrientation) getAccel(ddTheta mgl64.Vec3, offset int, accv []float64) {
	accv[offset] = ddTheta.X()
	accv[offset+1] = ddTheta.Y()
	accv[offset+2] = ddTheta.Z()
}

func (e *eulerOrientation) setRates(omega mgl64.Vec3) {}

func (e *eulerOrientation) enforceConstraints(int, []float64, []float64) {}

// internalForce converts a joint-space torque into the Euler-angle basis.
// rotation must have been evaluated for the current configuration first.
func (e *eulerOrientation) internalForce(torque mgl64.Vec3, offset int, fv []float64) error {
	m := mgl64.Mat3FromRows(
		mgl64.Vec3{0, 0, 1},
		mgl64.Vec3{-e.sPhi, e.cPhi, 0},
		mgl64.Vec3{e.cPhi * e.cTheta, e.sPhi * e.cTheta, -e.sTheta},
	)
	eTorque := m.Mul3x1(torque).Mul(math.Pi / 180)
	fv[offset] = eTorque.X()
	fv[offset+1] = eTorque.Y()
	fv[offset+2] = eTorque.Z()
	return nil
}

// quaternionOrientation stores the orientation as four unit-quaternion
// parameters. The redundant coordinate avoids the Euler singularity at the
// cost of a unit-norm constraint that must be re-enforced after external
// integration, and of the representation maintaining its own coordinate
// derivatives.
type quaternionOrientation struct {
	q   quat.Number
	dq  quat.Number
	ddq quat.Number
}

func newQuaternionOrientation() *quaternionOrientation {
	return &quaternionOrientation{q: quat.Number{Real: 1}}
}

func (o *quaternionOrientation) dim() int { return 4 }

func (o *quaternionOrientation) usesAngles() bool { return false }

func (o *quaternionOrientation) rotation(mgl64.Vec3) mgl64.Mat3 {
	q := o.q
	sq := utils.Square
	// Active-sense rotation matrix of the unit quaternion.
	return mgl64.Mat3FromRows(
		mgl64.Vec3{
			sq(q.Real) + sq(q.Imag) - sq(q.Jmag) - sq(q.Kmag),
			2 * (q.Imag*q.Jmag - q.Real*q.Kmag),
			2 * (q.Imag*q.Kmag + q.Real*q.Jmag),
		},
		mgl64.Vec3{
			2 * (q.Imag*q.Jmag + q.Real*q.Kmag),
			sq(q.Real) - sq(q.Imag) + sq(q.Jmag) - sq(q.Kmag),
			2 * (q.Jmag*q.Kmag - q.Real*q.Imag),
		},
		mgl64.Vec3{
			2 * (q.Imag*q.Kmag - q.Real*q.Jmag),
			2 * (q.Jmag*q.Kmag + q.Real*q.Imag),
			sq(q.Real) - sq(q.Imag) - sq(q.Jmag) + sq(q.Kmag),
		},
	)
}

func (o *quaternionOrientation) setPos(offset int, posv []float64, theta *mgl64.Vec3) {
	o.q = quatFromSlice(posv[offset:])
}

func (o *quaternionOrientation) getPos(theta mgl64.Vec3, offset int, posv []float64) {
	quatIntoSlice(o.q, posv[offset:])
}

func (o *quaternionOrientation) setVel(offset int, velv []float64, dTheta *mgl64.Vec3) {
	o.dq = quatFromSlice(velv[offset:])
	// omega = 2·vec(dq ⊗ q*).
	w := quat.Mul(o.dq, quat.Conj(o.q))
	*dTheta = mgl64.Vec3{2 * w.Imag, 2 * w.Jmag, 2 * w.Kmag}
}

func (o *quaternionOrientation) getVel(dTheta mgl64.Vec3, offset int, velv []float64) {
	quatIntoSlice(o.dq, velv[offset:])
}

// calcAccel re-derives the quaternion second derivative from the solved
// angular velocity and acceleration: ddq = (ω̂⊗dq + α̂⊗q)/2.
func (o *quaternionOrientation) calcAccel(omega, dOmega mgl64.Vec3) {
	o.ddq = quat.Scale(0.5, quat.Add(
		quat.Mul(pureQuat(omega), o.dq),
		quat.Mul(pureQuat(dOmega), o.q),
	))
}

func (o *quaternionOrientation) getAccel(ddTheta mgl64.Vec3, offset int, accv []float64) {
	quatIntoSlice(o.ddq, accv[offset:])
}

// setRates installs dq = (ω̂⊗q)/2 for a directly prescribed angular velocity.
func (o *quaternionOrientation) setRates(omega mgl64.Vec3) {
	o.dq = quat.Scale(0.5, quat.Mul(pureQuat(omega), o.q))
}

// enforceConstraints normalizes the quaternion and removes the rate
// component parallel to it: unconstrained integration drifts off the
// unit-norm manifold, and the rate error is proportional to the position
// component along q.
func (o *quaternionOrientation) enforceConstraints(offset int, posv, velv []float64) {
	q := quatFromSlice(posv[offset:])
	dq := quatFromSlice(velv[offset:])

	q = quat.Scale(1/quat.Abs(q), q)
	dq = quat.Add(dq, quat.Scale(-quatDot(q, dq), q))

	quatIntoSlice(q, posv[offset:])
	quatIntoSlice(dq, velv[offset:])
	o.q, o.dq = q, dq
}

func (o *quaternionOrientation) internalForce(mgl64.Vec3, int, []float64) error {
	return ErrQuaternionInternalForce
}

func quatFromSlice(s []float64) quat.Number {
	return quat.Number{Real: s[0], Imag: s[1], Jmag: s[2], Kmag: s[3]}
}

func quatIntoSlice(q quat.Number, s []float64) {
	s[0], s[1], s[2], s[3] = q.Real, q.Imag, q.Jmag, q.Kmag
}

func pureQuat(v mgl64.Vec3) quat.Number {
	return quat.Number{Imag: v.X(), Jmag: v.Y(), Kmag: v.Z()}
}

func quatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}
