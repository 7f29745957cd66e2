package dynamics

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// SingularInertiaError reports a numerically singular joint-projected
// articulated inertia encountered while composing inertias. There is no
// local recovery: it means the model topology gives some joint direction
// nothing to push against (for example a zero-mass body on a translation
// joint), and the caller must treat it as a fatal modeling error.
type SingularInertiaError struct {
	// D is the singular joint-projected inertia.
	D *mat.Dense
	// H is the joint transition operator it was projected through.
	H *mat.Dense
	// Level is the depth of the offending node in the tree.
	Level int
	// NumChildren is the offending node's child count.
	NumChildren int
}

func (e *SingularInertiaError) Error() string {
	return fmt.Sprintf(
		"singular joint-projected inertia at tree level %d (%d children): bad topology?\nD = %v\nH = %v",
		e.Level, e.NumChildren,
		mat.Formatted(e.D, mat.Prefix("    ")),
		mat.Formatted(e.H, mat.Prefix("    ")),
	)
}

// ErrReversedJoint is returned by the factory for a reversed
// (child-to-parent) joint request, which is not supported.
var ErrReversedJoint = errors.New("reversed joints are not supported")

// ErrQuaternionInternalForce is returned when the internal-force torque
// conversion is requested from a quaternion-mode ball or free joint; the
// conversion is defined only for the Euler-angle representation.
var ErrQuaternionInternalForce = errors.New(
	"internal force conversion requires the Euler-angle representation")

// NewUnsupportedJointTypeError is returned by the factory when the joint
// type tag has no implemented variant.
func NewUnsupportedJointTypeError(jointType JointType) error {
	return errors.Errorf("unsupported joint type %q", string(jointType))
}
