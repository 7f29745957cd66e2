package dynamics

import (
	"go.viam.com/multibody/spatialmath"
)

// JointType tags the joint variant connecting a body to its parent.
type JointType string

// The implemented joint variants.
const (
	// JointGround is the distinguished immobile ground body.
	JointGround = JointType("ground")
	// JointTorsion is a pin joint: one rotational degree of freedom about
	// the joint frame's z axis.
	JointTorsion = JointType("torsion")
	// JointUniversal allows rotation about the two axes perpendicular to
	// the joint frame's z axis.
	JointUniversal = JointType("rotate2")
	// JointBall allows unrestricted orientation (three rotational degrees
	// of freedom; four coordinates in quaternion mode).
	JointBall = JointType("rotate3")
	// JointCartesian allows unrestricted translation.
	JointCartesian = JointType("translate")
	// JointFreeLine is the free joint for a body with no inertia about one
	// axis: translation plus the two perpendicular rotations.
	JointFreeLine = JointType("diatom")
	// JointFree allows unrestricted translation and orientation.
	JointFree = JointType("full")
)

// NewNode constructs the node variant matching the joint type tag and
// claims the node's slice of the state vectors by advancing the shared
// offset counter by the variant's state width. Reversed joints and
// unimplemented tags are configuration errors.
func NewNode(
	m MassProperties,
	jointFrame spatialmath.Frame,
	jointType JointType,
	reversed bool,
	useEulerAngles bool,
	nextStateOffset *int,
) (Node, error) {
	if reversed {
		return nil, ErrReversedJoint
	}

	switch jointType {
	case JointGround:
		return newGroundNode(), nil
	case JointTorsion:
		return newNodeSpec(m, jointFrame, pinJoint{}, 1, nextStateOffset), nil
	case JointUniversal:
		return newNodeSpec(m, jointFrame, universalJoint{}, 2, nextStateOffset), nil
	case JointBall:
		return newNodeSpec(m, jointFrame, ballJoint{orientation: newBallOrientation(useEulerAngles)}, 3, nextStateOffset), nil
	case JointCartesian:
		return newNodeSpec(m, jointFrame, translateJoint{}, 3, nextStateOffset), nil
	case JointFreeLine:
		return newNodeSpec(m, jointFrame, diatomJoint{}, 5, nextStateOffset), nil
	case JointFree:
		return newNodeSpec(m, jointFrame, freeJoint{orientation: newBallOrientation(useEulerAngles)}, 6, nextStateOffset), nil
	default:
		return nil, NewUnsupportedJointTypeError(jointType)
	}
}

func newBallOrientation(useEulerAngles bool) ballOrientation {
	if useEulerAngles {
		return &eulerOrientation{}
	}
	return newQuaternionOrientation()
}
