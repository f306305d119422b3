package models

// JointType enumerates the kinematic joint types of the canonical model.
type JointType string

const (
	JointFixed      JointType = "fixed"
	JointRevolute   JointType = "revolute"
	JointContinuous JointType = "continuous"
	JointPrismatic  JointType = "prismatic"
)

// Limits are motion limits. They are always populated, even for joint types
// that ignore them, so that re-encoding preserves the decoder defaults.
type Limits struct {
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Effort   float64 `json:"effort"`
	Velocity float64 `json:"velocity"`
}

// Dynamics is the damping/friction pair of a joint.
type Dynamics struct {
	Damping  float64 `json:"damping"`
	Friction float64 `json:"friction"`
}

// Hardware binds a joint to a physical actuator. Only the extended URDF
// export mode emits it.
type Hardware struct {
	MotorType string  `json:"motorType"`
	MotorID   string  `json:"motorId"`
	Direction int     `json:"direction"` // sign convention, +1 or -1
	Armature  float64 `json:"armature"`
}

// DefaultHardware returns the hardware record used when a joint carries no
// explicit binding.
func DefaultHardware() *Hardware {
	return &Hardware{MotorType: "None", MotorID: "", Direction: 1, Armature: 0}
}

// Joint is a directed edge between two links. Origin is expressed in the
// parent link's frame. Axis is stored as authored, without normalization.
type Joint struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     JointType `json:"type"`
	Parent   string    `json:"parent"`
	Child    string    `json:"child"`
	Origin   Transform `json:"origin"`
	Axis     Vec3      `json:"axis"`
	Limits   Limits    `json:"limits"`
	Dynamics Dynamics  `json:"dynamics"`
	Hardware *Hardware `json:"hardware,omitempty"`
}
