package models

// Link is a rigid body node in the kinematic tree.
type Link struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Visual    Geometry  `json:"visual"`
	Collision *Geometry `json:"collision,omitempty"` // nil means "no collision shape"
	Inertial  Inertial  `json:"inertial"`
	Visible   *bool     `json:"visible,omitempty"`
}

// Inertial holds mass properties. Inertia components are ordered
// ixx, ixy, ixz, iyy, iyz, izz (symmetric tensor, upper triangle).
type Inertial struct {
	Mass    float64    `json:"mass"`
	Inertia [6]float64 `json:"inertia"`
	Origin  Transform  `json:"origin"`
}
