// Package models contains the canonical kinematic-tree types that all
// robot-description decoders target and the URDF encoder reads.
package models

import "fmt"

// Vec3 is a 3-component vector. Component semantics depend on context
// (position, Euler angles, geometry dimensions).
type Vec3 [3]float64

// Transform is a rigid-body transform: translation plus roll-pitch-yaw,
// expressed in the parent frame.
type Transform struct {
	XYZ Vec3 `json:"xyz"`
	RPY Vec3 `json:"rpy"`
}

// Robot is the shared in-memory model produced by every decoder.
// It is built atomically: a decoder either returns a complete Robot or
// nothing. The editing layer replaces whole link/joint entries, never
// mutates them in place.
type Robot struct {
	Name   string            `json:"name"`
	Links  map[string]*Link  `json:"links"`
	Joints map[string]*Joint `json:"joints"`
	Root   string            `json:"root"`
}

// NewRobot creates an empty Robot with the given name.
func NewRobot(name string) *Robot {
	return &Robot{
		Name:   name,
		Links:  make(map[string]*Link),
		Joints: make(map[string]*Joint),
	}
}

// InferRoot returns the unique link id that is never referenced as a joint
// child. The second return value is false when no such unique link exists
// (zero candidates or more than one).
func (r *Robot) InferRoot() (string, bool) {
	children := make(map[string]struct{}, len(r.Joints))
	for _, j := range r.Joints {
		children[j.Child] = struct{}{}
	}

	var root string
	count := 0
	for id := range r.Links {
		if _, ok := children[id]; !ok {
			root = id
			count++
		}
	}

	if count != 1 {
		return "", false
	}
	return root, true
}

// Validate checks the structural invariants every decoded Robot must satisfy:
// joint endpoints reference existing links, the root is the unique link with
// no incoming joint edge, and a walk from the root reaches every link exactly
// once (tree, not DAG).
func (r *Robot) Validate() error {
	if len(r.Links) == 0 {
		return fmt.Errorf("robot has no links")
	}

	for id, j := range r.Joints {
		if _, ok := r.Links[j.Parent]; !ok {
			return fmt.Errorf("joint %s references missing parent link %s", id, j.Parent)
		}
		if _, ok := r.Links[j.Child]; !ok {
			return fmt.Errorf("joint %s references missing child link %s", id, j.Child)
		}
	}

	if _, ok := r.Links[r.Root]; !ok {
		return fmt.Errorf("root link %s does not exist", r.Root)
	}

	order, err := r.WalkOrder()
	if err != nil {
		return err
	}
	if len(order) != len(r.Links) {
		return fmt.Errorf("tree walk from root reaches %d of %d links", len(order), len(r.Links))
	}

	return nil
}

// WalkOrder returns link ids in breadth-first order from the root.
// It fails if a link is reachable through more than one joint (cycle or
// duplicate child edge).
func (r *Robot) WalkOrder() ([]string, error) {
	childJoints := make(map[string][]*Joint, len(r.Links))
	for _, j := range r.Joints {
		childJoints[j.Parent] = append(childJoints[j.Parent], j)
	}

	visited := make(map[string]struct{}, len(r.Links))
	order := make([]string, 0, len(r.Links))
	queue := []string{r.Root}
	visited[r.Root] = struct{}{}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, j := range childJoints[id] {
			if _, seen := visited[j.Child]; seen {
				return nil, fmt.Errorf("link %s reached twice (via joint %s)", j.Child, j.ID)
			}
			visited[j.Child] = struct{}{}
			queue = append(queue, j.Child)
		}
	}

	return order, nil
}

// DecodeWarning is a non-fatal inconsistency surfaced by a decoder, distinct
// from outright decode failure. The decode result is still usable.
type DecodeWarning struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}
