package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robot-workbench/backend/internal/models"
)

// maxBodyDepth caps the body-tree recursion, mirroring the defensive depth
// guard used by the render traversal. Deeper bodies are dropped with a
// warning instead of risking unbounded recursion on adversarial input.
const maxBodyDepth = 64

// mjcfDefaultColor is applied to geoms without an rgba attribute.
const mjcfDefaultColor = "#808080"

type mjcfXML struct {
	XMLName   xml.Name     `xml:"mujoco"`
	Model     string       `xml:"model,attr"`
	Asset     mjcfAssetXML `xml:"asset"`
	Worldbody mjcfBodyXML  `xml:"worldbody"`
}

type mjcfAssetXML struct {
	Meshes []mjcfMeshXML `xml:"mesh"`
}

type mjcfMeshXML struct {
	Name  string `xml:"name,attr"`
	File  string `xml:"file,attr"`
	Scale string `xml:"scale,attr"`
}

type mjcfBodyXML struct {
	Name     string           `xml:"name,attr"`
	Pos      string           `xml:"pos,attr"`
	Euler    string           `xml:"euler,attr"`
	Quat     string           `xml:"quat,attr"`
	Inertial *mjcfInertialXML `xml:"inertial"`
	Geoms    []mjcfGeomXML    `xml:"geom"`
	Joints   []mjcfJointXML   `xml:"joint"`
	Bodies   []mjcfBodyXML    `xml:"body"`
}

type mjcfInertialXML struct {
	Pos         string `xml:"pos,attr"`
	Mass        string `xml:"mass,attr"`
	DiagInertia string `xml:"diaginertia,attr"`
}

type mjcfGeomXML struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr"`
	Size  string `xml:"size,attr"`
	Pos   string `xml:"pos,attr"`
	Euler string `xml:"euler,attr"`
	Quat  string `xml:"quat,attr"`
	RGBA  string `xml:"rgba,attr"`
	Mesh  string `xml:"mesh,attr"`
}

type mjcfJointXML struct {
	Name         string `xml:"name,attr"`
	Type         string `xml:"type,attr"`
	Axis         string `xml:"axis,attr"`
	Range        string `xml:"range,attr"`
	Damping      string `xml:"damping,attr"`
	FrictionLoss string `xml:"frictionloss,attr"`
}

// mjcfMesh is a resolved asset entry.
type mjcfMesh struct {
	file  string
	scale models.Vec3
}

// MJCFDecoder handles the MuJoCo physics-simulator XML dialect.
//
// Known lossy approximations, preserved from the reference behavior rather
// than silently "fixed": only the first geom of a body becomes the link's
// visual geometry, only the first joint definition becomes the connecting
// joint, ball/free joints collapse to continuous, capsule collapses to
// cylinder and plane to box.
type MJCFDecoder struct{}

func NewMJCFDecoder() *MJCFDecoder {
	return &MJCFDecoder{}
}

func (d *MJCFDecoder) Name() string {
	return "mjcf"
}

func (d *MJCFDecoder) Sniff(filename string, data []byte) bool {
	return bytes.Contains(probeWindow(data), []byte("<mujoco"))
}

// mjcfWalk is the accumulator threaded through the body-tree recursion.
type mjcfWalk struct {
	robot    *models.Robot
	warnings []models.DecodeWarning
	meshes   map[string]mjcfMesh
	autoID   int
}

// Decode parses an MJCF document. It fails only when the <mujoco> root
// element is absent or the worldbody declares no bodies.
func (d *MJCFDecoder) Decode(data []byte) (*models.Robot, []models.DecodeWarning, error) {
	var doc mjcfXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("not an MJCF document: %w", err)
	}
	if len(doc.Worldbody.Bodies) == 0 {
		return nil, nil, fmt.Errorf("MJCF worldbody declares no bodies")
	}

	name := doc.Model
	if name == "" {
		name = "robot"
	}

	w := &mjcfWalk{
		robot:  models.NewRobot(name),
		meshes: make(map[string]mjcfMesh, len(doc.Asset.Meshes)),
	}
	for _, m := range doc.Asset.Meshes {
		if m.Name == "" {
			continue
		}
		w.meshes[m.Name] = mjcfMesh{
			file:  filepath.Base(strings.TrimSpace(m.File)),
			scale: ScaleVec(m.Scale),
		}
	}

	for i, b := range doc.Worldbody.Bodies {
		if i == 0 {
			rootID := w.walkBody(b, "", 0)
			w.robot.Root = rootID
			continue
		}
		// Additional top-level bodies cannot form a second root in a tree
		// model; attach them under the first root and surface the fallback.
		id := w.walkBody(b, w.robot.Root, 0)
		w.warnings = append(w.warnings, models.DecodeWarning{
			Code:   WarnExtraRoot,
			Detail: fmt.Sprintf("top-level body %q attached to root %q", id, w.robot.Root),
		})
	}

	return w.robot, w.warnings, nil
}

// walkBody converts one body element into a link plus, for non-root bodies,
// the synthetic joint connecting it to its parent. It returns the new link
// id and recurses into child bodies.
func (w *mjcfWalk) walkBody(b mjcfBodyXML, parentID string, depth int) string {
	if depth > maxBodyDepth {
		w.warnings = append(w.warnings, models.DecodeWarning{
			Code:   WarnDepthCap,
			Detail: fmt.Sprintf("body tree deeper than %d levels, subtree dropped", maxBodyDepth),
		})
		return parentID
	}

	id := b.Name
	if id == "" {
		w.autoID++
		id = fmt.Sprintf("body_%d", w.autoID)
	}

	link := &models.Link{
		ID:       id,
		Name:     id,
		Visual:   w.bodyGeometry(b),
		Inertial: mjcfInertial(b.Inertial),
	}
	w.robot.Links[id] = link

	if parentID != "" {
		joint := w.bodyJoint(b, id, parentID)
		w.robot.Joints[joint.ID] = joint
	}

	for _, child := range b.Bodies {
		w.walkBody(child, id, depth+1)
	}

	return id
}

// bodyGeometry maps the body's first geom onto the canonical descriptor.
// Subsequent geoms are dropped. A body without geoms yields a default-sized
// placeholder box rather than a failure.
func (w *mjcfWalk) bodyGeometry(b mjcfBodyXML) models.Geometry {
	if len(b.Geoms) == 0 {
		geom := models.NoGeometry()
		geom.Type = models.GeomBox
		geom.Dims = models.Vec3{0.1, 0.1, 0.1}
		geom.Color = mjcfDefaultColor
		return geom
	}

	g := b.Geoms[0]
	geom := models.NoGeometry()
	size := Floats(g.Size, 3)

	// Geom type defaults to sphere in this dialect. Size semantics differ
	// per primitive: box sizes are half-extents, cylinder/capsule size is
	// [radius, half-length], sphere size is a bare radius.
	gtype := strings.TrimSpace(g.Type)
	if gtype == "" {
		gtype = "sphere"
	}
	switch gtype {
	case "box":
		geom.Type = models.GeomBox
		geom.Dims = models.Vec3{2 * size[0], 2 * size[1], 2 * size[2]}
	case "sphere":
		geom.Type = models.GeomSphere
		geom.Dims = models.Vec3{size[0], 0, 0}
	case "cylinder":
		geom.Type = models.GeomCylinder
		geom.Dims = models.Vec3{size[0], 2 * size[1], 0}
	case "capsule":
		// No capsule in the canonical model; approximated by a cylinder.
		geom.Type = models.GeomCylinder
		geom.Dims = models.Vec3{size[0], 2 * size[1], 0}
	case "plane":
		// No plane either; approximated by a thin box spanning the plane's
		// half-extents.
		geom.Type = models.GeomBox
		geom.Dims = models.Vec3{2 * size[0], 2 * size[1], 0.01}
	case "mesh":
		geom.Type = models.GeomMesh
		geom.MeshScale = models.Vec3{1, 1, 1}
		if m, ok := w.meshes[strings.TrimSpace(g.Mesh)]; ok {
			geom.MeshFile = m.file
			geom.MeshScale = m.scale
		}
	default:
		w.warnings = append(w.warnings, models.DecodeWarning{
			Code:   WarnUnknownShape,
			Detail: fmt.Sprintf("geom type %q replaced by placeholder box", gtype),
		})
		geom.Type = models.GeomBox
		geom.Dims = models.Vec3{0.1, 0.1, 0.1}
	}

	geom.Origin = mjcfTransform(g.Pos, g.Euler, g.Quat)
	if g.RGBA != "" {
		geom.Color = HexColor(g.RGBA)
	} else {
		geom.Color = mjcfDefaultColor
	}

	return geom
}

// bodyJoint builds the synthetic joint connecting a body to its parent from
// the body's first joint definition. A body without joints is fixed to its
// parent. The joint origin is the body's own frame transform.
func (w *mjcfWalk) bodyJoint(b mjcfBodyXML, childID, parentID string) *models.Joint {
	joint := &models.Joint{
		Type:   models.JointFixed,
		Parent: parentID,
		Child:  childID,
		Origin: mjcfTransform(b.Pos, b.Euler, b.Quat),
		Axis:   models.Vec3{0, 0, 1},
		Limits: models.Limits{
			Lower:    defaultLimitLower,
			Upper:    defaultLimitUpper,
			Effort:   defaultLimitEffort,
			Velocity: defaultLimitVelocity,
		},
	}

	if len(b.Joints) > 0 {
		j := b.Joints[0]
		joint.Type = w.mjcfJointType(j.Type, childID)
		if strings.TrimSpace(j.Axis) != "" {
			joint.Axis = Vec3From(j.Axis)
		}
		if strings.TrimSpace(j.Range) != "" {
			r := Floats(j.Range, 2)
			joint.Limits.Lower = r[0]
			joint.Limits.Upper = r[1]
		}
		joint.Dynamics = models.Dynamics{
			Damping:  parseFloatOr(j.Damping, 0),
			Friction: parseFloatOr(j.FrictionLoss, 0),
		}
		if j.Name != "" {
			joint.ID = j.Name
		}
	}

	if joint.ID == "" {
		joint.ID = childID + "_joint"
	}
	joint.Name = joint.ID

	return joint
}

// mjcfJointType maps simulator joint types onto the canonical set. Ball and
// free joints have no canonical counterpart and collapse to continuous, a
// deliberate lossy approximation.
func (w *mjcfWalk) mjcfJointType(s, bodyID string) models.JointType {
	switch strings.TrimSpace(s) {
	case "", "hinge":
		return models.JointRevolute
	case "slide":
		return models.JointPrismatic
	case "ball", "free":
		w.warnings = append(w.warnings, models.DecodeWarning{
			Code:   WarnLossyJoint,
			Detail: fmt.Sprintf("body %q: %s joint approximated as continuous", bodyID, strings.TrimSpace(s)),
		})
		return models.JointContinuous
	default:
		return models.JointRevolute
	}
}

// mjcfTransform builds a Transform from pos plus either euler or quat
// attributes. Euler takes precedence when both are present; the quaternion
// is (w, x, y, z).
func mjcfTransform(pos, euler, quat string) models.Transform {
	t := models.Transform{XYZ: Vec3From(pos)}
	switch {
	case strings.TrimSpace(euler) != "":
		t.RPY = Vec3From(euler)
	case strings.TrimSpace(quat) != "":
		q := Floats(quat, 4)
		t.RPY = quatToRPY(q[0], q[1], q[2], q[3])
	}
	return t
}

func mjcfInertial(in *mjcfInertialXML) models.Inertial {
	if in == nil {
		return models.Inertial{}
	}
	diag := Floats(in.DiagInertia, 3)
	return models.Inertial{
		Mass:    parseFloatOr(in.Mass, 0),
		Inertia: [6]float64{diag[0], 0, 0, diag[1], 0, diag[2]},
		Origin:  models.Transform{XYZ: Vec3From(in.Pos)},
	}
}
