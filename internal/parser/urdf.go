package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robot-workbench/backend/internal/models"
)

// URDF decoder defaults, applied per missing attribute.
const (
	defaultVisualColor   = "#0000ff"
	defaultLimitLower    = -1.57
	defaultLimitUpper    = 1.57
	defaultLimitEffort   = 100
	defaultLimitVelocity = 10
)

// Raw XML shapes shared by the URDF decoder and encoder. All numeric fields
// stay strings so that one malformed attribute never aborts the whole
// unmarshal; conversion happens per field with a documented default.

type urdfXML struct {
	XMLName   xml.Name          `xml:"robot"`
	Name      string            `xml:"name,attr"`
	Materials []urdfMaterialXML `xml:"material"`
	Links     []urdfLinkXML     `xml:"link"`
	Joints    []urdfJointXML    `xml:"joint"`
	Gazebos   []urdfGazeboXML   `xml:"gazebo"`
}

type urdfMaterialXML struct {
	Name  string        `xml:"name,attr,omitempty"`
	Color *urdfColorXML `xml:"color"`
}

type urdfColorXML struct {
	RGBA string `xml:"rgba,attr"`
}

type urdfGazeboXML struct {
	Reference string `xml:"reference,attr"`
	Material  string `xml:"material"`
}

type urdfLinkXML struct {
	Name      string           `xml:"name,attr"`
	Visual    *urdfShapeXML    `xml:"visual"`
	Collision *urdfShapeXML    `xml:"collision"`
	Inertial  *urdfInertialXML `xml:"inertial"`
}

type urdfShapeXML struct {
	Origin   *urdfOriginXML   `xml:"origin"`
	Geometry *urdfGeometryXML `xml:"geometry"`
	Material *urdfMaterialXML `xml:"material"`
}

type urdfOriginXML struct {
	XYZ string `xml:"xyz,attr,omitempty"`
	RPY string `xml:"rpy,attr,omitempty"`
}

type urdfGeometryXML struct {
	Box      *urdfBoxXML      `xml:"box"`
	Cylinder *urdfCylinderXML `xml:"cylinder"`
	Sphere   *urdfSphereXML   `xml:"sphere"`
	Mesh     *urdfMeshXML     `xml:"mesh"`
}

type urdfBoxXML struct {
	Size string `xml:"size,attr"`
}

type urdfCylinderXML struct {
	Radius string `xml:"radius,attr"`
	Length string `xml:"length,attr"`
}

type urdfSphereXML struct {
	Radius string `xml:"radius,attr"`
}

type urdfMeshXML struct {
	Filename string `xml:"filename,attr"`
	Scale    string `xml:"scale,attr,omitempty"`
}

type urdfInertialXML struct {
	Origin  *urdfOriginXML  `xml:"origin"`
	Mass    *urdfMassXML    `xml:"mass"`
	Inertia *urdfInertiaXML `xml:"inertia"`
}

type urdfMassXML struct {
	Value string `xml:"value,attr"`
}

type urdfInertiaXML struct {
	IXX string `xml:"ixx,attr"`
	IXY string `xml:"ixy,attr"`
	IXZ string `xml:"ixz,attr"`
	IYY string `xml:"iyy,attr"`
	IYZ string `xml:"iyz,attr"`
	IZZ string `xml:"izz,attr"`
}

type urdfJointXML struct {
	Name     string           `xml:"name,attr"`
	Type     string           `xml:"type,attr"`
	Parent   *urdfLinkRefXML  `xml:"parent"`
	Child    *urdfLinkRefXML  `xml:"child"`
	Origin   *urdfOriginXML   `xml:"origin"`
	Axis     *urdfAxisXML     `xml:"axis"`
	Limit    *urdfLimitXML    `xml:"limit"`
	Dynamics *urdfDynamicsXML `xml:"dynamics"`
	Hardware *urdfHardwareXML `xml:"hardware"`
}

type urdfLinkRefXML struct {
	Link string `xml:"link,attr"`
}

type urdfAxisXML struct {
	XYZ string `xml:"xyz,attr"`
}

type urdfLimitXML struct {
	Lower    string `xml:"lower,attr,omitempty"`
	Upper    string `xml:"upper,attr,omitempty"`
	Effort   string `xml:"effort,attr,omitempty"`
	Velocity string `xml:"velocity,attr,omitempty"`
}

type urdfDynamicsXML struct {
	Damping  string `xml:"damping,attr,omitempty"`
	Friction string `xml:"friction,attr,omitempty"`
}

type urdfHardwareXML struct {
	Motor     string `xml:"motor,attr"`
	ID        string `xml:"id,attr"`
	Direction string `xml:"direction,attr"`
	Armature  string `xml:"armature,attr"`
}

// URDFDecoder handles the rigid-body URDF dialect, the primary interchange
// format (the only one with encoder support).
type URDFDecoder struct {
	palette *Palette
}

func NewURDFDecoder() *URDFDecoder {
	return &URDFDecoder{}
}

func (d *URDFDecoder) Name() string {
	return "urdf"
}

// SetPalette installs a user material palette consulted by the simulator
// fallback color lookup.
func (d *URDFDecoder) SetPalette(p *Palette) {
	d.palette = p
}

func (d *URDFDecoder) Sniff(filename string, data []byte) bool {
	return bytes.Contains(probeWindow(data), []byte("<robot"))
}

// Decode parses a URDF document. It fails only when the <robot> root element
// is absent; every missing or malformed field resolves to its documented
// default.
func (d *URDFDecoder) Decode(data []byte) (*models.Robot, []models.DecodeWarning, error) {
	var doc urdfXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("not a URDF document: %w", err)
	}
	if len(doc.Links) == 0 {
		return nil, nil, fmt.Errorf("URDF document declares no links")
	}

	name := doc.Name
	if name == "" {
		name = "robot"
	}
	robot := models.NewRobot(name)
	var warnings []models.DecodeWarning

	// Global material table and per-link simulator fallback table.
	globals := make(map[string]string, len(doc.Materials))
	for _, m := range doc.Materials {
		if m.Name != "" && m.Color != nil {
			globals[m.Name] = HexColor(m.Color.RGBA)
		}
	}
	gazeboRefs := make(map[string]string, len(doc.Gazebos))
	for _, g := range doc.Gazebos {
		if g.Reference != "" && g.Material != "" {
			gazeboRefs[g.Reference] = strings.TrimSpace(g.Material)
		}
	}

	for _, l := range doc.Links {
		link := &models.Link{
			ID:       l.Name,
			Name:     l.Name,
			Visual:   d.decodeShape(l.Visual, l.Name, globals, gazeboRefs, true),
			Inertial: decodeInertial(l.Inertial),
		}
		if l.Collision != nil {
			col := d.decodeShape(l.Collision, l.Name, nil, nil, false)
			link.Collision = &col
		}
		robot.Links[link.ID] = link
	}

	for _, j := range doc.Joints {
		joint := decodeURDFJoint(j)
		robot.Joints[joint.ID] = joint
	}

	root, ok := robot.InferRoot()
	if !ok {
		root = doc.Links[0].Name
		warnings = append(warnings, models.DecodeWarning{
			Code:   WarnRootFallback,
			Detail: fmt.Sprintf("no unique root link, falling back to first declared link %q", root),
		})
	}
	robot.Root = root

	return robot, warnings, nil
}

// decodeShape converts a visual or collision block. A nil block, or a block
// without a geometry element, yields the "none" descriptor. Color resolution
// (visual only) tries, in order: inline material color, named global
// material, simulator fallback for this link, default blue.
func (d *URDFDecoder) decodeShape(s *urdfShapeXML, linkName string, globals, gazeboRefs map[string]string, visual bool) models.Geometry {
	if s == nil || s.Geometry == nil {
		return models.NoGeometry()
	}

	geom := models.NoGeometry()
	switch g := s.Geometry; {
	case g.Box != nil:
		geom.Type = models.GeomBox
		geom.Dims = Vec3From(g.Box.Size)
	case g.Cylinder != nil:
		geom.Type = models.GeomCylinder
		geom.Dims = models.Vec3{parseFloatOr(g.Cylinder.Radius, 0), parseFloatOr(g.Cylinder.Length, 0), 0}
	case g.Sphere != nil:
		geom.Type = models.GeomSphere
		geom.Dims = models.Vec3{parseFloatOr(g.Sphere.Radius, 0), 0, 0}
	case g.Mesh != nil:
		geom.Type = models.GeomMesh
		// Asset lookup downstream is by file name only, so path prefixes
		// (including package:// URIs) are stripped here.
		geom.MeshFile = filepath.Base(strings.TrimSpace(g.Mesh.Filename))
		geom.MeshScale = ScaleVec(g.Mesh.Scale)
	default:
		return models.NoGeometry()
	}

	geom.Origin = decodeOrigin(s.Origin)

	if visual {
		geom.Color = d.resolveColor(s.Material, linkName, globals, gazeboRefs)
	}

	return geom
}

func (d *URDFDecoder) resolveColor(m *urdfMaterialXML, linkName string, globals, gazeboRefs map[string]string) string {
	if m != nil {
		if m.Color != nil {
			return HexColor(m.Color.RGBA)
		}
		if hex, ok := globals[m.Name]; ok {
			return hex
		}
	}
	if matName, ok := gazeboRefs[linkName]; ok {
		if hex, ok := d.palette.Lookup(matName); ok {
			return hex
		}
	}
	return defaultVisualColor
}

func decodeOrigin(o *urdfOriginXML) models.Transform {
	if o == nil {
		return models.Transform{}
	}
	return models.Transform{XYZ: Vec3From(o.XYZ), RPY: Vec3From(o.RPY)}
}

func decodeInertial(in *urdfInertialXML) models.Inertial {
	if in == nil {
		return models.Inertial{}
	}
	out := models.Inertial{Origin: decodeOrigin(in.Origin)}
	if in.Mass != nil {
		out.Mass = parseFloatOr(in.Mass.Value, 0)
	}
	if in.Inertia != nil {
		out.Inertia = [6]float64{
			parseFloatOr(in.Inertia.IXX, 0),
			parseFloatOr(in.Inertia.IXY, 0),
			parseFloatOr(in.Inertia.IXZ, 0),
			parseFloatOr(in.Inertia.IYY, 0),
			parseFloatOr(in.Inertia.IYZ, 0),
			parseFloatOr(in.Inertia.IZZ, 0),
		}
	}
	return out
}

func decodeURDFJoint(j urdfJointXML) *models.Joint {
	joint := &models.Joint{
		ID:   j.Name,
		Name: j.Name,
		Type: urdfJointType(j.Type),
		Axis: models.Vec3{0, 0, 1},
		Limits: models.Limits{
			Lower:    defaultLimitLower,
			Upper:    defaultLimitUpper,
			Effort:   defaultLimitEffort,
			Velocity: defaultLimitVelocity,
		},
	}
	if j.Parent != nil {
		joint.Parent = j.Parent.Link
	}
	if j.Child != nil {
		joint.Child = j.Child.Link
	}
	joint.Origin = decodeOrigin(j.Origin)
	if j.Axis != nil && strings.TrimSpace(j.Axis.XYZ) != "" {
		joint.Axis = Vec3From(j.Axis.XYZ)
	}
	if j.Limit != nil {
		joint.Limits = models.Limits{
			Lower:    parseFloatOr(j.Limit.Lower, defaultLimitLower),
			Upper:    parseFloatOr(j.Limit.Upper, defaultLimitUpper),
			Effort:   parseFloatOr(j.Limit.Effort, defaultLimitEffort),
			Velocity: parseFloatOr(j.Limit.Velocity, defaultLimitVelocity),
		}
	}
	if j.Dynamics != nil {
		joint.Dynamics = models.Dynamics{
			Damping:  parseFloatOr(j.Dynamics.Damping, 0),
			Friction: parseFloatOr(j.Dynamics.Friction, 0),
		}
	}
	// The hardware record is always present on decoded URDF joints; an
	// absent sub-block decodes to the documented defaults so that the
	// extended export mode round-trips exactly.
	hw := models.DefaultHardware()
	if j.Hardware != nil {
		if j.Hardware.Motor != "" {
			hw.MotorType = j.Hardware.Motor
		}
		hw.MotorID = j.Hardware.ID
		if dir := parseIntOr(j.Hardware.Direction, 1); dir == -1 {
			hw.Direction = -1
		}
		hw.Armature = parseFloatOr(j.Hardware.Armature, 0)
	}
	joint.Hardware = hw
	return joint
}

func urdfJointType(s string) models.JointType {
	switch models.JointType(strings.TrimSpace(s)) {
	case models.JointFixed:
		return models.JointFixed
	case models.JointContinuous:
		return models.JointContinuous
	case models.JointPrismatic:
		return models.JointPrismatic
	default:
		return models.JointRevolute
	}
}

// probeWindow returns the leading slice of data used by content sniffers.
func probeWindow(data []byte) []byte {
	const window = 4096
	if len(data) > window {
		return data[:window]
	}
	return data
}
