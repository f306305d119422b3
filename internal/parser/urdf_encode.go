package parser

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/robot-workbench/backend/internal/models"
)

// EncodeMode selects the URDF export variant.
type EncodeMode int

const (
	// EncodeStandard emits plain URDF without hardware bindings.
	EncodeStandard EncodeMode = iota
	// EncodeExtended always emits the hardware block, substituting defaults
	// for joints that carry no explicit binding.
	EncodeExtended
)

// EncodeURDF serializes a canonical Robot to URDF text. The output is the
// inverse of the URDF decoder: decoding it again yields a field-for-field
// identical Robot. Geometry of type "none" encodes as an absent
// visual/collision element. Elements are emitted in sorted id order so the
// output is deterministic; whitespace and numeric formatting are otherwise
// unspecified.
func EncodeURDF(r *models.Robot, mode EncodeMode) ([]byte, error) {
	doc := urdfXML{Name: r.Name}

	for _, id := range sortedKeys(r.Links) {
		l, err := encodeLink(r.Links[id])
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", id, err)
		}
		doc.Links = append(doc.Links, l)
	}

	for _, id := range sortedKeys(r.Joints) {
		doc.Joints = append(doc.Joints, encodeJoint(r.Joints[id], mode))
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling URDF: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func encodeLink(l *models.Link) (urdfLinkXML, error) {
	out := urdfLinkXML{Name: l.ID}

	visual, err := encodeShape(&l.Visual, true)
	if err != nil {
		return out, err
	}
	out.Visual = visual

	if l.Collision != nil {
		collision, err := encodeShape(l.Collision, false)
		if err != nil {
			return out, err
		}
		out.Collision = collision
	}

	out.Inertial = encodeInertial(l.Inertial)
	return out, nil
}

// encodeShape returns nil for geometry type "none" so that re-decoding
// restores the same descriptor.
func encodeShape(g *models.Geometry, visual bool) (*urdfShapeXML, error) {
	geomXML := &urdfGeometryXML{}
	switch g.Type {
	case models.GeomNone:
		return nil, nil
	case models.GeomBox:
		geomXML.Box = &urdfBoxXML{Size: fvec(g.Dims)}
	case models.GeomCylinder:
		geomXML.Cylinder = &urdfCylinderXML{Radius: fnum(g.Dims[0]), Length: fnum(g.Dims[1])}
	case models.GeomSphere:
		geomXML.Sphere = &urdfSphereXML{Radius: fnum(g.Dims[0])}
	case models.GeomMesh:
		mesh := &urdfMeshXML{Filename: g.MeshFile}
		if g.MeshScale != (models.Vec3{1, 1, 1}) {
			mesh.Scale = fvec(g.MeshScale)
		}
		geomXML.Mesh = mesh
	default:
		return nil, fmt.Errorf("unknown geometry type %q", g.Type)
	}

	shape := &urdfShapeXML{
		Origin:   encodeOrigin(g.Origin),
		Geometry: geomXML,
	}
	if visual && g.Color != "" {
		shape.Material = &urdfMaterialXML{Color: &urdfColorXML{RGBA: hexToRGBA(g.Color)}}
	}
	return shape, nil
}

func encodeOrigin(t models.Transform) *urdfOriginXML {
	if t == (models.Transform{}) {
		return nil
	}
	o := &urdfOriginXML{}
	if t.XYZ != (models.Vec3{}) {
		o.XYZ = fvec(t.XYZ)
	}
	if t.RPY != (models.Vec3{}) {
		o.RPY = fvec(t.RPY)
	}
	return o
}

func encodeInertial(in models.Inertial) *urdfInertialXML {
	if in == (models.Inertial{}) {
		return nil
	}
	return &urdfInertialXML{
		Origin: encodeOrigin(in.Origin),
		Mass:   &urdfMassXML{Value: fnum(in.Mass)},
		Inertia: &urdfInertiaXML{
			IXX: fnum(in.Inertia[0]),
			IXY: fnum(in.Inertia[1]),
			IXZ: fnum(in.Inertia[2]),
			IYY: fnum(in.Inertia[3]),
			IYZ: fnum(in.Inertia[4]),
			IZZ: fnum(in.Inertia[5]),
		},
	}
}

func encodeJoint(j *models.Joint, mode EncodeMode) urdfJointXML {
	out := urdfJointXML{
		Name:   j.ID,
		Type:   string(j.Type),
		Parent: &urdfLinkRefXML{Link: j.Parent},
		Child:  &urdfLinkRefXML{Link: j.Child},
		Origin: encodeOrigin(j.Origin),
		Axis:   &urdfAxisXML{XYZ: fvec(j.Axis)},
		Limit: &urdfLimitXML{
			Lower:    fnum(j.Limits.Lower),
			Upper:    fnum(j.Limits.Upper),
			Effort:   fnum(j.Limits.Effort),
			Velocity: fnum(j.Limits.Velocity),
		},
	}

	if j.Dynamics != (models.Dynamics{}) {
		out.Dynamics = &urdfDynamicsXML{
			Damping:  fnum(j.Dynamics.Damping),
			Friction: fnum(j.Dynamics.Friction),
		}
	}

	// Standard mode drops hardware bindings; extended mode always emits the
	// block, including default values.
	if mode == EncodeExtended {
		hw := j.Hardware
		if hw == nil {
			hw = models.DefaultHardware()
		}
		out.Hardware = &urdfHardwareXML{
			Motor:     hw.MotorType,
			ID:        hw.MotorID,
			Direction: strconv.Itoa(hw.Direction),
			Armature:  fnum(hw.Armature),
		}
	}

	return out
}

// hexToRGBA converts "#rrggbb" back to a "r g b 1" float tuple. Components
// are exact multiples of 1/255, so the decoder's truncating conversion
// restores the original hex string.
func hexToRGBA(hex string) string {
	var r, g, b int
	if len(hex) == 7 {
		fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b)
	}
	return fmt.Sprintf("%s %s %s 1", fnum(float64(r)/255), fnum(float64(g)/255), fnum(float64(b)/255))
}

func fnum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func fvec(v models.Vec3) string {
	parts := []string{fnum(v[0]), fnum(v[1]), fnum(v[2])}
	return strings.Join(parts, " ")
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
