package models

// GeometryType enumerates the closed set of shapes the canonical model
// understands. Decoders map dialect-specific vocabularies onto this set;
// the encoder switches over it exhaustively.
type GeometryType string

const (
	GeomNone     GeometryType = "none"
	GeomBox      GeometryType = "box"
	GeomCylinder GeometryType = "cylinder"
	GeomSphere   GeometryType = "sphere"
	GeomMesh     GeometryType = "mesh"
)

// Geometry describes one visual or collision shape. Dims semantics are
// type-dependent: box = full extents, cylinder = radius in X and length in Y,
// sphere = radius in X. Mesh shapes carry a file reference (base name only;
// asset resolution is the caller's responsibility) plus a per-axis scale.
type Geometry struct {
	Type      GeometryType `json:"type"`
	Dims      Vec3         `json:"dims"`
	MeshFile  string       `json:"meshFile,omitempty"`
	MeshScale Vec3         `json:"meshScale"`
	Origin    Transform    `json:"origin"`
	Color     string       `json:"color,omitempty"` // "#rrggbb", visual shapes only
}

// NoGeometry returns the descriptor for "no shape here".
func NoGeometry() Geometry {
	return Geometry{Type: GeomNone, MeshScale: Vec3{1, 1, 1}}
}
