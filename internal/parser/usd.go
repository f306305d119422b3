package parser

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/robot-workbench/backend/internal/models"
)

// usdValue is the decoded form of a property's right-hand side. The value
// grammar is recursive: tuples can nest tuples.
type usdValue struct {
	kind  usdValueKind
	str   string
	num   float64
	b     bool
	items []usdValue
}

type usdValueKind int

const (
	usdString usdValueKind = iota
	usdNumber
	usdBool
	usdTuple
	usdRaw
)

// parseUSDValue decodes a single value token. Unrecognized shapes (asset
// references and the like) are carried through as raw text.
func parseUSDValue(s string) usdValue {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return usdValue{kind: usdRaw}
	case s[0] == '"' || s[0] == '\'':
		return usdValue{kind: usdString, str: strings.Trim(s, string(s[0]))}
	case s[0] == '(' || s[0] == '[':
		inner := s[1 : len(s)-1]
		v := usdValue{kind: usdTuple}
		for _, part := range splitTopLevel(inner) {
			v.items = append(v.items, parseUSDValue(part))
		}
		return v
	case s == "true" || s == "false":
		return usdValue{kind: usdBool, b: s == "true"}
	default:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return usdValue{kind: usdNumber, num: n}
		}
		return usdValue{kind: usdRaw, str: s}
	}
}

// splitTopLevel splits tuple contents on commas at bracket depth zero.
func splitTopLevel(s string) []string {
	var (
		parts []string
		start int
		depth int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// vec3 flattens a 3-tuple value. A nested single-tuple (the common
// one-element array form of displayColor) unwraps first.
func (v usdValue) vec3() models.Vec3 {
	if v.kind == usdTuple && len(v.items) == 1 && v.items[0].kind == usdTuple {
		return v.items[0].vec3()
	}
	var out models.Vec3
	if v.kind != usdTuple {
		return out
	}
	for i := 0; i < len(v.items) && i < 3; i++ {
		if v.items[i].kind == usdNumber {
			out[i] = v.items[i].num
		}
	}
	return out
}

func (v usdValue) number(def float64) float64 {
	if v.kind == usdNumber {
		return v.num
	}
	return def
}

// usdPrim is one node of the parsed prim tree.
type usdPrim struct {
	Type     string
	Name     string
	Path     string
	Props    map[string]usdValue
	Children []*usdPrim
}

// usdParser walks the token stream produced by usdTokens.
type usdParser struct {
	tokens []string
	pos    int
}

func (p *usdParser) next() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	t := p.tokens[p.pos]
	p.pos++
	return t, true
}

func (p *usdParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

// parsePrims consumes tokens until end of stream or a closing brace,
// collecting the def/over/class blocks found at this level. Stray tokens
// between prims (layer metadata, typed declarations) are skipped.
func (p *usdParser) parsePrims(parentPath string) []*usdPrim {
	var prims []*usdPrim
	for {
		tok, ok := p.next()
		if !ok {
			return prims
		}
		switch tok {
		case "}":
			return prims
		case "def", "over", "class":
			if prim := p.parsePrim(parentPath); prim != nil {
				prims = append(prims, prim)
			}
		}
	}
}

// parsePrim parses `<Type> "<Name>" ( meta )? { ... }` after the def/over/
// class keyword has been consumed. A block whose header cannot be completed
// is abandoned, not fatal.
func (p *usdParser) parsePrim(parentPath string) *usdPrim {
	tok, ok := p.next()
	if !ok {
		return nil
	}
	prim := &usdPrim{Props: make(map[string]usdValue)}

	// The type tag is optional in the grammar; a quoted token here is
	// already the prim name.
	if strings.HasPrefix(tok, `"`) || strings.HasPrefix(tok, `'`) {
		prim.Name = strings.Trim(tok, tok[:1])
	} else {
		prim.Type = tok
		nameTok, ok := p.next()
		if !ok {
			return nil
		}
		prim.Name = strings.Trim(nameTok, `"'`)
	}
	prim.Path = parentPath + "/" + prim.Name

	// Skip the optional parenthesized metadata block.
	if strings.HasPrefix(p.peek(), "(") {
		p.next()
	}
	if tok, ok := p.next(); !ok || tok != "{" {
		return nil
	}

	p.parseBody(prim)
	return prim
}

// parseBody consumes a prim's braced body: property assignments, nested
// prims, and typed declarations whose values we do not model.
func (p *usdParser) parseBody(prim *usdPrim) {
	var prev string
	for {
		tok, ok := p.next()
		if !ok {
			return
		}
		switch tok {
		case "}":
			return
		case "{":
			// Anonymous block (variantSet and friends): skip it wholesale.
			p.skipBlock()
		case "=":
			// `double3 xformOp:translate = (...)` — the token before '=' is
			// the property name, any type tokens before it are irrelevant.
			val, ok := p.next()
			if !ok {
				return
			}
			if prev != "" {
				prim.Props[prev] = parseUSDValue(val)
			}
			prev = ""
		case "def", "over", "class":
			if child := p.parsePrim(prim.Path); child != nil {
				prim.Children = append(prim.Children, child)
			}
			prev = ""
		default:
			prev = tok
		}
	}
}

func (p *usdParser) skipBlock() {
	depth := 1
	for depth > 0 {
		tok, ok := p.next()
		if !ok {
			return
		}
		switch tok {
		case "{":
			depth++
		case "}":
			depth--
		}
	}
}

// USDDecoder handles ASCII USD scene descriptions. Prims on the geometry
// allow-list become links joined to their nearest mapped ancestor by
// synthetic fixed joints; this dialect carries no joint-type information in
// the paths the decoder follows. Native *Joint prims are recognized but not
// translated, which is surfaced as a warning.
type USDDecoder struct{}

func NewUSDDecoder() *USDDecoder {
	return &USDDecoder{}
}

func (d *USDDecoder) Name() string {
	return "usd"
}

// Sniff checks for the layer marker, a defaultPrim declaration, or a bare
// `def <Type>` pattern near the start of the file.
func (d *USDDecoder) Sniff(filename string, data []byte) bool {
	window := probeWindow(data)
	if bytes.HasPrefix(bytes.TrimSpace(window), []byte("#usda")) {
		return true
	}
	if bytes.Contains(window, []byte("defaultPrim")) {
		return true
	}
	return bytes.Contains(window, []byte("def ")) && bytes.Contains(window, []byte("{"))
}

type usdWalk struct {
	robot    *models.Robot
	warnings []models.DecodeWarning
}

// Decode parses an ASCII USD layer. Failure is structural only: a token
// stream yielding no prims at all.
func (d *USDDecoder) Decode(data []byte) (*models.Robot, []models.DecodeWarning, error) {
	p := &usdParser{tokens: usdTokens(data)}
	prims := p.parsePrims("")
	if len(prims) == 0 {
		return nil, nil, fmt.Errorf("not a USD layer: no prim definitions found")
	}

	name := usdLayerName(data)
	if name == "" {
		name = prims[0].Name
	}

	w := &usdWalk{robot: models.NewRobot(name)}
	for _, prim := range prims {
		w.walkPrim(prim, "")
	}
	if w.robot.Root == "" {
		return nil, nil, fmt.Errorf("not a USD layer: no geometry prims found")
	}

	return w.robot, w.warnings, nil
}

// usdLayerName extracts defaultPrim from the layer metadata block when one
// is present.
func usdLayerName(data []byte) string {
	window := string(probeWindow(data))
	idx := strings.Index(window, "defaultPrim")
	if idx < 0 {
		return ""
	}
	rest := window[idx:]
	open := strings.IndexByte(rest, '"')
	if open < 0 {
		return ""
	}
	rest = rest[open+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// usdLinkTypes is the allow-list of prim types that map to links. Everything
// else passes through transparently.
var usdLinkTypes = map[string]bool{
	"Cube":     true,
	"Sphere":   true,
	"Cylinder": true,
	"Capsule":  true,
	"Mesh":     true,
	"Xform":    true,
	"Scope":    true,
}

// walkPrim maps one prim and recurses. parentLink is the nearest ancestor
// that became a link, "" at the top of the tree.
func (w *usdWalk) walkPrim(prim *usdPrim, parentLink string) {
	nextParent := parentLink

	switch {
	case strings.HasSuffix(prim.Type, "Joint"):
		w.warnings = append(w.warnings, models.DecodeWarning{
			Code:   WarnJointPrim,
			Detail: fmt.Sprintf("joint prim %s (%s) not translated", prim.Path, prim.Type),
		})
	case usdLinkTypes[prim.Type]:
		link := &models.Link{
			ID:     prim.Path,
			Name:   prim.Name,
			Visual: usdGeometry(prim),
		}
		w.robot.Links[link.ID] = link

		switch {
		case parentLink != "":
			w.addFixedJoint(parentLink, link.ID, usdTransform(prim))
		case w.robot.Root == "":
			w.robot.Root = link.ID
		default:
			// A second top-level link cannot be a root in a tree model.
			w.addFixedJoint(w.robot.Root, link.ID, usdTransform(prim))
			w.warnings = append(w.warnings, models.DecodeWarning{
				Code:   WarnExtraRoot,
				Detail: fmt.Sprintf("top-level prim %s attached to root %s", link.ID, w.robot.Root),
			})
		}
		nextParent = link.ID
	}

	for _, child := range prim.Children {
		w.walkPrim(child, nextParent)
	}
}

func (w *usdWalk) addFixedJoint(parent, child string, origin models.Transform) {
	id := child + "_joint"
	w.robot.Joints[id] = &models.Joint{
		ID:     id,
		Name:   id,
		Type:   models.JointFixed,
		Parent: parent,
		Child:  child,
		Origin: origin,
		Axis:   models.Vec3{0, 0, 1},
		Limits: models.Limits{
			Lower:    defaultLimitLower,
			Upper:    defaultLimitUpper,
			Effort:   defaultLimitEffort,
			Velocity: defaultLimitVelocity,
		},
	}
}

// usdGeometry maps a prim's type and intrinsic size attributes onto the
// canonical descriptor. Defaults follow the dialect's documented intrinsic
// sizes (cube size 2, sphere radius 1, cylinder radius 1 height 2, capsule
// radius 0.5 height 1).
func usdGeometry(prim *usdPrim) models.Geometry {
	geom := models.NoGeometry()

	switch prim.Type {
	case "Cube":
		size := prim.Props["size"].number(2)
		geom.Type = models.GeomBox
		geom.Dims = models.Vec3{size, size, size}
	case "Sphere":
		geom.Type = models.GeomSphere
		geom.Dims = models.Vec3{prim.Props["radius"].number(1), 0, 0}
	case "Cylinder":
		geom.Type = models.GeomCylinder
		geom.Dims = models.Vec3{prim.Props["radius"].number(1), prim.Props["height"].number(2), 0}
	case "Capsule":
		// Approximated by a cylinder, matching the simulator-XML mapping.
		geom.Type = models.GeomCylinder
		geom.Dims = models.Vec3{prim.Props["radius"].number(0.5), prim.Props["height"].number(1), 0}
	case "Mesh":
		// Mesh payloads live in the layer itself; the prim name stands in as
		// the asset reference for downstream resolution.
		geom.Type = models.GeomMesh
		geom.MeshFile = prim.Name
	}

	if v, ok := prim.Props["primvars:displayColor"]; ok {
		c := v.vec3()
		geom.Color = hexFromRGB(c[0], c[1], c[2])
	}

	return geom
}

// usdTransform reads the xformOp attributes. rotateXYZ is authored in
// degrees and converted to radians here.
func usdTransform(prim *usdPrim) models.Transform {
	var t models.Transform
	if v, ok := prim.Props["xformOp:translate"]; ok {
		t.XYZ = v.vec3()
	}
	if v, ok := prim.Props["xformOp:rotateXYZ"]; ok {
		deg := v.vec3()
		t.RPY = models.Vec3{
			deg[0] * math.Pi / 180,
			deg[1] * math.Pi / 180,
			deg[2] * math.Pi / 180,
		}
	}
	return t
}
