// Package parser implements the multi-format robot-description interchange
// layer: decoders for URDF, MuJoCo MJCF and ASCII USD scene descriptions that
// all converge on the canonical models.Robot tree, the inverse URDF encoder,
// and a format sniffer that routes unlabeled uploads.
//
// Decoders are pure, synchronous transformations: text in, Robot (or error)
// out. They perform no I/O and share no mutable state, so they are safe to
// invoke concurrently on independent inputs. Malformed field values never
// abort a decode; only a structurally absent root element does.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/robot-workbench/backend/internal/models"
)

// Decoder defines the interface for robot-description decoders.
type Decoder interface {
	// Name returns the unique name of the decoder, e.g. "urdf".
	Name() string
	// Sniff reports whether the content looks like this decoder's dialect.
	// It must be cheap: prefix and marker checks only.
	Sniff(filename string, data []byte) bool
	// Decode parses the input into a canonical Robot. Warnings carry
	// non-fatal inconsistencies (e.g. root fallback); a non-nil error means
	// the input is structurally not this dialect and no Robot is produced.
	Decode(data []byte) (*models.Robot, []models.DecodeWarning, error)
}

// Warning codes shared by the decoders.
const (
	WarnRootFallback = "root-fallback"
	WarnExtraRoot    = "extra-root"
	WarnLossyJoint   = "lossy-joint-type"
	WarnJointPrim    = "joint-prim-skipped"
	WarnDepthCap     = "depth-cap"
	WarnUnknownShape = "unknown-shape"
)

// Common utilities for value parsing

// Floats parses a whitespace-delimited list of numbers into exactly n
// components. Missing or unparsable components are left at 0; a bad tuple
// never aborts the surrounding decode.
func Floats(s string, n int) []float64 {
	out := make([]float64, n)
	for i, field := range strings.Fields(s) {
		if i >= n {
			break
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		out[i] = v
	}
	return out
}

// Vec3From parses a 3-component whitespace-delimited tuple.
func Vec3From(s string) models.Vec3 {
	f := Floats(s, 3)
	return models.Vec3{f[0], f[1], f[2]}
}

// ScaleVec converts a 1-, 3- or 4-component tuple into a per-axis scale.
// A single component broadcasts uniformly; a 4th component is ignored.
// The empty string means "unscaled".
func ScaleVec(s string) models.Vec3 {
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return models.Vec3{1, 1, 1}
	case 1:
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			v = 0
		}
		return models.Vec3{v, v, v}
	default:
		return Vec3From(s)
	}
}

// HexColor converts a 3- or 4-component RGBA tuple with components in [0,1]
// to a "#rrggbb" string. The alpha component is dropped. Conversion truncates
// after scaling by 255 rather than rounding.
func HexColor(s string) string {
	f := Floats(s, 3)
	return hexFromRGB(f[0], f[1], f[2])
}

func hexFromRGB(r, g, b float64) string {
	return fmt.Sprintf("#%02x%02x%02x", int(r*255), int(g*255), int(b*255))
}

// quatToRPY converts a (w, x, y, z) quaternion to roll-pitch-yaw Euler
// angles using the ZYX convention.
func quatToRPY(w, x, y, z float64) models.Vec3 {
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	return models.Vec3{
		math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)),
		math.Asin(sinp),
		math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)),
	}
}

// parseFloatOr parses a single number, falling back to def when the
// attribute is absent or unparsable.
func parseFloatOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return v
}

// parseIntOr parses a single integer with a fallback default.
func parseIntOr(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}
