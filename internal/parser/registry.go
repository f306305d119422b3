package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Registry holds all available decoders and provides format auto-detection.
type Registry struct {
	decoders []Decoder
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry builds a registry with the built-in decoders. The MJCF decoder
// is listed before URDF so that content probing checks the more specific
// simulator marker first.
func NewRegistry() *Registry {
	return &Registry{
		decoders: []Decoder{
			NewMJCFDecoder(),
			NewURDFDecoder(),
			NewUSDDecoder(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a decoder to the registry.
func (r *Registry) Register(d Decoder) {
	r.decoders = append(r.decoders, d)
}

// Names returns the registered decoder names in probe order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.decoders))
	for _, d := range r.decoders {
		names = append(names, d.Name())
	}
	return names
}

// ByName returns a decoder by its name.
func (r *Registry) ByName(name string) (Decoder, error) {
	name = strings.ToLower(name)
	for _, d := range r.decoders {
		if d.Name() == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("decoder not found: %s", name)
}

// Detect picks the decoder for an unlabeled upload. Extension hints win
// outright; ambiguous XML-like extensions fall through to content probes in
// registry order (simulator marker before the kinematics root tag), then the
// scene-description probe. When nothing matches, the file is unrecognized
// rather than guessed at.
func (r *Registry) Detect(filename string, data []byte) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".urdf":
		return r.ByName("urdf")
	case ".mjcf":
		return r.ByName("mjcf")
	case ".usd", ".usda":
		return r.ByName("usd")
	}

	for _, d := range r.decoders {
		if d.Sniff(filename, data) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("unrecognized robot description format: %s", filename)
}

// SetPalette installs a material palette on the decoders that resolve named
// materials. Currently only the URDF decoder consumes one.
func (r *Registry) SetPalette(p *Palette) {
	for _, d := range r.decoders {
		if u, ok := d.(*URDFDecoder); ok {
			u.SetPalette(p)
		}
	}
}
