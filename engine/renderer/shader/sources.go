package shader

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
)

//go:embed assets/quad.vert.wgsl
var quadVertexShader string

//go:embed assets/bake.frag.wgsl
var bakeFragmentShader string

//go:embed assets/display.frag.wgsl
var displayFragmentShader string

// Sources holds the two programs the map engine links: the bake program that rasterizes regions and
// borders into the hemisphere framebuffers, and the display program that composites them on screen.
type Sources struct {
	Bake    resource.ProgramSource `json:"bake"`
	Display resource.ProgramSource `json:"display"`
}

// DefaultSources returns the embedded bake and display programs.
func DefaultSources() Sources {
	return Sources{
		Bake:    resource.ProgramSource{Vertex: quadVertexShader, Fragment: bakeFragmentShader},
		Display: resource.ProgramSource{Vertex: quadVertexShader, Fragment: displayFragmentShader},
	}
}

// OrDefault fills empty stages with the embedded defaults.
func (s Sources) OrDefault() Sources {
	d := DefaultSources()
	if s.Bake.Vertex == "" {
		s.Bake.Vertex = d.Bake.Vertex
	}
	if s.Bake.Fragment == "" {
		s.Bake.Fragment = d.Bake.Fragment
	}
	if s.Display.Vertex == "" {
		s.Display.Vertex = d.Display.Vertex
	}
	if s.Display.Fragment == "" {
		s.Display.Fragment = d.Display.Fragment
	}
	return s
}
