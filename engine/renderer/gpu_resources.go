package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-map/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// texture is a 2D texture with its default view, stored in the resource arena.
type texture struct {
	texture       *wgpu.Texture
	view          *wgpu.TextureView
	width, height uint32
}

func (t *texture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// framebuffer is the bake target of one hemisphere: region colors and edge strengths.
type framebuffer struct {
	color, edges *texture
}

func (f *framebuffer) Release() {
	f.color.Release()
	f.edges.Release()
}

// vertexBuffer holds quad geometry.
type vertexBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

func (v *vertexBuffer) Release() {
	if v.buffer != nil {
		v.buffer.Release()
		v.buffer = nil
	}
}

// program is a parsed vertex and fragment shader pair. Pipelines are registered per set of target formats
// because the same program draws to the surface and to off-screen captures.
type program struct {
	label            string
	vertex, fragment shader.Shader
	// layouts are the bind group layouts of both stages merged by group index
	layouts   map[int]wgpu.BindGroupLayoutDescriptor
	pipelines map[wgpu.TextureFormat]pipeline.Pipeline
}

func (p *program) Release() {
	for f, pl := range p.pipelines {
		pl.Release()
		delete(p.pipelines, f)
	}
}

// groupCount returns the number of bind groups the program uses.
func (p *program) groupCount() int {
	n := 0
	for g := range p.layouts {
		n = max(n, g+1)
	}
	return n
}

// targets returns the color target formats for a program writing to format. Programs with several outputs
// write all of them in RGBA8Unorm.
func (p *program) targets(format wgpu.TextureFormat) []wgpu.TextureFormat {
	n := p.fragment.ColorTargets()
	if n <= 1 {
		return []wgpu.TextureFormat{format}
	}
	formats := make([]wgpu.TextureFormat, n)
	for i := range formats {
		formats[i] = wgpu.TextureFormatRGBA8Unorm
	}
	return formats
}

// asTexture resolves an arena resource to its texture view.
func asTexture(r resource.Resource) (*texture, error) {
	switch t := r.(type) {
	case *texture:
		return t, nil
	case nil:
		return nil, fmt.Errorf("missing texture")
	default:
		return nil, fmt.Errorf("%T is not a texture", r)
	}
}

func asFramebuffer(r resource.Resource) (*framebuffer, error) {
	fb, ok := r.(*framebuffer)
	if !ok {
		return nil, fmt.Errorf("%T is not a framebuffer", r)
	}
	return fb, nil
}

func asVertexBuffer(r resource.Resource) (*vertexBuffer, error) {
	vb, ok := r.(*vertexBuffer)
	if !ok {
		return nil, fmt.Errorf("%T is not a vertex buffer", r)
	}
	return vb, nil
}

func asProgram(r resource.Resource) (*program, error) {
	p, ok := r.(*program)
	if !ok {
		return nil, fmt.Errorf("%T is not a program", r)
	}
	return p, nil
}

// varName returns the shader variable bound at group and binding in either stage.
func (p *program) varName(group, binding int) string {
	if name := p.fragment.BindGroupVarName(group, binding); name != "" {
		return name
	}
	return p.vertex.BindGroupVarName(group, binding)
}
