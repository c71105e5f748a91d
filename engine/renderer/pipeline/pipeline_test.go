package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("display")
	if got := p.PipelineKey(); got != "display" {
		t.Errorf("PipelineKey() = %q, want %q", got, "display")
	}
	if got := p.TargetFormats(); len(got) != 1 || got[0] != wgpu.TextureFormatRGBA8Unorm {
		t.Errorf("TargetFormats() = %v, want [RGBA8Unorm]", got)
	}
	if p.BlendEnabled() {
		t.Error("BlendEnabled() = true, want false")
	}
	if got := p.Topology(); got != wgpu.PrimitiveTopologyTriangleList {
		t.Errorf("Topology() = %v, want TriangleList", got)
	}
	if p.RenderPipeline() != nil || p.BindGroupLayout(0) != nil {
		t.Error("unregistered pipeline exposes GPU objects")
	}
}

func TestPipelineOptions(t *testing.T) {
	vs, err := shader.NewShaderFromSource("quad", shader.ShaderTypeVertex, shader.DefaultSources().Bake.Vertex)
	if err != nil {
		t.Fatalf("NewShaderFromSource: %v", err)
	}
	p := NewPipeline("bake",
		WithVertexShader(vs),
		WithTargetFormats(wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8Unorm),
		WithBlendEnabled(true),
		WithCullMode(wgpu.CullModeBack),
	)
	if p.Shader(shader.ShaderTypeVertex) != vs {
		t.Error("Shader(vertex) did not return the configured shader")
	}
	if p.Shader(shader.ShaderTypeFragment) != nil {
		t.Error("Shader(fragment) = non-nil, want nil")
	}
	if got := len(p.TargetFormats()); got != 2 {
		t.Errorf("len(TargetFormats()) = %d, want 2", got)
	}
	if !p.BlendEnabled() {
		t.Error("BlendEnabled() = false, want true")
	}
	if got := p.CullMode(); got != wgpu.CullModeBack {
		t.Errorf("CullMode() = %v, want Back", got)
	}
	if p.BindGroupLayout(-1) != nil {
		t.Error("BindGroupLayout(-1) = non-nil, want nil")
	}
}
