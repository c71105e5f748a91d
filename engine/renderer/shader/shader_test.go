package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func mustShader(t *testing.T, key string, shaderType ShaderType, source string) Shader {
	t.Helper()
	s, err := NewShaderFromSource(key, shaderType, source)
	if err != nil {
		t.Fatalf("NewShaderFromSource(%s): %v", key, err)
	}
	return s
}

func TestDefaultVertexShader(t *testing.T) {
	s := mustShader(t, "quad", ShaderTypeVertex, DefaultSources().Bake.Vertex)
	if got := s.EntryPoint(); got != "vs_main" {
		t.Errorf("EntryPoint() = %q, want %q", got, "vs_main")
	}
	layouts := s.VertexLayouts()
	if len(layouts) != 1 {
		t.Fatalf("len(VertexLayouts()) = %d, want 1", len(layouts))
	}
	if got := layouts[0].ArrayStride; got != 16 {
		t.Errorf("ArrayStride = %d, want 16", got)
	}
	attrs := layouts[0].Attributes
	if len(attrs) != 2 {
		t.Fatalf("len(Attributes) = %d, want 2", len(attrs))
	}
	for i, want := range []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
	} {
		if attrs[i] != want {
			t.Errorf("Attributes[%d] = %+v, want %+v", i, attrs[i], want)
		}
	}
	if strings.Contains(s.Source(), "@oxy:include") {
		t.Error("Source() still contains an include directive")
	}
}

func TestDefaultBakeFragment(t *testing.T) {
	s := mustShader(t, "bake", ShaderTypeFragment, DefaultSources().Bake.Fragment)
	if got := s.EntryPoint(); got != "fs_main" {
		t.Errorf("EntryPoint() = %q, want %q", got, "fs_main")
	}
	if got := s.ColorTargets(); got != 2 {
		t.Errorf("ColorTargets() = %d, want 2", got)
	}
	desc, ok := s.BindGroupLayoutDescriptors()[0]
	if !ok {
		t.Fatal("group 0 not declared")
	}
	if len(desc.Entries) != 7 {
		t.Fatalf("len(group 0 entries) = %d, want 7", len(desc.Entries))
	}
	uniform := desc.Entries[0]
	if uniform.Buffer.Type != wgpu.BufferBindingTypeUniform || uniform.Buffer.MinBindingSize != 16 {
		t.Errorf("binding 0 = %+v, want a 16 byte uniform buffer", uniform.Buffer)
	}
	for _, e := range desc.Entries[1:] {
		if e.Texture.SampleType != wgpu.TextureSampleTypeFloat || e.Texture.ViewDimension != wgpu.TextureViewDimension2D {
			t.Errorf("binding %d = %+v, want a float 2D texture", e.Binding, e.Texture)
		}
		if e.Visibility != wgpu.ShaderStageFragment {
			t.Errorf("binding %d visibility = %v, want fragment", e.Binding, e.Visibility)
		}
	}
	if got := s.BindGroupVarName(0, 1); got != "province_index" {
		t.Errorf("BindGroupVarName(0, 1) = %q, want %q", got, "province_index")
	}
}

func TestDefaultDisplayFragment(t *testing.T) {
	s := mustShader(t, "display", ShaderTypeFragment, DefaultSources().Display.Fragment)
	if got := s.ColorTargets(); got != 1 {
		t.Errorf("ColorTargets() = %d, want 1", got)
	}
	groups := s.BindGroupLayoutDescriptors()
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	if got := groups[0].Entries[0].Buffer.MinBindingSize; got != 32 {
		t.Errorf("view uniform MinBindingSize = %d, want 32", got)
	}
	if got := groups[1].Entries[4].Sampler.Type; got != wgpu.SamplerBindingTypeFiltering {
		t.Errorf("map_sampler type = %v, want filtering", got)
	}
	if b, ok := s.BindingFromVarName(2, "water_map"); !ok || b != 5 {
		t.Errorf("BindingFromVarName(2, water_map) = %d, %v, want 5, true", b, ok)
	}
	if _, ok := s.BindingFromVarName(1, "water_map"); ok {
		t.Error("BindingFromVarName(1, water_map) found a binding in the wrong group")
	}
}

func TestUnknownInclude(t *testing.T) {
	src := "//@oxy:include nope\n@vertex fn main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }"
	_, err := NewShaderFromSource("bad", ShaderTypeVertex, src)
	if !errors.Is(err, ErrUnknownInclude) {
		t.Errorf("error = %v, want %v", err, ErrUnknownInclude)
	}
}

func TestMissingEntryPoint(t *testing.T) {
	src := "@vertex fn main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }"
	_, err := NewShaderFromSource("vs-only", ShaderTypeFragment, src)
	if !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("error = %v, want %v", err, ErrNoEntryPoint)
	}
}

func TestIncludeOnce(t *testing.T) {
	out, err := NewPreProcessor().Process("//@oxy:include bake_uniform\n  // @oxy:include bake_uniform\n")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := strings.Count(out, "struct BakeUniform"); got != 1 {
		t.Errorf("struct BakeUniform emitted %d times, want 1", got)
	}
}

func TestRegisterInclude(t *testing.T) {
	pp := NewPreProcessor()
	pp.Register("extra", "struct Extra { v: f32, };")
	out, err := pp.Process("//@oxy:include extra")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out != "struct Extra { v: f32, };" {
		t.Errorf("Process = %q", out)
	}
}

func TestEntryPointWithBuiltinParams(t *testing.T) {
	src := `
@fragment
fn shade(@builtin(position) pos: vec4<f32>, @location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(uv, 0.0, 1.0);
}`
	s := mustShader(t, "inline", ShaderTypeFragment, src)
	if got := s.EntryPoint(); got != "shade" {
		t.Errorf("EntryPoint() = %q, want %q", got, "shade")
	}
	if got := s.ColorTargets(); got != 1 {
		t.Errorf("ColorTargets() = %d, want 1", got)
	}
}

func TestStructLayout(t *testing.T) {
	tests := []struct {
		name string
		body string
		want uint64
	}{
		{"vec3 then scalar packs", "a: vec3<f32>, b: f32,", 16},
		{"scalar then vec3 aligns", "a: f32, b: vec3<f32>,", 32},
		{"fixed array", "a: array<vec4<f32>, 3>,", 48},
		{"u32 tail rounds to vec2", "a: vec2<f32>, b: u32,", 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "struct S { " + tt.body + " };"
			sizes := computeStructSizes(parseStructBlocks(src))
			if got := sizes["S"].size; got != tt.want {
				t.Errorf("size = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStripComments(t *testing.T) {
	src := "a /* outer /* inner */ still */ b // tail\nc"
	if got := stripComments(src); got != "a  b \nc" {
		t.Errorf("stripComments = %q, want %q", got, "a  b \nc")
	}
}
