package renderer

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-map/common"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestClassifySurfaceError(t *testing.T) {
	tests := []struct {
		msg        string
		wantStatus surfaceStatus
		wantReason ContextLostReason
	}{
		{"surface status: Lost", surfaceLost, ReasonSurfaceLost},
		{"get current texture: DeviceLost", surfaceLost, ReasonDeviceLost},
		{"OutOfMemory", surfaceLost, ReasonOutOfMemory},
		{"surface status: Outdated", surfaceReconfigure, ""},
		{"Timeout", surfaceRetry, ""},
	}
	for _, tt := range tests {
		status, err := classifySurfaceError(errors.New(tt.msg))
		if status != tt.wantStatus {
			t.Errorf("classifySurfaceError(%q) status = %v, want %v", tt.msg, status, tt.wantStatus)
		}
		var lost *ContextLostError
		isLost := errors.As(err, &lost)
		if isLost != (tt.wantReason != "") {
			t.Errorf("classifySurfaceError(%q) lost = %v, want %v", tt.msg, isLost, tt.wantReason != "")
			continue
		}
		if isLost {
			if lost.Reason != tt.wantReason {
				t.Errorf("classifySurfaceError(%q) reason = %q, want %q", tt.msg, lost.Reason, tt.wantReason)
			}
			if lost.Message != tt.msg {
				t.Errorf("classifySurfaceError(%q) message = %q, want the backend message", tt.msg, lost.Message)
			}
		}
	}
}

func TestContextLostErrorMessage(t *testing.T) {
	err := &ContextLostError{Reason: ReasonDeviceLost, Message: "driver reset"}
	if got, want := err.Error(), "gpu context lost: device-lost: driver reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	bare := &ContextLostError{Reason: ReasonSurfaceLost}
	if got, want := bare.Error(), "gpu context lost: surface-lost"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnpadRows(t *testing.T) {
	// two rows of 2 pixels padded to 16 bytes
	src := []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0, 0, 0, 0, 0,
		9, 10, 11, 12, 13, 14, 15, 16, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	got := unpadRows(src, 8, 16, 2)
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if !bytes.Equal(got, want) {
		t.Errorf("unpadRows() = %v, want %v", got, want)
	}
	if got := unpadRows(want, 8, 8, 2); !bytes.Equal(got, want) {
		t.Errorf("unpadRows() without padding = %v, want %v", got, want)
	}
}

func TestCaptureTiles(t *testing.T) {
	tiles := captureTiles(11264, 4096, 8192)
	want := []tile{
		{x: 0, y: 0, w: 8192, h: 4096},
		{x: 8192, y: 0, w: 3072, h: 4096},
	}
	if len(tiles) != len(want) {
		t.Fatalf("len(captureTiles()) = %d, want %d", len(tiles), len(want))
	}
	for i := range want {
		if tiles[i] != want[i] {
			t.Errorf("tiles[%d] = %+v, want %+v", i, tiles[i], want[i])
		}
	}
	if got := captureTiles(100, 50, 8192); len(got) != 1 || got[0] != (tile{w: 100, h: 50}) {
		t.Errorf("captureTiles(100, 50) = %+v, want a single tile", got)
	}
}

func TestTileBlit(t *testing.T) {
	dst := common.TextureStagingData{Pixels: make([]byte, 4*3*4), Width: 4, Height: 3}
	tl := tile{x: 2, y: 1, w: 2, h: 2}
	src := bytes.Repeat([]byte{7}, 2*2*4)
	tl.blit(dst, src)
	for y := uint32(0); y < 3; y++ {
		for x := uint32(0); x < 4; x++ {
			inside := x >= 2 && y >= 1
			got := dst.At(x, y)[0]
			if inside && got != 7 || !inside && got != 0 {
				t.Errorf("pixel (%d,%d) = %d, inside = %v", x, y, got, inside)
			}
		}
	}
}

func TestMergeBindGroupLayouts(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Label: "v0", Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageVertex},
		}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Label: "f0", Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
		}},
		1: {Label: "f1", Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
		}},
	}
	merged := mergeBindGroupLayouts(vertex, fragment)
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	g0 := merged[0].Entries
	if len(g0) != 2 || g0[0].Binding != 0 || g0[1].Binding != 1 {
		t.Fatalf("group 0 entries = %+v, want bindings 0 and 1 in order", g0)
	}
	if got, want := g0[0].Visibility, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment; got != want {
		t.Errorf("binding 0 visibility = %v, want %v", got, want)
	}
	if merged[1].Label != "f1" {
		t.Errorf("group 1 label = %q, want %q", merged[1].Label, "f1")
	}
}

func defaultProgram(t *testing.T, src resource.ProgramSource) *program {
	t.Helper()
	vs, err := shader.NewShaderFromSource("vs", shader.ShaderTypeVertex, src.Vertex)
	if err != nil {
		t.Fatalf("vertex: %v", err)
	}
	fs, err := shader.NewShaderFromSource("fs", shader.ShaderTypeFragment, src.Fragment)
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}
	return &program{
		label:    "test",
		vertex:   vs,
		fragment: fs,
		layouts:  mergeBindGroupLayouts(vs.BindGroupLayoutDescriptors(), fs.BindGroupLayoutDescriptors()),
	}
}

func TestProgramTargets(t *testing.T) {
	sources := shader.DefaultSources()
	bake := defaultProgram(t, sources.Bake)
	targets := bake.targets(wgpu.TextureFormatBGRA8Unorm)
	if len(targets) != 2 || targets[0] != wgpu.TextureFormatRGBA8Unorm || targets[1] != wgpu.TextureFormatRGBA8Unorm {
		t.Errorf("bake targets = %v, want two RGBA8Unorm", targets)
	}
	if got := bake.groupCount(); got != 1 {
		t.Errorf("bake groupCount() = %d, want 1", got)
	}

	display := defaultProgram(t, sources.Display)
	targets = display.targets(wgpu.TextureFormatBGRA8Unorm)
	if len(targets) != 1 || targets[0] != wgpu.TextureFormatBGRA8Unorm {
		t.Errorf("display targets = %v, want the surface format", targets)
	}
	if got := display.groupCount(); got != 3 {
		t.Errorf("display groupCount() = %d, want 3", got)
	}
}

// Every texture and sampler the default programs declare must resolve to an arena slot or a sampler.
func TestDefaultProgramBindingsResolve(t *testing.T) {
	sources := shader.DefaultSources()
	check := func(name string, prog *program, resolve func(string) bool) {
		for g, desc := range prog.layouts {
			for _, e := range desc.Entries {
				varName := prog.varName(g, int(e.Binding))
				switch {
				case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
					if !resolve(varName) {
						t.Errorf("%s group %d binding %d: texture %q has no arena slot", name, g, e.Binding, varName)
					}
				case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
					if !strings.HasSuffix(varName, "_sampler") {
						t.Errorf("%s group %d binding %d: unexpected sampler %q", name, g, e.Binding, varName)
					}
				}
			}
		}
	}
	bake := defaultProgram(t, sources.Bake)
	for h := range bakeTextureBindings {
		check("bake", bake, func(n string) bool { _, ok := bakeTextureBindings[h][n]; return ok })
	}
	check("display", defaultProgram(t, sources.Display), func(n string) bool {
		_, baked := bakedBindings[n]
		_, terrain := terrainBindings[n]
		return baked || terrain
	})
}

// The backend owns the device, queue, adapter and surface and releases them itself, so no method may hand
// them out.
func TestBackendKeepsGPUHandlesPrivate(t *testing.T) {
	owned := map[reflect.Type]bool{
		reflect.TypeOf((*wgpu.Device)(nil)):  true,
		reflect.TypeOf((*wgpu.Queue)(nil)):   true,
		reflect.TypeOf((*wgpu.Adapter)(nil)): true,
		reflect.TypeOf((*wgpu.Surface)(nil)): true,
	}
	backend := reflect.TypeOf((*RendererBackend)(nil)).Elem()
	for i := 0; i < backend.NumMethod(); i++ {
		m := backend.Method(i)
		for o := 0; o < m.Type.NumOut(); o++ {
			if out := m.Type.Out(o); owned[out] {
				t.Errorf("RendererBackend.%s returns %v", m.Name, out)
			}
		}
	}
}
