package renderer

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-map/common"
	"github.com/Carmen-Shannon/oxy-map/engine/camera"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backend RendererBackend
	arena   *resource.Arena

	// providers caches the bind groups of each pipeline, keyed by pipeline key and hemisphere
	providers map[string][]bind_group_provider.BindGroupProvider

	mapSampler     *wgpu.Sampler
	terrainSampler *wgpu.Sampler

	// lost is set once the context is lost and returned by every later pass
	lost     error
	released bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	presentMode          PresentMode
}

// Renderer runs the two passes of the map on the GPU: the bake pass that rasterizes region colors and borders
// into the hemisphere framebuffers, and the display pass that composites them with terrain into the surface.
// It also allocates every GPU object on behalf of the resource manager.
//
// All methods must be called from the thread that owns the GPU context.
type Renderer interface {
	resource.Allocator

	// Bind attaches the arena the passes read from. Bind groups are rebuilt whenever the arena changes.
	//
	// Parameters:
	//   - arena: the arena populated by the resource manager
	Bind(arena *resource.Arena)

	// Bake renders both hemispheres into their framebuffers, west then east, in one submission.
	//
	// Parameters:
	//   - u: the bake flags and color texture width
	//
	// Returns:
	//   - error: ErrNotBound, a *ContextLostError, or a backend error
	Bake(u resource.BakeUniform) error

	// Display composites the baked hemispheres into the surface and presents it. It is a no-op for an
	// off-screen renderer.
	//
	// Parameters:
	//   - u: the camera uniform
	//
	// Returns:
	//   - error: ErrNotBound, a *ContextLostError, or a backend error
	Display(u camera.DisplayUniform) error

	// Capture renders the display pass off-screen at an arbitrary size and reads it back. Sizes above the
	// device texture limit are rendered in tiles. The resolution of u is replaced by the capture size.
	//
	// Parameters:
	//   - width, height: the capture size in pixels
	//   - u: the camera uniform
	//
	// Returns:
	//   - common.TextureStagingData: the captured RGBA pixels
	//   - error: ErrNotBound, a *ContextLostError, or a backend error
	Capture(width, height uint32, u camera.DisplayUniform) (common.TextureStagingData, error)

	// Resize reconfigures the surface for a new canvas size in device pixels.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is required for it to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Release frees the bind groups, samplers and the device. The arena is owned by the resource manager
	// and must be released first.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer drawing into the surface described by surfaceDescriptor.
// The descriptor is platform-specific and is typically obtained from the window's Surface handle.
//
// Parameters:
//   - surfaceDescriptor: the platform-specific surface descriptor, nil for off-screen rendering only
//   - width, height: the initial surface size in device pixels
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the new renderer
//   - error: ErrNoAdapter or ErrNoDevice when the GPU cannot be initialised
func NewRenderer(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		providers:   make(map[string][]bind_group_provider.BindGroupProvider),
		presentMode: PresentModeVSync,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	backend, err := newWGPURendererBackend(surfaceDescriptor, r.forceFallbackAdapter)
	if err != nil {
		return nil, err
	}
	r.backend = backend
	r.backend.SetPresentMode(r.presentMode)
	r.backend.ConfigureSurface(width, height)

	if r.mapSampler, err = r.backend.CreateSampler("Map Sampler", common.NearestClampSampler); err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("%w: map sampler: %w", resource.ErrAllocation, err)
	}
	if r.terrainSampler, err = r.backend.CreateSampler("Terrain Sampler", common.LinearRepeatSampler); err != nil {
		r.mapSampler.Release()
		r.backend.Release()
		return nil, fmt.Errorf("%w: terrain sampler: %w", resource.ErrAllocation, err)
	}

	log.Printf("[Renderer] device ready, surface %dx%d format %v", width, height, r.backend.SurfaceFormat())
	return r, nil
}

func (r *renderer) CreateTexture(spec resource.TextureSpec) (resource.Resource, error) {
	format := wgpu.TextureFormatRGBA8Unorm
	if spec.Format == resource.FormatRGBA8Srgb {
		format = wgpu.TextureFormatRGBA8UnormSrgb
	}
	t, err := r.backend.CreateTexture(spec.Label, spec.Data.Width, spec.Data.Height, format, wgpu.TextureUsageTextureBinding, spec.Data.Pixels)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *renderer) WriteTexture(tex resource.Resource, x, y, width, height uint32, pixels []byte) error {
	t, err := asTexture(tex)
	if err != nil {
		return err
	}
	return r.backend.WriteTexture(t, x, y, width, height, pixels)
}

func (r *renderer) CreateFramebuffer(label string, width, height uint32) (resource.Resource, error) {
	usage := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc
	color, err := r.backend.CreateTexture(label+" color", width, height, wgpu.TextureFormatRGBA8Unorm, usage, nil)
	if err != nil {
		return nil, err
	}
	edges, err := r.backend.CreateTexture(label+" edges", width, height, wgpu.TextureFormatRGBA8Unorm, usage, nil)
	if err != nil {
		color.Release()
		return nil, err
	}
	return &framebuffer{color: color, edges: edges}, nil
}

func (r *renderer) CreateVertexBuffer(label string, data []byte) (resource.Resource, error) {
	vb, err := r.backend.CreateVertexBuffer(label, data)
	if err != nil {
		return nil, err
	}
	return vb, nil
}

func (r *renderer) WriteBuffer(buf resource.Resource, data []byte) error {
	vb, err := asVertexBuffer(buf)
	if err != nil {
		return err
	}
	if uint64(len(data)) > vb.size {
		return fmt.Errorf("write of %d bytes overflows the %d byte buffer", len(data), vb.size)
	}
	r.backend.WriteBuffer(vb.buffer, 0, data)
	return nil
}

// CreateProgram parses both stages and registers the pipeline for the program's natural target: the surface
// for single-output programs, RGBA8Unorm attachments otherwise.
func (r *renderer) CreateProgram(label string, src resource.ProgramSource) (resource.Resource, error) {
	vs, err := shader.NewShaderFromSource(label+" vertex", shader.ShaderTypeVertex, src.Vertex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProgram, err)
	}
	fs, err := shader.NewShaderFromSource(label+" fragment", shader.ShaderTypeFragment, src.Fragment)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProgram, err)
	}

	prog := &program{
		label:     label,
		vertex:    vs,
		fragment:  fs,
		layouts:   mergeBindGroupLayouts(vs.BindGroupLayoutDescriptors(), fs.BindGroupLayoutDescriptors()),
		pipelines: make(map[wgpu.TextureFormat]pipeline.Pipeline),
	}
	if _, err := r.pipelineFor(prog, r.backend.SurfaceFormat()); err != nil {
		return nil, err
	}
	return prog, nil
}

func (r *renderer) MaxTextureWidth() uint32 {
	return r.backend.MaxTextureDimension()
}

func (r *renderer) Bind(arena *resource.Arena) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arena = arena
	for _, groups := range r.providers {
		for _, p := range groups {
			p.Invalidate()
		}
	}
}

func (r *renderer) Bake(u resource.BakeUniform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}

	prog, err := r.program(resource.BakeProgram)
	if err != nil {
		return err
	}
	p, err := r.pipelineFor(prog, wgpu.TextureFormatRGBA8Unorm)
	if err != nil {
		return err
	}
	quad, err := r.vertices(resource.FullscreenQuad)
	if err != nil {
		return err
	}

	draws := make([]drawCall, 0, 2)
	for h, fbID := range [2]resource.ID{resource.BakeWest, resource.BakeEast} {
		fb, err := asFramebuffer(r.arena.Get(fbID))
		if err != nil {
			return fmt.Errorf("%s: %w", fbID, err)
		}
		hemisphere := resource.Hemisphere(h)
		groups, err := r.bindGroups(p, prog, hemisphere.String(), func(name string) (*wgpu.TextureView, error) {
			return r.bakeView(hemisphere, name)
		})
		if err != nil {
			return err
		}
		r.writeUniform(prog, groups, "bake", u.Marshal())
		draws = append(draws, drawCall{
			pipeline:   p,
			targets:    []*wgpu.TextureView{fb.color.view, fb.edges.view},
			vertices:   quad.buffer,
			bindGroups: groups,
		})
	}
	return r.backend.Submit(draws)
}

func (r *renderer) Display(u camera.DisplayUniform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return err
	}

	prog, err := r.program(resource.DisplayProgram)
	if err != nil {
		return err
	}
	p, err := r.pipelineFor(prog, r.backend.SurfaceFormat())
	if err != nil {
		return err
	}
	quad, err := r.vertices(resource.DisplayQuad)
	if err != nil {
		return err
	}
	groups, err := r.bindGroups(p, prog, "", r.displayView)
	if err != nil {
		return err
	}
	r.writeUniform(prog, groups, "view", u.Marshal())

	tex, view, err := r.backend.AcquireSurface()
	if errors.Is(err, ErrNoSurface) {
		// off-screen renderers only serve captures
		return nil
	}
	if err != nil {
		var lost *ContextLostError
		if errors.As(err, &lost) {
			r.lost = lost
			log.Printf("[Renderer] %v", lost)
		}
		return err
	}
	defer r.backend.Present(tex, view)

	return r.backend.Submit([]drawCall{{
		pipeline:   p,
		targets:    []*wgpu.TextureView{view},
		vertices:   quad.buffer,
		bindGroups: groups,
	}})
}

func (r *renderer) Capture(width, height uint32, u camera.DisplayUniform) (common.TextureStagingData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.usable(); err != nil {
		return common.TextureStagingData{}, err
	}
	if width == 0 || height == 0 {
		return common.TextureStagingData{}, fmt.Errorf("capture size %dx%d is empty", width, height)
	}

	prog, err := r.program(resource.DisplayProgram)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	p, err := r.pipelineFor(prog, wgpu.TextureFormatRGBA8Unorm)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	groups, err := r.bindGroups(p, prog, "", r.displayView)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	u.Resolution = [2]float32{float32(width), float32(height)}
	r.writeUniform(prog, groups, "view", u.Marshal())

	out := common.TextureStagingData{
		Pixels: make([]byte, int(width)*int(height)*4),
		Width:  width,
		Height: height,
	}
	for _, t := range captureTiles(width, height, r.backend.MaxTextureDimension()) {
		pixels, err := r.captureTile(p, groups, t)
		if err != nil {
			return common.TextureStagingData{}, err
		}
		t.blit(out, pixels)
	}
	return out, nil
}

// Caller must hold r.mu.
func (r *renderer) captureTile(p pipeline.Pipeline, groups []bind_group_provider.BindGroupProvider, t tile) ([]byte, error) {
	target, err := r.backend.CreateTexture("Capture Target", t.w, t.h, wgpu.TextureFormatRGBA8Unorm,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageCopySrc, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: capture target: %w", resource.ErrAllocation, err)
	}
	defer target.Release()

	quad, err := r.backend.CreateVertexBuffer("Capture Quad", resource.MarshalQuadRect(float32(t.x), float32(t.y), float32(t.w), float32(t.h)))
	if err != nil {
		return nil, fmt.Errorf("%w: capture quad: %w", resource.ErrAllocation, err)
	}
	defer quad.Release()

	if err := r.backend.Submit([]drawCall{{
		pipeline:   p,
		targets:    []*wgpu.TextureView{target.view},
		vertices:   quad.buffer,
		bindGroups: groups,
	}}); err != nil {
		return nil, err
	}
	return r.backend.ReadTexture(target)
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true

	for key, groups := range r.providers {
		for _, p := range groups {
			p.Release()
		}
		delete(r.providers, key)
	}
	if r.mapSampler != nil {
		r.mapSampler.Release()
	}
	if r.terrainSampler != nil {
		r.terrainSampler.Release()
	}
	r.arena = nil
	r.backend.Release()
}

// Caller must hold r.mu.
func (r *renderer) usable() error {
	switch {
	case r.released:
		return ErrReleased
	case r.lost != nil:
		return r.lost
	case r.arena == nil:
		return ErrNotBound
	}
	return nil
}

// Caller must hold r.mu.
func (r *renderer) program(id resource.ID) (*program, error) {
	prog, err := asProgram(r.arena.Get(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return prog, nil
}

// Caller must hold r.mu.
func (r *renderer) vertices(id resource.ID) (*vertexBuffer, error) {
	vb, err := asVertexBuffer(r.arena.Get(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return vb, nil
}

// pipelineFor returns the pipeline of prog writing to format, registering it on first use.
func (r *renderer) pipelineFor(prog *program, format wgpu.TextureFormat) (pipeline.Pipeline, error) {
	if p, ok := prog.pipelines[format]; ok {
		return p, nil
	}
	p := pipeline.NewPipeline(
		fmt.Sprintf("%s/%v", prog.label, format),
		pipeline.WithVertexShader(prog.vertex),
		pipeline.WithFragmentShader(prog.fragment),
		pipeline.WithTargetFormats(prog.targets(format)...),
	)
	if err := r.backend.RegisterRenderPipeline(p, prog.layouts); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProgram, prog.label, err)
	}
	prog.pipelines[format] = p
	return p, nil
}

// bindGroups returns the bind groups of p for one slot, rebuilding those built against an older arena.
// Texture bindings are resolved by shader variable name through view, samplers through their name.
// Caller must hold r.mu.
func (r *renderer) bindGroups(p pipeline.Pipeline, prog *program, slot string, view func(name string) (*wgpu.TextureView, error)) ([]bind_group_provider.BindGroupProvider, error) {
	key := p.PipelineKey() + "/" + slot
	groups, ok := r.providers[key]
	if !ok {
		groups = make([]bind_group_provider.BindGroupProvider, prog.groupCount())
		for g := range groups {
			groups[g] = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("%s group %d", key, g))
		}
		r.providers[key] = groups
	}

	generation := r.arena.Generation()
	for g, provider := range groups {
		if provider.BindGroup() != nil && provider.Generation() == generation {
			continue
		}
		descriptor := prog.layouts[g]
		for _, entry := range descriptor.Entries {
			binding := int(entry.Binding)
			name := prog.varName(g, binding)
			switch {
			case entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
				tv, err := view(name)
				if err != nil {
					return nil, fmt.Errorf("%s binding %d (%s): %w", provider.Label(), binding, name, err)
				}
				provider.SetTextureView(binding, tv)
			case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
				provider.SetSampler(binding, r.sampler(name))
			}
		}
		if err := r.backend.InitBindGroup(provider, descriptor, p.BindGroupLayout(g), generation); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// writeUniform uploads data to the uniform buffer bound as varName in group 0.
// Caller must hold r.mu.
func (r *renderer) writeUniform(prog *program, groups []bind_group_provider.BindGroupProvider, varName string, data []byte) {
	if len(groups) == 0 {
		return
	}
	binding, ok := prog.fragment.BindingFromVarName(0, varName)
	if !ok {
		if binding, ok = prog.vertex.BindingFromVarName(0, varName); !ok {
			return
		}
	}
	r.backend.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: groups[0],
		Binding:  binding,
		Data:     data,
	}})
}

// Caller must hold r.mu.
func (r *renderer) bakeView(h resource.Hemisphere, name string) (*wgpu.TextureView, error) {
	id, ok := bakeTextureBindings[h][name]
	if !ok {
		return nil, fmt.Errorf("no bake texture named %q", name)
	}
	t, err := asTexture(r.arena.Get(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return t.view, nil
}

// Caller must hold r.mu.
func (r *renderer) displayView(name string) (*wgpu.TextureView, error) {
	if b, ok := bakedBindings[name]; ok {
		fb, err := asFramebuffer(r.arena.Get(b.id))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.id, err)
		}
		if b.edges {
			return fb.edges.view, nil
		}
		return fb.color.view, nil
	}
	id, ok := terrainBindings[name]
	if !ok {
		return nil, fmt.Errorf("no display texture named %q", name)
	}
	t, err := asTexture(r.arena.Get(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return t.view, nil
}

func (r *renderer) sampler(name string) *wgpu.Sampler {
	if name == "map_sampler" {
		return r.mapSampler
	}
	return r.terrainSampler
}
