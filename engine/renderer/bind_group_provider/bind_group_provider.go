package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the GPU bind group, or nil until the backend builds it.
	bindGroup *wgpu.BindGroup
	// generation is the resource arena generation the bind group was built against.
	generation uint64

	// buffers are owned by the provider and released with it, keyed by binding index.
	buffers map[int]*wgpu.Buffer
	// textureViews are borrowed from arena textures and never released here, keyed by binding index.
	textureViews map[int]*wgpu.TextureView
	// samplers are borrowed from the backend and never released here, keyed by binding index.
	samplers map[int]*wgpu.Sampler
}

// BindGroupProvider holds the resources of one bind group: the uniform buffers it owns and the texture views
// and samplers it borrows. The backend fills it from a layout and rebuilds the bind group whenever the
// resources it points at are recreated.
//
// Usage pattern:
//  1. The backend creates a provider per pass and bind group index
//  2. The backend sets texture views and samplers for the current arena contents
//  3. The backend builds the bind group and stamps it with the arena generation
//  4. Uniform updates go through BufferWrite values
//  5. A newer arena generation invalidates the bind group, which is then rebuilt
type BindGroupProvider interface {
	// Release frees the bind group and the owned buffers.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the bind group, or nil if it has not been built or was invalidated.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// Generation returns the arena generation the bind group was built against.
	//
	// Returns:
	//   - uint64: the generation stamp
	Generation() uint64

	// Buffer returns the owned buffer at a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// TextureView returns the texture view at a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// Sampler returns the sampler at a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Sampler: the sampler or nil
	Sampler(binding int) *wgpu.Sampler

	// SetBindGroup replaces the bind group, releasing the previous one, and stamps it with a generation.
	//
	// Parameters:
	//   - bg: the created bind group
	//   - generation: the arena generation it reflects
	SetBindGroup(bg *wgpu.BindGroup, generation uint64)

	// SetBuffer stores an owned buffer for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the created buffer
	SetBuffer(binding int, buf *wgpu.Buffer)

	// SetTextureView stores a borrowed texture view for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view
	SetTextureView(binding int, tv *wgpu.TextureView)

	// SetSampler stores a borrowed sampler for a binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - s: the sampler
	SetSampler(binding int, s *wgpu.Sampler)

	// Invalidate drops the bind group but keeps the buffers, forcing a rebuild.
	Invalidate()
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates an empty BindGroupProvider.
//
// Parameters:
//   - label: a debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]*wgpu.Buffer),
		textureViews: make(map[int]*wgpu.TextureView),
		samplers:     make(map[int]*wgpu.Sampler),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) Generation() uint64 {
	return p.generation
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) *wgpu.Sampler {
	return p.samplers[binding]
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup, generation uint64) {
	if p.bindGroup != nil && p.bindGroup != bg {
		p.bindGroup.Release()
	}
	p.bindGroup = bg
	p.generation = generation
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) SetSampler(binding int, s *wgpu.Sampler) {
	p.samplers[binding] = s
}

func (p *bindGroupProvider) Invalidate() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}

func (p *bindGroupProvider) Release() {
	p.Invalidate()
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, i)
	}
	clear(p.textureViews)
	clear(p.samplers)
}
