package renderer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-map/common"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// copyRowAlignment is the required alignment of BytesPerRow in texture to buffer copies.
const copyRowAlignment = 256

// drawCall is one quad draw into its own render pass.
type drawCall struct {
	pipeline   pipeline.Pipeline
	targets    []*wgpu.TextureView
	vertices   *wgpu.Buffer
	bindGroups []bind_group_provider.BindGroupProvider
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	limits   wgpu.Limits

	surfaceFormat wgpu.TextureFormat
	surfaceWidth  uint32
	surfaceHeight uint32
	presentMode   wgpu.PresentMode
}

type wgpuRendererBackend interface {
	// ConfigureSurface is a wrapper for boilerplate logic required when calling Configure on a surface.
	// This is required when the surface size changes, such as when the canvas is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode. It takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SurfaceFormat returns the texture format chosen for the surface by the last ConfigureSurface.
	//
	// Returns:
	//   - wgpu.TextureFormat: the surface format
	SurfaceFormat() wgpu.TextureFormat

	// MaxTextureDimension returns the largest 2D texture dimension the device was created with.
	//
	// Returns:
	//   - uint32: the limit in texels
	MaxTextureDimension() uint32

	// CreateTexture creates a 2D texture and its view, uploading pixels when given.
	//
	// Parameters:
	//   - label: a debug label
	//   - width, height: the texture size
	//   - format: the texel format
	//   - usage: the texture usage flags, CopyDst is always added
	//   - pixels: tightly packed RGBA rows, or nil
	//
	// Returns:
	//   - *texture: the created texture
	//   - error: an error if creation fails
	CreateTexture(label string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage, pixels []byte) (*texture, error)

	// WriteTexture uploads pixels into a sub-rectangle of a texture.
	//
	// Parameters:
	//   - tex: the destination texture
	//   - x, y, width, height: the destination rectangle
	//   - pixels: tightly packed RGBA rows
	//
	// Returns:
	//   - error: an error if the rectangle is out of bounds or pixels is too short
	WriteTexture(tex *texture, x, y, width, height uint32, pixels []byte) error

	// CreateVertexBuffer creates a vertex buffer initialised with data.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the vertex bytes
	//
	// Returns:
	//   - *vertexBuffer: the created buffer
	//   - error: an error if creation fails
	CreateVertexBuffer(label string, data []byte) (*vertexBuffer, error)

	// WriteBuffer overwrites a buffer starting at offset.
	//
	// Parameters:
	//   - buf: the destination buffer
	//   - offset: the byte offset
	//   - data: the bytes to write
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)

	// CreateSampler creates a sampler from staging data.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the sampler configuration
	//
	// Returns:
	//   - *wgpu.Sampler: the created sampler
	//   - error: an error if creation fails
	CreateSampler(label string, data common.SamplerStagingData) (*wgpu.Sampler, error)

	// RegisterRenderPipeline creates the shader modules, bind group layouts, pipeline layout and render
	// pipeline described by p and stores them on p.
	//
	// Parameters:
	//   - p: the pipeline to register
	//   - layouts: the merged bind group layout descriptors of both stages
	//
	// Returns:
	//   - error: the backend error if any object could not be created
	RegisterRenderPipeline(p pipeline.Pipeline, layouts map[int]wgpu.BindGroupLayoutDescriptor) error

	// InitBindGroup builds the bind group of a provider from a layout descriptor. Uniform buffers missing on
	// the provider are created with their minimum binding size. Texture views and samplers must be set first.
	//
	// Parameters:
	//   - provider: the provider to fill
	//   - descriptor: the layout descriptor of the group
	//   - layout: the GPU layout matching descriptor
	//   - generation: the arena generation the bound resources belong to
	//
	// Returns:
	//   - error: an error if a binding has no resource or creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, layout *wgpu.BindGroupLayout, generation uint64) error

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// AcquireSurface returns the next surface texture and a view of it.
	// A lost surface or device is reported as a *ContextLostError. An outdated surface is reconfigured once.
	//
	// Returns:
	//   - *wgpu.Texture: the surface texture
	//   - *wgpu.TextureView: a view of it
	//   - error: an error if no texture could be acquired
	AcquireSurface() (*wgpu.Texture, *wgpu.TextureView, error)

	// Present presents the surface and releases the acquired texture.
	//
	// Parameters:
	//   - tex: the texture returned by AcquireSurface
	//   - view: the view returned by AcquireSurface
	Present(tex *wgpu.Texture, view *wgpu.TextureView)

	// Submit encodes every draw into one command buffer, submits it and waits until the queue is drained.
	//
	// Parameters:
	//   - draws: the draws in submission order
	//
	// Returns:
	//   - error: an error if encoding fails
	Submit(draws []drawCall) error

	// ReadTexture copies a texture back to the CPU as tightly packed RGBA rows.
	//
	// Parameters:
	//   - tex: a texture created with CopySrc usage
	//
	// Returns:
	//   - []byte: width*height*4 bytes
	//   - error: an error if the copy or the buffer mapping fails
	ReadTexture(tex *texture) ([]byte, error)

	// Release frees the device, surface and instance.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (wgpuRendererBackend, error) {
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
	}
	if surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil || a == nil {
		w.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}
	w.adapter = a

	w.limits = wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Map Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: w.limits,
		},
	})
	if err != nil || d == nil {
		w.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	w.device = d
	w.queue = d.GetQueue()
	w.surfaceFormat = wgpu.TextureFormatRGBA8Unorm

	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configureSurface(uint32(max(width, 1)), uint32(max(height, 1)))
}

// Caller must hold b.mu.
func (b *wgpuRendererBackendImpl) configureSurface(width, height uint32) {
	b.surfaceWidth, b.surfaceHeight = width, height
	if b.surface == nil {
		return
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode.wgpu()
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) MaxTextureDimension() uint32 {
	return b.limits.MaxTextureDimension2D
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage, pixels []byte) (*texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width == 0 || height == 0 {
		return nil, fmt.Errorf("texture %s has zero size %dx%d", label, width, height)
	}
	if max(width, height) > b.limits.MaxTextureDimension2D {
		return nil, fmt.Errorf("texture %s size %dx%d exceeds the device limit %d", label, width, height, b.limits.MaxTextureDimension2D)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     usage | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	t := &texture{texture: tex, view: view, width: width, height: height}

	if len(pixels) > 0 {
		if err := b.writeTexture(t, 0, 0, width, height, pixels); err != nil {
			t.Release()
			return nil, err
		}
	}
	return t, nil
}

func (b *wgpuRendererBackendImpl) WriteTexture(tex *texture, x, y, width, height uint32, pixels []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeTexture(tex, x, y, width, height, pixels)
}

// Caller must hold b.mu.
func (b *wgpuRendererBackendImpl) writeTexture(tex *texture, x, y, width, height uint32, pixels []byte) error {
	if x+width > tex.width || y+height > tex.height {
		return fmt.Errorf("write %dx%d at (%d,%d) is outside the %dx%d texture", width, height, x, y, tex.width, tex.height)
	}
	if len(pixels) < int(width*height*4) {
		return fmt.Errorf("write %dx%d needs %d bytes, got %d", width, height, width*height*4, len(pixels))
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: x, Y: y},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels[:width*height*4],
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateVertexBuffer(label string, data []byte) (*vertexBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data) == 0 {
		return nil, fmt.Errorf("vertex buffer %s has no data", label)
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             uint64(len(data)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	b.queue.WriteBuffer(buf, 0, data)
	return &vertexBuffer{buffer: buf, size: uint64(len(data))}, nil
}

func (b *wgpuRendererBackendImpl) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.WriteBuffer(buf, offset, data)
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, data common.SamplerStagingData) (*wgpu.Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeNearest),
		LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
	})
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline, layouts map[int]wgpu.BindGroupLayoutDescriptor) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: vertexShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: vertexShader.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: fragmentShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: fragmentShader.Source(),
		},
	})
	if err != nil {
		return err
	}
	defer fs.Release()

	maxGroup := -1
	for g := range layouts {
		maxGroup = max(maxGroup, g)
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	release := func() {
		for _, l := range bindGroupLayouts {
			if l != nil {
				l.Release()
			}
		}
	}
	for g := 0; g <= maxGroup; g++ {
		desc, ok := layouts[g]
		if !ok {
			desc = wgpu.BindGroupLayoutDescriptor{Label: fmt.Sprintf("%s empty group %d", p.PipelineKey(), g)}
		}
		layout, layoutErr := b.device.CreateBindGroupLayout(&desc)
		if layoutErr != nil {
			release()
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, layoutErr)
		}
		bindGroupLayouts[g] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		release()
		return err
	}
	defer pipelineLayout.Release()

	targets := make([]wgpu.ColorTargetState, 0, len(p.TargetFormats()))
	for _, format := range p.TargetFormats() {
		state := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: p.WriteMask(),
		}
		if p.BlendEnabled() {
			state.Blend = p.BlendState()
		}
		targets = append(targets, state)
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexShader.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		release()
		return err
	}

	p.SetRenderPipeline(created, bindGroupLayouts)
	return nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, layout *wgpu.BindGroupLayout, generation uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if layout == nil {
		return fmt.Errorf("%s has no bind group layout", provider.Label())
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		isTexture := entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined
		isSampler := entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined

		switch {
		case isTexture:
			tv := provider.TextureView(binding)
			if tv == nil {
				return fmt.Errorf("%s: texture binding %d has no texture view", provider.Label(), binding)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: tv,
			}
		case isSampler:
			samp := provider.Sampler(binding)
			if samp == nil {
				return fmt.Errorf("%s: sampler binding %d has no sampler", provider.Label(), binding)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Sampler: samp,
			}
		default:
			buf := provider.Buffer(binding)
			if buf == nil {
				usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
				if entry.Buffer.Type != wgpu.BufferBindingTypeUniform {
					usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
				}
				var bufErr error
				buf, bufErr = b.device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
					Size:  max(entry.Buffer.MinBindingSize, 16),
					Usage: usage,
				})
				if bufErr != nil {
					return bufErr
				}
				provider.SetBuffer(binding, buf)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Buffer:  buf,
				Offset:  0,
				Size:    wgpu.WholeSize,
			}
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(bindGroup, generation)
	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (b *wgpuRendererBackendImpl) AcquireSurface() (*wgpu.Texture, *wgpu.TextureView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return nil, nil, ErrNoSurface
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		status, classified := classifySurfaceError(err)
		if status != surfaceReconfigure {
			return nil, nil, classified
		}
		b.configureSurface(b.surfaceWidth, b.surfaceHeight)
		surfaceTexture, err = b.surface.GetCurrentTexture()
		if err != nil {
			_, classified = classifySurfaceError(err)
			return nil, nil, classified
		}
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, nil, err
	}
	return surfaceTexture, view, nil
}

func (b *wgpuRendererBackendImpl) Present(tex *wgpu.Texture, view *wgpu.TextureView) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.surface.Present()
	if view != nil {
		view.Release()
	}
	if tex != nil {
		tex.Release()
	}
}

func (b *wgpuRendererBackendImpl) Submit(draws []drawCall) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	for _, d := range draws {
		if err := b.encodeDraw(encoder, d); err != nil {
			return err
		}
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)
	b.device.Poll(true, nil)
	return nil
}

// Caller must hold b.mu.
func (b *wgpuRendererBackendImpl) encodeDraw(encoder *wgpu.CommandEncoder, d drawCall) error {
	rp := d.pipeline.RenderPipeline()
	if rp == nil {
		return fmt.Errorf("render pipeline %q is not registered", d.pipeline.PipelineKey())
	}

	attachments := make([]wgpu.RenderPassColorAttachment, len(d.targets))
	for i, view := range d.targets {
		attachments[i] = wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: 0, G: 0, B: 0, A: 0,
			},
		}
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            d.pipeline.PipelineKey() + " Pass",
		ColorAttachments: attachments,
	})
	pass.SetPipeline(rp)
	for i, bg := range d.bindGroups {
		pass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}
	pass.SetVertexBuffer(0, d.vertices, 0, wgpu.WholeSize)
	pass.Draw(resource.QuadVertices, 1, 0, 0)
	pass.End()
	return nil
}

func (b *wgpuRendererBackendImpl) ReadTexture(tex *texture) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rowBytes := tex.width * 4
	paddedRow := common.AlignUp(rowBytes, copyRowAlignment)
	size := uint64(paddedRow) * uint64(tex.height)

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  paddedRow,
				RowsPerImage: tex.height,
			},
		},
		&wgpu.Extent3D{
			Width:              tex.width,
			Height:             tex.height,
			DepthOrArrayLayers: 1,
		},
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)

	var status wgpu.BufferMapAsyncStatus
	mapped := false
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		mapped = true
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if !mapped || status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("readback mapping failed with status %v", status)
	}
	defer staging.Unmap()

	return unpadRows(staging.GetMappedRange(0, uint(size)), rowBytes, paddedRow, tex.height), nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = nil
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// unpadRows copies rows of rowBytes out of a buffer whose rows are paddedRow bytes apart.
func unpadRows(src []byte, rowBytes, paddedRow, rows uint32) []byte {
	out := make([]byte, int(rowBytes)*int(rows))
	if rowBytes == paddedRow {
		copy(out, src)
		return out
	}
	for y := uint32(0); y < rows; y++ {
		copy(out[y*rowBytes:(y+1)*rowBytes], src[y*paddedRow:y*paddedRow+rowBytes])
	}
	return out
}

// mergeBindGroupLayouts merges the bind group layout descriptors from a vertex and fragment shader
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}
