package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-map/common"
	"github.com/Carmen-Shannon/oxy-map/engine/camera"
	"github.com/Carmen-Shannon/oxy-map/engine/loader"
	"github.com/Carmen-Shannon/oxy-map/engine/picker"
	"github.com/Carmen-Shannon/oxy-map/engine/profiler"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-map/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-map/engine/screenshot"
	"github.com/Carmen-Shannon/oxy-map/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultFlags are the bake flags of a new map: province and country borders visible.
const DefaultFlags = resource.FlagProvinceBorders | resource.FlagCountryBorders

// engineIDs issues engine ids. Ids start at 1 so the zero token never matches.
var engineIDs atomic.Uint64

// RendererFactory creates the renderer of an engine on its GPU worker.
type RendererFactory func(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int) (renderer.Renderer, error)

// TerrainOptions configures WithTerrainImages.
type TerrainOptions struct {
	// Eager loads the terrain images immediately instead of on the first renderTerrain update.
	Eager bool `json:"eager"`
}

// StashOptions configures Stash.
type StashOptions struct {
	// Zoom multiplies the stashed canvas size. Zero means 1.
	Zoom float64 `json:"zoom"`
}

// engine implements the Engine interface.
// All GPU work runs on the worker goroutine. batchMu serializes every call that mutates map state, mu guards
// the fields read by the scheduler and draw listeners.
type engine struct {
	id      uint64
	mu      *sync.Mutex
	batchMu *sync.Mutex

	state State
	lost  error

	worker    *gpuWorker
	renderer  renderer.Renderer
	manager   *resource.Manager
	camera    camera.CameraController
	scheduler *scheduler.RenderScheduler
	picker    *picker.Picker
	loader    loader.Loader
	ownLoader bool

	sources          shader.Sources
	canvasW, canvasH int
	terrainURLs      loader.TerrainURLs
	// terrainImages holds eagerly fetched terrain until it is uploaded
	terrainImages map[resource.ID]common.TextureStagingData
	flags         uint32
	renderTerrain bool
	stash         []camera.State
	listeners     []func(profiler.DrawEvent)

	profiler         *profiler.Profiler
	profilingEnabled bool

	// Pre-creation config collected from builder options
	rendererFactory RendererFactory
	rendererOptions []renderer.RendererBuilderOption
	loaderOptions   []loader.LoaderBuilderOption
	cameraOptions   []camera.CameraControllerOption
	managerOptions  []resource.ManagerOption
}

// Engine is one map instance. Setup is staged: each stage returns a token that later stages require, and
// every call after setup requires the MapToken. Calls arriving out of order fail with a *StateError,
// calls with a foreign or zero token fail with ErrInvalidToken.
//
// Once the GPU context is lost, every later call returns the *renderer.ContextLostError.
type Engine interface {
	// Init takes ownership of the surface and creates the GPU context on the worker.
	//
	// Parameters:
	//   - ctx: bounds the call
	//   - surface: the presentation target, transferred to the engine
	//   - sources: the bake and display programs, empty stages use the embedded defaults
	//
	// Returns:
	//   - InitToken: proof of initialisation
	//   - error: window.ErrSurfaceTransferred, renderer.ErrNoAdapter, renderer.ErrNoDevice or a *StateError
	Init(ctx context.Context, surface *window.Surface, sources shader.Sources) (InitToken, error)

	// WithResources fetches the province tiles, overlays and palette, then creates the GPU resource set.
	//
	// Parameters:
	//   - ctx: cancels the fetches
	//   - urls: the asset locations
	//
	// Returns:
	//   - ResourcesToken: proof that the resource set exists
	//   - error: a fetch or decode error, a wrapped resource.ErrAllocation or renderer.ErrProgram
	WithResources(ctx context.Context, urls loader.ResourceURLs) (ResourcesToken, error)

	// WithTerrainImages registers the terrain layers. They are fetched on the first update that enables
	// terrain rendering, or immediately when opts.Eager is set.
	//
	// Parameters:
	//   - ctx: cancels an eager fetch
	//   - urls: the terrain asset locations, all required
	//   - opts: loading options
	//
	// Returns:
	//   - TerrainToken: proof that terrain is registered
	//   - error: loader.ErrMissingURL, a fetch error or a *StateError
	WithTerrainImages(ctx context.Context, urls loader.TerrainURLs, opts TerrainOptions) (TerrainToken, error)

	// WithMap completes setup: it creates the camera for the surface and binds the resource set.
	//
	// Parameters:
	//   - ctx: bounds the call
	//   - pixelRatio: device pixels per CSS pixel
	//   - init, resources, terrain: the tokens of the earlier stages
	//
	// Returns:
	//   - MapToken: the token required by every later call
	//   - error: ErrInvalidToken or a *StateError
	WithMap(ctx context.Context, pixelRatio float64, init InitToken, resources ResourcesToken, terrain TerrainToken) (MapToken, error)

	// WithCommands runs a batch in order. No other batch interleaves with its state changes. Draw commands
	// queue a redraw and the call returns once every queued redraw is committed, so concurrent batches share
	// a pending redraw instead of each submitting their own. The batch stops at the first failing command.
	//
	// Parameters:
	//   - ctx: bounds the waits on draws and terrain fetches
	//   - commands: the batch
	//   - tok: the map token
	//
	// Returns:
	//   - error: the first command error, wrapped with its position
	WithCommands(ctx context.Context, commands []Command, tok MapToken) error

	// Screenshot captures the map and encodes it. "viewport" redraws and captures the current view,
	// "world" renders the whole map off-screen independent of the camera.
	//
	// Parameters:
	//   - ctx: bounds the call
	//   - tok: the map token
	//   - opts: the capture kind, scale and watermark
	//   - enc: the output encoding
	//
	// Returns:
	//   - []byte: the encoded image
	//   - error: screenshot.ErrUnknownFormat, screenshot.ErrNoContext or a renderer error
	Screenshot(ctx context.Context, tok MapToken, opts screenshot.Options, enc screenshot.EncodeOptions) ([]byte, error)

	// FindProvince resolves the region under a pointer.
	//
	// Parameters:
	//   - ctx: bounds the call
	//   - ev: the pointer event, client coordinates relative to the canvas
	//   - tok: the map token
	//
	// Returns:
	//   - *picker.Result: the region, nil when the pointer is over no region
	//   - error: a token or state error
	FindProvince(ctx context.Context, ev camera.PointerEvent, tok MapToken) (*picker.Result, error)

	// Stash saves the camera and canvas state, then resizes the canvas to one hemisphere at opts.Zoom and
	// frames the west hemisphere. Stashes nest.
	//
	// Parameters:
	//   - ctx: bounds the call
	//   - tok: the map token
	//   - opts: the zoom of the stashed frame
	//
	// Returns:
	//   - error: a token, state or renderer error
	Stash(ctx context.Context, tok MapToken, opts StashOptions) error

	// PopStash restores the state saved by the latest Stash exactly.
	//
	// Parameters:
	//   - ctx: bounds the call
	//   - tok: the map token
	//
	// Returns:
	//   - error: ErrNothingStashed when no state is stashed
	PopStash(ctx context.Context, tok MapToken) error

	// OnDraw registers a listener called once per completed frame, from a scheduler goroutine.
	//
	// Parameters:
	//   - tok: the map token
	//   - listener: the callback
	//
	// Returns:
	//   - error: a token or state error
	OnDraw(tok MapToken, listener func(profiler.DrawEvent)) error

	// State returns the current setup stage.
	//
	// Returns:
	//   - State: the stage
	State() State

	// Close waits for the running batch, releases every GPU object and stops the worker.
	// Safe to call multiple times.
	//
	// Returns:
	//   - error: always nil, kept for io.Closer
	Close() error
}

var _ Engine = &engine{}

// NewEngine creates an engine in the Uninitialized state and starts its GPU worker.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		id:      engineIDs.Add(1),
		mu:      &sync.Mutex{},
		batchMu: &sync.Mutex{},
		flags:   DefaultFlags,
	}
	for _, option := range options {
		option(e)
	}

	if e.rendererFactory == nil {
		opts := e.rendererOptions
		e.rendererFactory = func(desc *wgpu.SurfaceDescriptor, width, height int) (renderer.Renderer, error) {
			return renderer.NewRenderer(desc, width, height, opts...)
		}
	}
	if e.loader == nil {
		e.loader = loader.NewLoader(e.loaderOptions...)
		e.ownLoader = true
	}
	if e.profilingEnabled {
		e.profiler = profiler.NewProfiler()
	}
	e.scheduler = scheduler.NewRenderScheduler(e.drawMap, e.drawViewport, e.onFrame)
	e.worker = newGPUWorker()
	return e
}

func (e *engine) Init(ctx context.Context, surface *window.Surface, sources shader.Sources) (InitToken, error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if err := e.expect(StateUninitialized); err != nil {
		return InitToken{}, err
	}
	if surface == nil {
		return InitToken{}, errors.New("surface is nil")
	}
	if err := ctx.Err(); err != nil {
		return InitToken{}, err
	}

	desc, err := surface.Take()
	if err != nil {
		return InitToken{}, err
	}
	width, height := surface.Size()

	var r renderer.Renderer
	err = e.worker.Do(func() error {
		var createErr error
		r, createErr = e.rendererFactory(desc, width, height)
		return createErr
	})
	if err != nil {
		return InitToken{}, fmt.Errorf("failed to initialise gpu: %w", err)
	}

	e.mu.Lock()
	e.renderer = r
	e.manager = resource.NewManager(r, e.managerOptions...)
	e.sources = sources.OrDefault()
	e.canvasW, e.canvasH = width, height
	e.state = StateInitialized
	e.mu.Unlock()

	log.Printf("[Engine] %d initialised, surface %dx%d offscreen=%t", e.id, width, height, desc == nil)
	return InitToken{token{e.id}}, nil
}

func (e *engine) WithResources(ctx context.Context, urls loader.ResourceURLs) (ResourcesToken, error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if err := e.expect(StateInitialized); err != nil {
		return ResourcesToken{}, err
	}

	res, err := e.loader.LoadResources(ctx, urls)
	if err != nil {
		return ResourcesToken{}, err
	}
	pk, err := res.Picker()
	if err != nil {
		return ResourcesToken{}, err
	}

	static := resource.StaticResources{
		ProvinceIndex: res.ProvinceIndex,
		Rivers:        res.Rivers,
		Stripes:       res.Stripes,
		RegionCount:   res.Palette.Len(),
		Bake:          e.sources.Bake,
		Display:       e.sources.Display,
		CanvasWidth:   e.canvasW,
		CanvasHeight:  e.canvasH,
	}
	if err := e.do(func() error {
		_, createErr := e.manager.Create(static)
		return createErr
	}); err != nil {
		return ResourcesToken{}, err
	}

	e.mu.Lock()
	e.picker = pk
	e.state = StateResourcesLoaded
	e.mu.Unlock()
	return ResourcesToken{token{e.id}}, nil
}

func (e *engine) WithTerrainImages(ctx context.Context, urls loader.TerrainURLs, opts TerrainOptions) (TerrainToken, error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()

	e.mu.Lock()
	state := e.state
	e.mu.Unlock()
	switch state {
	case StateInitialized, StateResourcesLoaded:
	case StateClosed:
		return TerrainToken{}, ErrClosed
	case StateMapReady:
		return TerrainToken{}, &StateError{Want: StateResourcesLoaded, Got: state}
	default:
		return TerrainToken{}, &StateError{Want: StateInitialized, Got: state}
	}
	if err := urls.Validate(); err != nil {
		return TerrainToken{}, err
	}

	var images map[resource.ID]common.TextureStagingData
	if opts.Eager {
		var err error
		if images, err = e.loader.LoadTerrain(ctx, urls); err != nil {
			return TerrainToken{}, err
		}
	}

	e.mu.Lock()
	e.terrainURLs = urls
	e.terrainImages = images
	e.mu.Unlock()
	return TerrainToken{token{e.id}}, nil
}

func (e *engine) WithMap(ctx context.Context, pixelRatio float64, init InitToken, resources ResourcesToken, terrain TerrainToken) (MapToken, error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if !init.t.valid(e.id) || !resources.t.valid(e.id) || !terrain.t.valid(e.id) {
		return MapToken{}, ErrInvalidToken
	}
	if err := e.expect(StateResourcesLoaded); err != nil {
		return MapToken{}, err
	}
	if err := ctx.Err(); err != nil {
		return MapToken{}, err
	}
	if pixelRatio <= 0 {
		pixelRatio = 1
	}

	options := append([]camera.CameraControllerOption{
		camera.WithPixelRatio(pixelRatio),
		camera.WithCanvasSize(e.canvasW, e.canvasH),
	}, e.cameraOptions...)
	cam := camera.NewCameraController(options...)

	e.mu.Lock()
	images := e.terrainImages
	e.terrainImages = nil
	e.mu.Unlock()

	if err := e.do(func() error {
		e.renderer.Bind(e.manager.Arena())
		if images != nil {
			return e.manager.UpdateTerrainTextures(images)
		}
		return nil
	}); err != nil {
		return MapToken{}, err
	}

	e.mu.Lock()
	e.camera = cam
	e.state = StateMapReady
	e.mu.Unlock()
	log.Printf("[Engine] %d map ready, %d regions", e.id, e.manager.RegionCount())
	return MapToken{token{e.id}}, nil
}

func (e *engine) WithCommands(ctx context.Context, commands []Command, tok MapToken) error {
	draws, err := e.queue(ctx, commands, tok)
	// Draws are awaited outside batchMu so that concurrent batches can join the pending redraw.
	for _, d := range draws {
		if werr := d.future.Wait(ctx); werr != nil {
			return fmt.Errorf("command %d (%s): %w", d.index, d.command.Type(), werr)
		}
	}
	return err
}

// queuedDraw is a redraw requested by a batch that has not been awaited yet.
type queuedDraw struct {
	index   int
	command Command
	future  *scheduler.Future
}

// queue applies a batch under batchMu. Draw commands only request their redraw; the futures are returned
// so the caller can wait once the lock is released.
func (e *engine) queue(ctx context.Context, commands []Command, tok MapToken) ([]queuedDraw, error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if err := e.checkMap(tok); err != nil {
		return nil, err
	}
	var draws []queuedDraw
	for i, c := range commands {
		var f *scheduler.Future
		switch c.(type) {
		case nil:
			return draws, fmt.Errorf("command %d: nil command", i)
		case *DrawMap, DrawMap:
			f = e.scheduler.RedrawMap()
		case *DrawViewport, DrawViewport:
			f = e.scheduler.RedrawViewport()
		default:
			if err := e.apply(ctx, c); err != nil {
				return draws, fmt.Errorf("command %d (%s): %w", i, c.Type(), err)
			}
			continue
		}
		draws = append(draws, queuedDraw{index: i, command: c, future: f})
	}
	return draws, nil
}

// apply runs one command. Caller must hold e.batchMu.
func (e *engine) apply(ctx context.Context, c Command) error {
	switch c := c.(type) {
	case *ProvinceColors:
		return e.do(func() error { return e.manager.UpdateProvinceColors(c.Primary, c.Secondary) })
	case ProvinceColors:
		return e.apply(ctx, &c)
	case *CountryProvinceColors:
		return e.do(func() error { return e.manager.UpdateCountryOverlay(c.Colors) })
	case CountryProvinceColors:
		return e.apply(ctx, &c)
	case *Resize:
		e.camera.Resize(c.Width, c.Height)
		return e.resizeCanvas()
	case Resize:
		return e.apply(ctx, &c)
	case *Wheel:
		e.camera.OnWheel(c.Event, c.Rect)
	case Wheel:
		return e.apply(ctx, &c)
	case *MoveCamera:
		e.camera.MoveCamera(c.Event.MovementX, c.Event.MovementY)
	case MoveCamera:
		return e.apply(ctx, &c)
	case *MoveCameraTo:
		offsetX := 0.0
		if c.OffsetX != nil {
			offsetX = *c.OffsetX
		}
		e.camera.MoveTo(c.X, c.Y, offsetX)
	case MoveCameraTo:
		return e.apply(ctx, &c)
	case *ZoomIn, ZoomIn:
		e.camera.ZoomIn()
	case *ZoomOut, ZoomOut:
		e.camera.ZoomOut()
	case *Update:
		return e.update(ctx, c)
	case Update:
		return e.update(ctx, &c)
	case *Select:
		return e.do(func() error { return e.manager.Select(c.Index) })
	case Select:
		return e.apply(ctx, &c)
	case *Hover:
		return e.do(func() error { return e.manager.Hover(c.Index) })
	case Hover:
		return e.apply(ctx, &c)
	case *ClearSelection, ClearSelection:
		return e.do(e.manager.ClearSelection)
	case *ClearHover, ClearHover:
		return e.do(e.manager.ClearHover)
	default:
		return fmt.Errorf("unsupported command %T", c)
	}
	return nil
}

func (e *engine) update(ctx context.Context, c *Update) error {
	if c.RenderTerrain != nil && *c.RenderTerrain {
		if err := e.ensureTerrain(ctx); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	setFlag(&e.flags, resource.FlagProvinceBorders, c.ShowProvinceBorders)
	setFlag(&e.flags, resource.FlagCountryBorders, c.ShowCountryBorders)
	setFlag(&e.flags, resource.FlagMapModeBorders, c.ShowMapModeBorders)
	if c.RenderTerrain != nil {
		e.renderTerrain = *c.RenderTerrain
	}
	return nil
}

func setFlag(flags *uint32, flag uint32, on *bool) {
	switch {
	case on == nil:
	case *on:
		*flags |= flag
	default:
		*flags &^= flag
	}
}

// ensureTerrain uploads the terrain layers once, fetching them first unless they were loaded eagerly.
func (e *engine) ensureTerrain(ctx context.Context) error {
	if e.manager.TerrainLoaded() {
		return nil
	}

	e.mu.Lock()
	images, urls := e.terrainImages, e.terrainURLs
	e.mu.Unlock()
	if images == nil {
		var err error
		if images, err = e.loader.LoadTerrain(ctx, urls); err != nil {
			return err
		}
	}
	if err := e.do(func() error { return e.manager.UpdateTerrainTextures(images) }); err != nil {
		return err
	}

	e.mu.Lock()
	e.terrainImages = nil
	e.mu.Unlock()
	return nil
}

// resizeCanvas applies the camera's canvas size to the surface and the display quad.
func (e *engine) resizeCanvas() error {
	width, height := e.camera.CanvasSize()
	return e.do(func() error {
		e.renderer.Resize(width, height)
		return e.manager.ResizeGeometry(width, height)
	})
}

func (e *engine) Screenshot(ctx context.Context, tok MapToken, opts screenshot.Options, enc screenshot.EncodeOptions) ([]byte, error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if err := e.checkMap(tok); err != nil {
		return nil, err
	}

	e.mu.Lock()
	renderTerrain := e.renderTerrain
	e.mu.Unlock()
	view := e.camera.Uniform(renderTerrain)

	var width, height uint32
	var u camera.DisplayUniform
	switch opts.Kind {
	case screenshot.KindViewport, "":
		if err := e.scheduler.RedrawViewport().Wait(ctx); err != nil {
			return nil, err
		}
		w, h := e.camera.CanvasSize()
		width, height = uint32(w), uint32(h)
		u = view
	case screenshot.KindWorld:
		bw, bh := e.manager.BakeSize()
		width, height = bw*2, bh
		u = worldUniform(opts, width, height, view)
	default:
		return nil, fmt.Errorf("unknown screenshot kind %q", opts.Kind)
	}

	rw, rh := opts.RenderSize(width, height)
	var pixels common.TextureStagingData
	if err := e.do(func() error {
		var captureErr error
		pixels, captureErr = e.renderer.Capture(rw, rh, u)
		return captureErr
	}); err != nil {
		return nil, err
	}

	ow, oh := opts.OutputSize(width, height)
	return screenshot.Render(pixels, ow, oh, opts, enc)
}

// worldUniform frames the whole map, one map width across the capture.
func worldUniform(opts screenshot.Options, width, height uint32, view camera.DisplayUniform) camera.DisplayUniform {
	rw, _ := opts.RenderSize(width, height)
	return camera.DisplayUniform{
		Focus:         [2]float32{camera.MapWidth / 2, camera.MapHeight / 2},
		Scale:         1,
		MaxScale:      float32(camera.MaxScale(int(rw), camera.MapAspect, camera.DefaultMaxPixelZoom)),
		FlipY:         view.FlipY,
		RenderTerrain: view.RenderTerrain,
	}
}

func (e *engine) FindProvince(ctx context.Context, ev camera.PointerEvent, tok MapToken) (*picker.Result, error) {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if err := e.checkMap(tok); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wx, wy := e.camera.CanvasToWorld(ev.ClientX, ev.ClientY)
	res, ok := e.picker.Pick(wx, wy, camera.MapWidth, camera.MapHeight)
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (e *engine) Stash(ctx context.Context, tok MapToken, opts StashOptions) error {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if err := e.checkMap(tok); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	zoom := opts.Zoom
	if zoom <= 0 {
		zoom = 1
	}

	e.stash = append(e.stash, e.camera.State())
	e.camera.ResizeCanvas(int(camera.HemisphereWidth*zoom), int(camera.MapHeight*zoom))
	e.camera.SetScale(2)
	e.camera.MoveTo(camera.HemisphereWidth/2, camera.MapHeight/2, 0)
	return e.resizeCanvas()
}

func (e *engine) PopStash(ctx context.Context, tok MapToken) error {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()
	if err := e.checkMap(tok); err != nil {
		return err
	}
	if len(e.stash) == 0 {
		return ErrNothingStashed
	}

	s := e.stash[len(e.stash)-1]
	e.stash = e.stash[:len(e.stash)-1]
	e.camera.Restore(s)
	return e.resizeCanvas()
}

func (e *engine) OnDraw(tok MapToken, listener func(profiler.DrawEvent)) error {
	if listener == nil {
		return errors.New("listener is nil")
	}
	if err := e.checkMap(tok); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
	return nil
}

func (e *engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *engine) Close() error {
	e.batchMu.Lock()
	defer e.batchMu.Unlock()

	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateClosed
	r, m := e.renderer, e.manager
	e.listeners = nil
	e.mu.Unlock()

	if err := e.worker.Do(func() error {
		if m != nil {
			m.Release()
		}
		if r != nil {
			r.Release()
		}
		return nil
	}); err != nil {
		log.Printf("[Engine] %d release failed: %v", e.id, err)
	}
	e.worker.Close()
	if e.ownLoader {
		e.loader.Close()
	}
	log.Printf("[Engine] %d closed", e.id)
	return nil
}

// expect checks the setup stage.
func (e *engine) expect(want State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return ErrClosed
	}
	if e.lost != nil {
		return e.lost
	}
	if e.state != want {
		return &StateError{Want: want, Got: e.state}
	}
	return nil
}

// checkMap validates the map token and that the engine is still usable.
func (e *engine) checkMap(tok MapToken) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return ErrClosed
	}
	if !tok.t.valid(e.id) {
		return ErrInvalidToken
	}
	if e.lost != nil {
		return e.lost
	}
	if e.state != StateMapReady {
		return &StateError{Want: StateMapReady, Got: e.state}
	}
	return nil
}

// do runs fn on the worker. A lost context is recorded and returned by every later call.
func (e *engine) do(fn func() error) error {
	e.mu.Lock()
	lost := e.lost
	e.mu.Unlock()
	if lost != nil {
		return lost
	}

	err := e.worker.Do(fn)
	var contextLost *renderer.ContextLostError
	if errors.As(err, &contextLost) {
		e.mu.Lock()
		if e.lost == nil {
			e.lost = contextLost
			log.Printf("[Engine] %d %v, engine is unusable", e.id, contextLost)
		}
		e.mu.Unlock()
	}
	return err
}

func (e *engine) drawMap() error {
	return e.do(func() error {
		e.mu.Lock()
		flags, terrain := e.flags, e.renderTerrain
		e.mu.Unlock()
		if err := e.renderer.Bake(e.manager.BakeUniform(flags)); err != nil {
			return err
		}
		return e.renderer.Display(e.camera.Uniform(terrain))
	})
}

func (e *engine) drawViewport() error {
	return e.do(func() error {
		e.mu.Lock()
		terrain := e.renderTerrain
		e.mu.Unlock()
		return e.renderer.Display(e.camera.Uniform(terrain))
	})
}

// onFrame runs on a scheduler goroutine after every completed redraw.
func (e *engine) onFrame(f scheduler.Frame) {
	ev := profiler.NewDrawEvent(f)
	if f.Err != nil {
		log.Printf("[Engine] %d draw failed: %v", e.id, f.Err)
	}
	if e.profiler != nil {
		e.profiler.Record(ev)
	}

	e.mu.Lock()
	listeners := append([]func(profiler.DrawEvent){}, e.listeners...)
	e.mu.Unlock()
	for _, l := range listeners {
		notify(l, ev)
	}
}

func notify(listener func(profiler.DrawEvent), ev profiler.DrawEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] draw listener panicked: %v", r)
		}
	}()
	listener(ev)
}
