package bridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-map/engine"
	"github.com/Carmen-Shannon/oxy-map/engine/camera"
	"github.com/Carmen-Shannon/oxy-map/engine/loader"
	"github.com/Carmen-Shannon/oxy-map/engine/picker"
	"github.com/Carmen-Shannon/oxy-map/engine/profiler"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-map/engine/screenshot"
	"github.com/Carmen-Shannon/oxy-map/engine/window"
	"github.com/gorilla/websocket"
)

// fakeEngine records what the server asks of it. Token checks are left to the server's token table.
type fakeEngine struct {
	mu         sync.Mutex
	state      engine.State
	surfaceW   int
	surfaceH   int
	resources  loader.ResourceURLs
	pixelRatio float64
	commands   []engine.Command
	stashed    int
	listeners  []func(profiler.DrawEvent)
	closed     chan struct{}
}

var _ engine.Engine = &fakeEngine{}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{closed: make(chan struct{})}
}

func (f *fakeEngine) Init(ctx context.Context, surface *window.Surface, sources shader.Sources) (engine.InitToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != engine.StateUninitialized {
		return engine.InitToken{}, &engine.StateError{Want: engine.StateUninitialized, Got: f.state}
	}
	f.surfaceW, f.surfaceH = surface.Size()
	f.state = engine.StateInitialized
	return engine.InitToken{}, nil
}

func (f *fakeEngine) WithResources(ctx context.Context, urls loader.ResourceURLs) (engine.ResourcesToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources = urls
	f.state = engine.StateResourcesLoaded
	return engine.ResourcesToken{}, nil
}

func (f *fakeEngine) WithTerrainImages(ctx context.Context, urls loader.TerrainURLs, opts engine.TerrainOptions) (engine.TerrainToken, error) {
	if err := urls.Validate(); err != nil {
		return engine.TerrainToken{}, err
	}
	return engine.TerrainToken{}, nil
}

func (f *fakeEngine) WithMap(ctx context.Context, pixelRatio float64, init engine.InitToken, resources engine.ResourcesToken, terrain engine.TerrainToken) (engine.MapToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pixelRatio = pixelRatio
	f.state = engine.StateMapReady
	return engine.MapToken{}, nil
}

func (f *fakeEngine) WithCommands(ctx context.Context, commands []engine.Command, tok engine.MapToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, commands...)
	return nil
}

func (f *fakeEngine) Screenshot(ctx context.Context, tok engine.MapToken, opts screenshot.Options, enc screenshot.EncodeOptions) ([]byte, error) {
	if enc.Format == "gif" {
		return nil, screenshot.ErrUnknownFormat
	}
	return []byte{0x89, 'P', 'N', 'G', byte(opts.NormalizedScale())}, nil
}

func (f *fakeEngine) FindProvince(ctx context.Context, ev camera.PointerEvent, tok engine.MapToken) (*picker.Result, error) {
	if ev.ClientX < 0 {
		return nil, nil
	}
	return &picker.Result{RegionID: 7, ColorIndex: int(ev.ClientX)}, nil
}

func (f *fakeEngine) Stash(ctx context.Context, tok engine.MapToken, opts engine.StashOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stashed++
	return nil
}

func (f *fakeEngine) PopStash(ctx context.Context, tok engine.MapToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stashed == 0 {
		return engine.ErrNothingStashed
	}
	f.stashed--
	return nil
}

func (f *fakeEngine) OnDraw(tok engine.MapToken, listener func(profiler.DrawEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, listener)
	return nil
}

func (f *fakeEngine) State() engine.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != engine.StateClosed {
		f.state = engine.StateClosed
		close(f.closed)
	}
	return nil
}

func (f *fakeEngine) fire(ev profiler.DrawEvent) {
	f.mu.Lock()
	listeners := append([]func(profiler.DrawEvent)(nil), f.listeners...)
	f.mu.Unlock()
	for _, l := range listeners {
		l(ev)
	}
}

func newTestBridge(t *testing.T) (*fakeEngine, *Client) {
	t.Helper()
	engines := make(chan *fakeEngine, 1)
	srv := NewServer(func() engine.Engine {
		f := newFakeEngine()
		engines <- f
		return f
	})
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(hs.URL))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	select {
	case f := <-engines:
		return f, c
	case <-time.After(5 * time.Second):
		t.Fatal("server did not create an engine")
		return nil, nil
	}
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func setupMap(t *testing.T, c *Client) Token {
	t.Helper()
	ctx := testContext(t)
	it, err := c.Init(ctx, 80, 60, shader.Sources{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	rt, err := c.WithResources(ctx, loader.ResourceURLs{Palette: "palette.bin", Index: "index.bin"})
	if err != nil {
		t.Fatalf("WithResources: %v", err)
	}
	tt, err := c.WithTerrainImages(ctx, terrainURLs(), engine.TerrainOptions{})
	if err != nil {
		t.Fatalf("WithTerrainImages: %v", err)
	}
	mt, err := c.WithMap(ctx, 2, it, rt, tt)
	if err != nil {
		t.Fatalf("WithMap: %v", err)
	}
	return mt
}

func terrainURLs() loader.TerrainURLs {
	return loader.TerrainURLs{
		Terrain: loader.HemisphereURLs{West: "tw.png", East: "te.png"},
		Normal:  loader.HemisphereURLs{West: "nw.png", East: "ne.png"},
		Height:  "height.png",
		Water:   "water.png",
	}
}

func TestSetupFlow(t *testing.T) {
	f, c := newTestBridge(t)
	mt := setupMap(t, c)
	if mt == "" {
		t.Fatal("WithMap returned an empty token")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.surfaceW != 80 || f.surfaceH != 60 {
		t.Errorf("surface size = %dx%d, want 80x60", f.surfaceW, f.surfaceH)
	}
	if f.resources.Palette != "palette.bin" || f.resources.Index != "index.bin" {
		t.Errorf("resources = %+v, want palette.bin and index.bin", f.resources)
	}
	if f.pixelRatio != 2 {
		t.Errorf("pixelRatio = %v, want 2", f.pixelRatio)
	}
	if f.state != engine.StateMapReady {
		t.Errorf("state = %v, want %v", f.state, engine.StateMapReady)
	}
}

func TestSetupErrors(t *testing.T) {
	_, c := newTestBridge(t)
	ctx := testContext(t)

	it, err := c.Init(ctx, 80, 60, shader.Sources{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_, err = c.Init(ctx, 80, 60, shader.Sources{})
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Code != CodeState {
		t.Errorf("second Init = %v, want a %s error", err, CodeState)
	}

	_, err = c.WithTerrainImages(ctx, loader.TerrainURLs{}, engine.TerrainOptions{})
	if !errors.As(err, &remote) || remote.Code != CodeInternal {
		t.Errorf("WithTerrainImages without urls = %v, want a %s error", err, CodeInternal)
	}

	// an init token in the resources slot is rejected
	_, err = c.WithMap(ctx, 1, it, it, it)
	if !errors.Is(err, engine.ErrInvalidToken) {
		t.Errorf("WithMap with mismatched tokens = %v, want %v", err, engine.ErrInvalidToken)
	}
}

func TestCommandsDecoded(t *testing.T) {
	f, c := newTestBridge(t)
	mt := setupMap(t, c)
	ctx := testContext(t)

	batch := []engine.Command{
		engine.Select{Index: 3},
		engine.MoveCameraTo{X: 10, Y: 20},
		engine.DrawMap{},
	}
	if err := c.WithCommands(ctx, batch, mt); err != nil {
		t.Fatalf("WithCommands: %v", err)
	}

	want := []engine.Command{
		&engine.Select{Index: 3},
		&engine.MoveCameraTo{X: 10, Y: 20},
		&engine.DrawMap{},
	}
	f.mu.Lock()
	got := f.commands
	f.mu.Unlock()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %#v, want %#v", got, want)
	}
}

func TestInvalidToken(t *testing.T) {
	_, c := newTestBridge(t)
	setupMap(t, c)
	ctx := testContext(t)

	err := c.WithCommands(ctx, []engine.Command{engine.ZoomIn{}}, "bogus")
	if !errors.Is(err, engine.ErrInvalidToken) {
		t.Errorf("WithCommands(bogus) = %v, want %v", err, engine.ErrInvalidToken)
	}
	if _, err := c.FindProvince(ctx, camera.PointerEvent{}, ""); !errors.Is(err, engine.ErrInvalidToken) {
		t.Errorf("FindProvince(empty token) = %v, want %v", err, engine.ErrInvalidToken)
	}
}

func TestScreenshot(t *testing.T) {
	_, c := newTestBridge(t)
	mt := setupMap(t, c)
	ctx := testContext(t)

	img, err := c.Screenshot(ctx, mt, screenshot.Options{Kind: screenshot.KindWorld, Scale: 2}, screenshot.EncodeOptions{})
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	want := []byte{0x89, 'P', 'N', 'G', 2}
	if !reflect.DeepEqual(img, want) {
		t.Errorf("Screenshot = %v, want %v", img, want)
	}

	_, err = c.Screenshot(ctx, mt, screenshot.Options{}, screenshot.EncodeOptions{Format: "gif"})
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Message != screenshot.ErrUnknownFormat.Error() {
		t.Errorf("Screenshot(gif) = %v, want %v", err, screenshot.ErrUnknownFormat)
	}
}

func TestFindProvince(t *testing.T) {
	_, c := newTestBridge(t)
	mt := setupMap(t, c)
	ctx := testContext(t)

	res, err := c.FindProvince(ctx, camera.PointerEvent{ClientX: 4, ClientY: 5}, mt)
	if err != nil {
		t.Fatalf("FindProvince: %v", err)
	}
	if res == nil || res.RegionID != 7 || res.ColorIndex != 4 {
		t.Errorf("FindProvince = %+v, want region 7 at index 4", res)
	}

	res, err = c.FindProvince(ctx, camera.PointerEvent{ClientX: -1}, mt)
	if err != nil {
		t.Fatalf("FindProvince off map: %v", err)
	}
	if res != nil {
		t.Errorf("FindProvince off map = %+v, want nil", res)
	}
}

func TestStashAndPopStash(t *testing.T) {
	_, c := newTestBridge(t)
	mt := setupMap(t, c)
	ctx := testContext(t)

	if err := c.PopStash(ctx, mt); !errors.Is(err, engine.ErrNothingStashed) {
		t.Errorf("PopStash on empty stash = %v, want %v", err, engine.ErrNothingStashed)
	}
	if err := c.Stash(ctx, mt, engine.StashOptions{Zoom: 0.5}); err != nil {
		t.Fatalf("Stash: %v", err)
	}
	if err := c.PopStash(ctx, mt); err != nil {
		t.Errorf("PopStash: %v", err)
	}
}

func TestDrawPush(t *testing.T) {
	f, c := newTestBridge(t)
	mt := setupMap(t, c)
	ctx := testContext(t)

	first := make(chan profiler.DrawEvent, 1)
	second := make(chan profiler.DrawEvent, 1)
	if err := c.OnDraw(ctx, mt, func(ev profiler.DrawEvent) { first <- ev }); err != nil {
		t.Fatalf("OnDraw: %v", err)
	}
	if err := c.OnDraw(ctx, mt, func(ev profiler.DrawEvent) { second <- ev }); err != nil {
		t.Fatalf("second OnDraw: %v", err)
	}

	f.mu.Lock()
	n := len(f.listeners)
	f.mu.Unlock()
	if n != 1 {
		t.Errorf("engine listeners = %d, want 1", n)
	}

	f.fire(profiler.DrawEvent{ElapsedMs: 4.5, MapDrawsQueued: 1})
	for i, ch := range []chan profiler.DrawEvent{first, second} {
		select {
		case ev := <-ch:
			if ev.ElapsedMs != 4.5 || ev.MapDrawsQueued != 1 {
				t.Errorf("handler %d got %+v, want elapsed 4.5 and one map draw", i, ev)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("handler %d received no draw event", i)
		}
	}
}

func TestEngineClosedOnDisconnect(t *testing.T) {
	f, c := newTestBridge(t)
	setupMap(t, c)

	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	select {
	case <-f.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("engine not closed after the client disconnected")
	}

	ctx := testContext(t)
	if _, err := c.Init(ctx, 1, 1, shader.Sources{}); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Init after Close = %v, want %v", err, ErrConnectionClosed)
	}
}

func TestUnknownMessageType(t *testing.T) {
	srv := NewServer(func() engine.Engine { return newFakeEngine() })
	hs := httptest.NewServer(srv)
	defer hs.Close()
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(hs.URL), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(Message{Type: "teleport", RequestID: 9}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.RequestID != 9 || resp.Code != CodeBadRequest {
		t.Errorf("response = %+v, want request 9 with code %s", resp, CodeBadRequest)
	}

	if err := conn.WriteJSON(Message{Type: TypeInit, RequestID: 10, Data: []byte(`{"width":"wide"}`)}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.RequestID != 10 || resp.Code != CodeBadRequest {
		t.Errorf("response = %+v, want request 10 with code %s", resp, CodeBadRequest)
	}
}

func TestRemoteErrorUnwrap(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want error
	}{
		{CodeBadRequest, ErrBadRequest},
		{CodeInvalidToken, engine.ErrInvalidToken},
		{CodeClosed, engine.ErrClosed},
		{CodeNothingStashed, engine.ErrNothingStashed},
		{CodeSurfaceTransferred, window.ErrSurfaceTransferred},
	}
	for _, tt := range tests {
		err := &RemoteError{Code: tt.code, Message: "x"}
		if !errors.Is(err, tt.want) {
			t.Errorf("errors.Is(RemoteError{%s}, %v) = false, want true", tt.code, tt.want)
		}
	}
	if errors.Unwrap(&RemoteError{Code: CodeInternal}) != nil {
		t.Errorf("RemoteError{%s}.Unwrap() != nil", CodeInternal)
	}
}
