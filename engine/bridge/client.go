package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-map/engine"
	"github.com/Carmen-Shannon/oxy-map/engine/camera"
	"github.com/Carmen-Shannon/oxy-map/engine/loader"
	"github.com/Carmen-Shannon/oxy-map/engine/picker"
	"github.com/Carmen-Shannon/oxy-map/engine/profiler"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-map/engine/screenshot"
	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned for calls made on, or pending when, the connection goes away.
var ErrConnectionClosed = errors.New("bridge connection closed")

// Client drives a remote engine through a Server. Its methods mirror engine.Engine and may be called
// concurrently; the server still applies them one at a time.
type Client struct {
	conn    *websocket.Conn
	writeMu *sync.Mutex

	mu      *sync.Mutex
	nextID  uint64
	pending map[uint64]chan Message
	draws   []func(profiler.DrawEvent)
	err     error

	done chan struct{}
}

// Dial connects to a Server.
//
// Parameters:
//   - ctx: bounds the handshake
//   - url: the ws:// or wss:// address of the server
//
// Returns:
//   - *Client: the connected client
//   - error: error if the handshake fails
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		writeMu: &sync.Mutex{},
		mu:      &sync.Mutex{},
		pending: make(map[uint64]chan Message),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	var err error
	for {
		var msg Message
		if err = c.conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == TypeDraw {
			c.dispatchDraw(msg)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}

	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("[Bridge] client read failed: %v", err)
	}
	c.mu.Lock()
	c.err = ErrConnectionClosed
	c.pending = make(map[uint64]chan Message)
	c.mu.Unlock()
	close(c.done)
}

func (c *Client) dispatchDraw(msg Message) {
	var ev profiler.DrawEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Printf("[Bridge] bad draw event: %v", err)
		return
	}
	c.mu.Lock()
	handlers := append([]func(profiler.DrawEvent)(nil), c.draws...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// call sends one request and decodes the response data into resp, which may be nil.
func (c *Client) call(ctx context.Context, typ MessageType, req, resp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ch := make(chan Message, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(Message{Type: typ, RequestID: id, Data: data})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("%s: %w", typ, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != "" {
			return &RemoteError{Code: msg.Code, Message: msg.Error}
		}
		if resp == nil || len(msg.Data) == 0 {
			return nil
		}
		return json.Unmarshal(msg.Data, resp)
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-c.done:
		return ErrConnectionClosed
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) token(ctx context.Context, typ MessageType, req any) (Token, error) {
	var resp TokenResponse
	if err := c.call(ctx, typ, req, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Init creates the remote renderer on a surface of the given size.
func (c *Client) Init(ctx context.Context, width, height int, sources shader.Sources) (Token, error) {
	return c.token(ctx, TypeInit, InitRequest{Width: width, Height: height, Sources: sources})
}

func (c *Client) WithResources(ctx context.Context, urls loader.ResourceURLs) (Token, error) {
	return c.token(ctx, TypeWithResources, urls)
}

func (c *Client) WithTerrainImages(ctx context.Context, urls loader.TerrainURLs, opts engine.TerrainOptions) (Token, error) {
	return c.token(ctx, TypeWithTerrainImages, TerrainRequest{URLs: urls, Options: opts})
}

func (c *Client) WithMap(ctx context.Context, pixelRatio float64, init, resources, terrain Token) (Token, error) {
	return c.token(ctx, TypeWithMap, WithMapRequest{PixelRatio: pixelRatio, Init: init, Resources: resources, Terrain: terrain})
}

// WithCommands sends one batch. The server applies it in order and stops at the first failing command.
func (c *Client) WithCommands(ctx context.Context, commands []engine.Command, tok Token) error {
	return c.call(ctx, TypeWithCommands, CommandsRequest{Token: tok, Commands: commands}, nil)
}

func (c *Client) Screenshot(ctx context.Context, tok Token, opts screenshot.Options, enc screenshot.EncodeOptions) ([]byte, error) {
	var resp ScreenshotResponse
	if err := c.call(ctx, TypeScreenshot, ScreenshotRequest{Token: tok, Options: opts, Encode: enc}, &resp); err != nil {
		return nil, err
	}
	return resp.Image, nil
}

// FindProvince returns nil with no error when no region is under the pointer.
func (c *Client) FindProvince(ctx context.Context, ev camera.PointerEvent, tok Token) (*picker.Result, error) {
	var resp FindProvinceResponse
	if err := c.call(ctx, TypeFindProvince, FindProvinceRequest{Token: tok, Event: ev}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) Stash(ctx context.Context, tok Token, opts engine.StashOptions) error {
	return c.call(ctx, TypeStash, StashRequest{Token: tok, Options: opts}, nil)
}

func (c *Client) PopStash(ctx context.Context, tok Token) error {
	return c.call(ctx, TypePopStash, TokenRequest{Token: tok}, nil)
}

// OnDraw registers fn for every frame the remote engine completes. Only the first registration is sent to
// the server, later ones share its event stream. Handlers run on the read goroutine and should not block.
func (c *Client) OnDraw(ctx context.Context, tok Token, fn func(profiler.DrawEvent)) error {
	c.mu.Lock()
	first := len(c.draws) == 0
	c.mu.Unlock()
	if first {
		if err := c.call(ctx, TypeOnDraw, TokenRequest{Token: tok}, nil); err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.draws = append(c.draws, fn)
	c.mu.Unlock()
	return nil
}

// Close ends the connection, which closes the remote engine.
func (c *Client) Close() error {
	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	c.mu.Lock()
	c.err = ErrConnectionClosed
	c.mu.Unlock()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
