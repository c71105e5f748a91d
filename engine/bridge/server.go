package bridge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-map/engine"
	"github.com/Carmen-Shannon/oxy-map/engine/loader"
	"github.com/Carmen-Shannon/oxy-map/engine/profiler"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer"
	"github.com/Carmen-Shannon/oxy-map/engine/window"
	"github.com/gorilla/websocket"
)

// SurfaceFactory returns the surface handed to the engine of a connection on init.
type SurfaceFactory func(width, height int) *window.Surface

// Server is an http.Handler that upgrades every request to a WebSocket and serves one engine per connection.
// Requests of a connection are handled one at a time, in arrival order.
type Server struct {
	mu       *sync.Mutex
	sessions map[*session]struct{}
	closed   bool

	newEngine func() engine.Engine
	upgrader  websocket.Upgrader

	surface      SurfaceFactory
	writeTimeout time.Duration
	readLimit    int64
	drawBuffer   int
}

// NewServer creates a Server.
//
// Parameters:
//   - newEngine: creates the engine of a new connection, closed when the connection ends
//   - options: a variadic list of ServerBuilderOption functions
//
// Returns:
//   - *Server: the server
func NewServer(newEngine func() engine.Engine, options ...ServerBuilderOption) *Server {
	s := &Server{
		mu:           &sync.Mutex{},
		sessions:     make(map[*session]struct{}),
		newEngine:    newEngine,
		surface:      window.NewOffscreenSurface,
		writeTimeout: 10 * time.Second,
		readLimit:    64 << 20,
		drawBuffer:   64,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Bridge] upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(s.readLimit)

	sess := newSession(s, conn)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()

	log.Printf("[Bridge] %s connected", conn.RemoteAddr())
	sess.run()
	log.Printf("[Bridge] %s disconnected", conn.RemoteAddr())
}

// Close rejects new connections and closes the open ones. Their engines are closed as their read loops exit.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sess := range s.sessions {
		sess.conn.Close()
	}
	return nil
}

// session is one connection and its engine.
type session struct {
	server *Server
	conn   *websocket.Conn
	engine engine.Engine

	tokens  map[Token]any
	drawing bool

	out     chan Message
	done    chan struct{}
	stopped chan struct{}
}

func newSession(s *Server, conn *websocket.Conn) *session {
	return &session{
		server:  s,
		conn:    conn,
		engine:  s.newEngine(),
		tokens:  make(map[Token]any),
		out:     make(chan Message, s.drawBuffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *session) run() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(s.stopped)
		s.writePump()
	}()

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[Bridge] read failed: %v", err)
			}
			break
		}
		s.send(s.dispatch(ctx, msg))
	}

	cancel()
	if err := s.engine.Close(); err != nil {
		log.Printf("[Bridge] engine close failed: %v", err)
	}
	close(s.done)
	<-s.stopped
	s.conn.Close()
}

func (s *session) writePump() {
	for {
		select {
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(s.server.writeTimeout))
			if err := s.conn.WriteJSON(msg); err != nil {
				log.Printf("[Bridge] write failed: %v", err)
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// send queues a response. It blocks while the write buffer is full and the writer is alive.
func (s *session) send(msg Message) {
	select {
	case s.out <- msg:
	case <-s.stopped:
	}
}

// push queues a draw event, dropping it when the write buffer is full.
func (s *session) push(ev profiler.DrawEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case s.out <- Message{Type: TypeDraw, Data: data}:
	default:
	}
}

// dispatch handles one request and builds its response.
func (s *session) dispatch(ctx context.Context, msg Message) Message {
	resp := Message{Type: msg.Type, RequestID: msg.RequestID}
	result, err := s.handle(ctx, msg)
	if err == nil && result != nil {
		resp.Data, err = json.Marshal(result)
	}
	if err != nil {
		resp.Data = nil
		resp.Error = err.Error()
		resp.Code = errorCode(err)
	}
	return resp
}

func (s *session) handle(ctx context.Context, msg Message) (any, error) {
	switch msg.Type {
	case TypeInit:
		var req InitRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := s.engine.Init(ctx, s.server.surface(req.Width, req.Height), req.Sources)
		if err != nil {
			return nil, err
		}
		return s.issue(tok)

	case TypeWithResources:
		var req loader.ResourceURLs
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := s.engine.WithResources(ctx, req)
		if err != nil {
			return nil, err
		}
		return s.issue(tok)

	case TypeWithTerrainImages:
		var req TerrainRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := s.engine.WithTerrainImages(ctx, req.URLs, req.Options)
		if err != nil {
			return nil, err
		}
		return s.issue(tok)

	case TypeWithMap:
		var req WithMapRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		it, err := lookup[engine.InitToken](s, req.Init)
		if err != nil {
			return nil, err
		}
		rt, err := lookup[engine.ResourcesToken](s, req.Resources)
		if err != nil {
			return nil, err
		}
		tt, err := lookup[engine.TerrainToken](s, req.Terrain)
		if err != nil {
			return nil, err
		}
		tok, err := s.engine.WithMap(ctx, req.PixelRatio, it, rt, tt)
		if err != nil {
			return nil, err
		}
		return s.issue(tok)

	case TypeWithCommands:
		var req CommandsRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := lookup[engine.MapToken](s, req.Token)
		if err != nil {
			return nil, err
		}
		return nil, s.engine.WithCommands(ctx, req.Commands, tok)

	case TypeScreenshot:
		var req ScreenshotRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := lookup[engine.MapToken](s, req.Token)
		if err != nil {
			return nil, err
		}
		img, err := s.engine.Screenshot(ctx, tok, req.Options, req.Encode)
		if err != nil {
			return nil, err
		}
		return ScreenshotResponse{Image: img}, nil

	case TypeFindProvince:
		var req FindProvinceRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := lookup[engine.MapToken](s, req.Token)
		if err != nil {
			return nil, err
		}
		res, err := s.engine.FindProvince(ctx, req.Event, tok)
		if err != nil {
			return nil, err
		}
		return FindProvinceResponse{Result: res}, nil

	case TypeStash:
		var req StashRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := lookup[engine.MapToken](s, req.Token)
		if err != nil {
			return nil, err
		}
		return nil, s.engine.Stash(ctx, tok, req.Options)

	case TypePopStash:
		var req TokenRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := lookup[engine.MapToken](s, req.Token)
		if err != nil {
			return nil, err
		}
		return nil, s.engine.PopStash(ctx, tok)

	case TypeOnDraw:
		var req TokenRequest
		if err := decode(msg, &req); err != nil {
			return nil, err
		}
		tok, err := lookup[engine.MapToken](s, req.Token)
		if err != nil {
			return nil, err
		}
		// one engine listener per connection, the client fans out to its handlers
		if s.drawing {
			return nil, nil
		}
		if err := s.engine.OnDraw(tok, s.push); err != nil {
			return nil, err
		}
		s.drawing = true
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrBadRequest, msg.Type)
	}
}

// issue stores a typed token under a new random wire token.
func (s *session) issue(tok any) (TokenResponse, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return TokenResponse{}, err
	}
	t := Token(hex.EncodeToString(b))
	s.tokens[t] = tok
	return TokenResponse{Token: t}, nil
}

// lookup resolves a wire token to the typed token it was issued for.
func lookup[T any](s *session, t Token) (T, error) {
	tok, ok := s.tokens[t].(T)
	if !ok {
		var zero T
		return zero, engine.ErrInvalidToken
	}
	return tok, nil
}

func decode(msg Message, v any) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadRequest, msg.Type, err)
	}
	return nil
}

func errorCode(err error) ErrorCode {
	var stateErr *engine.StateError
	var lost *renderer.ContextLostError
	switch {
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, engine.ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, engine.ErrClosed):
		return CodeClosed
	case errors.Is(err, engine.ErrNothingStashed):
		return CodeNothingStashed
	case errors.Is(err, window.ErrSurfaceTransferred):
		return CodeSurfaceTransferred
	case errors.As(err, &stateErr):
		return CodeState
	case errors.As(err, &lost):
		return CodeContextLost
	default:
		return CodeInternal
	}
}
