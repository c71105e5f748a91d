// Package bridge exposes an engine over a WebSocket connection. Every connection owns one engine: the host
// drives its setup stages and command batches with request messages and receives frame telemetry as pushed
// draw messages.
package bridge

import (
	"encoding/json"
	"errors"

	"github.com/Carmen-Shannon/oxy-map/engine"
	"github.com/Carmen-Shannon/oxy-map/engine/camera"
	"github.com/Carmen-Shannon/oxy-map/engine/loader"
	"github.com/Carmen-Shannon/oxy-map/engine/picker"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-map/engine/screenshot"
	"github.com/Carmen-Shannon/oxy-map/engine/window"
)

// ErrBadRequest is returned for a message that cannot be decoded or has an unknown type.
var ErrBadRequest = errors.New("bad request")

// MessageType identifies a request and its response.
type MessageType string

const (
	TypeInit              MessageType = "init"
	TypeWithResources     MessageType = "with-resources"
	TypeWithTerrainImages MessageType = "with-terrain-images"
	TypeWithMap           MessageType = "with-map"
	TypeWithCommands      MessageType = "with-commands"
	TypeScreenshot        MessageType = "screenshot"
	TypeFindProvince      MessageType = "find-province"
	TypeStash             MessageType = "stash"
	TypePopStash          MessageType = "pop-stash"
	TypeOnDraw            MessageType = "on-draw"

	// TypeDraw is pushed by the server once per completed frame after an on-draw request.
	TypeDraw MessageType = "draw"
)

// ErrorCode classifies a failed request so clients can map it back to a sentinel error.
type ErrorCode string

const (
	CodeBadRequest         ErrorCode = "bad-request"
	CodeInvalidToken       ErrorCode = "invalid-token"
	CodeState              ErrorCode = "state"
	CodeClosed             ErrorCode = "closed"
	CodeContextLost        ErrorCode = "context-lost"
	CodeNothingStashed     ErrorCode = "nothing-stashed"
	CodeSurfaceTransferred ErrorCode = "surface-transferred"
	CodeInternal           ErrorCode = "internal"
)

// Message is the envelope of every frame in both directions. Responses echo the request id and carry
// either Data or Error.
type Message struct {
	Type      MessageType     `json:"type"`
	RequestID uint64          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      ErrorCode       `json:"code,omitempty"`
}

// Token is the wire form of a capability token. It is a random string the server maps to the typed token
// of the connection's engine.
type Token string

type InitRequest struct {
	// Width and Height size the surface in device pixels.
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Sources shader.Sources `json:"sources"`
}

type TerrainRequest struct {
	URLs    loader.TerrainURLs    `json:"urls"`
	Options engine.TerrainOptions `json:"options"`
}

type WithMapRequest struct {
	PixelRatio float64 `json:"pixelRatio"`
	Init       Token   `json:"init"`
	Resources  Token   `json:"resources"`
	Terrain    Token   `json:"terrain"`
}

type CommandsRequest struct {
	Token    Token           `json:"token"`
	Commands engine.Commands `json:"commands"`
}

type ScreenshotRequest struct {
	Token   Token                    `json:"token"`
	Options screenshot.Options       `json:"options"`
	Encode  screenshot.EncodeOptions `json:"encode"`
}

type FindProvinceRequest struct {
	Token Token               `json:"token"`
	Event camera.PointerEvent `json:"event"`
}

type StashRequest struct {
	Token   Token               `json:"token"`
	Options engine.StashOptions `json:"options"`
}

// TokenRequest carries only the map token, used by pop-stash and on-draw.
type TokenRequest struct {
	Token Token `json:"token"`
}

type TokenResponse struct {
	Token Token `json:"token"`
}

// ScreenshotResponse holds the encoded image, base64 on the wire.
type ScreenshotResponse struct {
	Image []byte `json:"image"`
}

type FindProvinceResponse struct {
	Result *picker.Result `json:"result"`
}

// RemoteError is a failed request as reported by the server.
type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap maps the code to the matching sentinel so errors.Is works across the connection.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeBadRequest:
		return ErrBadRequest
	case CodeInvalidToken:
		return engine.ErrInvalidToken
	case CodeClosed:
		return engine.ErrClosed
	case CodeNothingStashed:
		return engine.ErrNothingStashed
	case CodeSurfaceTransferred:
		return window.ErrSurfaceTransferred
	default:
		return nil
	}
}
