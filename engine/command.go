package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Carmen-Shannon/oxy-map/engine/camera"
)

// CommandType is the JSON discriminator of a Command.
type CommandType string

const (
	CommandProvinceColors        CommandType = "province-colors"
	CommandCountryProvinceColors CommandType = "country-province-colors"
	CommandDrawMap               CommandType = "draw-map"
	CommandDrawViewport          CommandType = "draw-viewport"
	CommandResize                CommandType = "resize"
	CommandWheel                 CommandType = "wheel"
	CommandMoveCamera            CommandType = "move-camera"
	CommandMoveCameraTo          CommandType = "move-camera-to"
	CommandZoomIn                CommandType = "zoom-in"
	CommandZoomOut               CommandType = "zoom-out"
	CommandUpdate                CommandType = "update"
	CommandSelect                CommandType = "select"
	CommandHover                 CommandType = "hover"
	CommandClearSelection        CommandType = "clear-selection"
	CommandClearHover            CommandType = "clear-hover"
)

// Command is one entry of a WithCommands batch.
type Command interface {
	// Type returns the discriminator written to the "type" field.
	Type() CommandType
}

// ProvinceColors replaces the primary and secondary RGBA color of every region.
type ProvinceColors struct {
	Primary   []byte `json:"primary"`
	Secondary []byte `json:"secondary"`
}

// CountryProvinceColors replaces the country overlay RGBA color of every region.
type CountryProvinceColors struct {
	Colors []byte `json:"colors"`
}

// DrawMap re-bakes the map and redraws the viewport. The batch continues once the frame is committed.
type DrawMap struct{}

// DrawViewport redraws the viewport from the baked map.
type DrawViewport struct{}

// Resize sets the canvas size in CSS pixels.
type Resize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Wheel zooms around the cursor. Rect, when set, offsets the cursor by the canvas position.
type Wheel struct {
	Event camera.WheelEvent `json:"event"`
	Rect  *camera.Rect      `json:"rect,omitempty"`
}

// MoveCamera pans by the movement of a pointer event.
type MoveCamera struct {
	Event camera.PointerEvent `json:"event"`
}

// MoveCameraTo centers the viewport on a world position.
type MoveCameraTo struct {
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	OffsetX *float64 `json:"offsetX,omitempty"`
}

type ZoomIn struct{}

type ZoomOut struct{}

// Update toggles render flags. Unset fields keep their value. The first RenderTerrain=true loads the
// terrain images if WithTerrainImages was not eager.
type Update struct {
	ShowProvinceBorders *bool `json:"showProvinceBorders,omitempty"`
	ShowCountryBorders  *bool `json:"showCountryBorders,omitempty"`
	ShowMapModeBorders  *bool `json:"showMapModeBorders,omitempty"`
	RenderTerrain       *bool `json:"renderTerrain,omitempty"`
}

// Select highlights a region by palette index.
type Select struct {
	Index int `json:"index"`
}

// Hover highlights the region under the pointer by palette index.
type Hover struct {
	Index int `json:"index"`
}

type ClearSelection struct{}

type ClearHover struct{}

func (ProvinceColors) Type() CommandType        { return CommandProvinceColors }
func (CountryProvinceColors) Type() CommandType { return CommandCountryProvinceColors }
func (DrawMap) Type() CommandType               { return CommandDrawMap }
func (DrawViewport) Type() CommandType          { return CommandDrawViewport }
func (Resize) Type() CommandType                { return CommandResize }
func (Wheel) Type() CommandType                 { return CommandWheel }
func (MoveCamera) Type() CommandType            { return CommandMoveCamera }
func (MoveCameraTo) Type() CommandType          { return CommandMoveCameraTo }
func (ZoomIn) Type() CommandType                { return CommandZoomIn }
func (ZoomOut) Type() CommandType               { return CommandZoomOut }
func (Update) Type() CommandType                { return CommandUpdate }
func (Select) Type() CommandType                { return CommandSelect }
func (Hover) Type() CommandType                 { return CommandHover }
func (ClearSelection) Type() CommandType        { return CommandClearSelection }
func (ClearHover) Type() CommandType            { return CommandClearHover }

// newCommand returns an empty command of the given type.
func newCommand(t CommandType) (Command, error) {
	switch t {
	case CommandProvinceColors:
		return &ProvinceColors{}, nil
	case CommandCountryProvinceColors:
		return &CountryProvinceColors{}, nil
	case CommandDrawMap:
		return &DrawMap{}, nil
	case CommandDrawViewport:
		return &DrawViewport{}, nil
	case CommandResize:
		return &Resize{}, nil
	case CommandWheel:
		return &Wheel{}, nil
	case CommandMoveCamera:
		return &MoveCamera{}, nil
	case CommandMoveCameraTo:
		return &MoveCameraTo{}, nil
	case CommandZoomIn:
		return &ZoomIn{}, nil
	case CommandZoomOut:
		return &ZoomOut{}, nil
	case CommandUpdate:
		return &Update{}, nil
	case CommandSelect:
		return &Select{}, nil
	case CommandHover:
		return &Hover{}, nil
	case CommandClearSelection:
		return &ClearSelection{}, nil
	case CommandClearHover:
		return &ClearHover{}, nil
	default:
		return nil, fmt.Errorf("unknown command type %q", t)
	}
}

// MarshalCommand encodes a command as a JSON object with its "type" field first.
func MarshalCommand(c Command) ([]byte, error) {
	body, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	typ, err := json.Marshal(c.Type())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// UnmarshalCommand decodes a command by its "type" field. The result holds a pointer to the concrete type.
func UnmarshalCommand(data []byte) (Command, error) {
	var head struct {
		Type CommandType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	c, err := newCommand(head.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("command %s: %w", head.Type, err)
	}
	return c, nil
}

// Commands is a batch that encodes as a JSON array of tagged commands.
type Commands []Command

func (cs Commands) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, len(cs))
	for i, c := range cs {
		b, err := MarshalCommand(c)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		raw[i] = b
	}
	return json.Marshal(raw)
}

func (cs *Commands) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Commands, len(raw))
	for i, r := range raw {
		c, err := UnmarshalCommand(r)
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		out[i] = c
	}
	*cs = out
	return nil
}
