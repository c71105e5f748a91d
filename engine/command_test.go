package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-map/engine/camera"
)

func TestMarshalCommand(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{DrawMap{}, `{"type":"draw-map"}`},
		{ZoomOut{}, `{"type":"zoom-out"}`},
		{Select{Index: 4}, `{"type":"select","index":4}`},
		{Resize{Width: 640, Height: 480}, `{"type":"resize","width":640,"height":480}`},
		{Update{RenderTerrain: ptr(true)}, `{"type":"update","renderTerrain":true}`},
		{&MoveCameraTo{X: 1, Y: 2}, `{"type":"move-camera-to","x":1,"y":2}`},
	}
	for _, tt := range tests {
		got, err := MarshalCommand(tt.cmd)
		if err != nil {
			t.Fatalf("MarshalCommand(%T): %v", tt.cmd, err)
		}
		if string(got) != tt.want {
			t.Errorf("MarshalCommand(%T) = %s, want %s", tt.cmd, got, tt.want)
		}
	}
}

func TestUnmarshalCommand(t *testing.T) {
	tests := []struct {
		data string
		want Command
	}{
		{`{"type":"draw-viewport"}`, &DrawViewport{}},
		{`{"type":"hover","index":12}`, &Hover{Index: 12}},
		{`{"type":"move-camera-to","x":10,"y":20,"offsetX":-5}`, &MoveCameraTo{X: 10, Y: 20, OffsetX: ptr(-5.0)}},
		{`{"type":"update","showCountryBorders":false}`, &Update{ShowCountryBorders: ptr(false)}},
		{
			`{"type":"wheel","event":{"deltaY":-3,"clientX":5,"clientY":6,"timeStamp":100},"rect":{"left":1,"top":2,"width":3,"height":4}}`,
			&Wheel{Event: camera.WheelEvent{DeltaY: -3, ClientX: 5, ClientY: 6, TimeStamp: 100}, Rect: &camera.Rect{Left: 1, Top: 2, Width: 3, Height: 4}},
		},
		{`{"type":"province-colors","primary":"AQID","secondary":"BAUG"}`, &ProvinceColors{Primary: []byte{1, 2, 3}, Secondary: []byte{4, 5, 6}}},
	}
	for _, tt := range tests {
		got, err := UnmarshalCommand([]byte(tt.data))
		if err != nil {
			t.Fatalf("UnmarshalCommand(%s): %v", tt.data, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("UnmarshalCommand(%s) = %#v, want %#v", tt.data, got, tt.want)
		}
	}
}

func TestUnmarshalCommandErrors(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"type":"teleport"}`, "unknown command type"},
		{`{"index":1}`, "unknown command type"},
		{`{"type":"select","index":"one"}`, "command select"},
		{`[]`, "cannot unmarshal"},
	}
	for _, tt := range tests {
		_, err := UnmarshalCommand([]byte(tt.data))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("UnmarshalCommand(%s) = %v, want error containing %q", tt.data, err, tt.want)
		}
	}
}

func TestCommandsJSON(t *testing.T) {
	batch := Commands{
		ProvinceColors{Primary: []byte{255, 0, 0, 255}, Secondary: []byte{0, 0, 255, 255}},
		MoveCamera{Event: camera.PointerEvent{MovementX: 3, MovementY: -4}},
		ClearHover{},
		DrawMap{},
	}
	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Commands
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(decoded) != len(batch) {
		t.Fatalf("decoded %d commands, want %d", len(decoded), len(batch))
	}
	for i, c := range decoded {
		if c.Type() != batch[i].Type() {
			t.Errorf("command %d type = %s, want %s", i, c.Type(), batch[i].Type())
		}
	}
	if mc, ok := decoded[1].(*MoveCamera); !ok || mc.Event.MovementY != -4 {
		t.Errorf("command 1 = %#v, want MoveCamera with MovementY -4", decoded[1])
	}

	err = json.Unmarshal([]byte(`[{"type":"zoom-in"},{"type":"nope"}]`), &decoded)
	if err == nil || !strings.Contains(err.Error(), "command 1") {
		t.Errorf("Unmarshal with a bad entry = %v, want error naming command 1", err)
	}
}
