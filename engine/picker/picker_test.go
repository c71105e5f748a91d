package picker

import (
	"errors"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-map/common"
)

func testPalette(t *testing.T) *Palette {
	t.Helper()
	p, err := NewPalette(
		[]RGB{{0, 0, 0}, {10, 10, 10}, {20, 20, 20}, {30, 30, 30}},
		[]int32{10, 20, 77, 5},
	)
	if err != nil {
		t.Fatalf("NewPalette: %v", err)
	}
	return p
}

func TestPaletteLookup(t *testing.T) {
	p := testPalette(t)
	tests := []struct {
		color     RGB
		wantIndex int
		wantID    int32
	}{
		{RGB{20, 20, 20}, 2, 77},
		{RGB{0, 0, 0}, 0, 10},
		{RGB{30, 30, 30}, 3, 5},
		{RGB{5, 5, 5}, NotFound, NotFound},
		{RGB{40, 0, 0}, NotFound, NotFound},
		{RGB{20, 20, 21}, NotFound, NotFound},
	}
	for _, tt := range tests {
		index := p.Lookup(tt.color)
		if index != tt.wantIndex {
			t.Errorf("Lookup(%v) = %d, want %d", tt.color, index, tt.wantIndex)
		}
		if got := p.RegionID(index); got != tt.wantID {
			t.Errorf("RegionID(%d) = %d, want %d", index, got, tt.wantID)
		}
	}
}

func TestNewPaletteRejectsUnsorted(t *testing.T) {
	_, err := NewPalette([]RGB{{1, 0, 0}, {0, 9, 9}}, []int32{1, 2})
	if !errors.Is(err, ErrUnsortedPalette) {
		t.Errorf("NewPalette error = %v, want %v", err, ErrUnsortedPalette)
	}
	_, err = NewPalette([]RGB{{1, 0, 0}, {1, 0, 0}}, []int32{1, 2})
	if !errors.Is(err, ErrUnsortedPalette) {
		t.Errorf("NewPalette duplicate error = %v, want %v", err, ErrUnsortedPalette)
	}
	if _, err := NewPalette([]RGB{{1, 0, 0}}, nil); err == nil {
		t.Error("NewPalette length mismatch error = nil, want error")
	}
}

func TestParsePaletteAndIndex(t *testing.T) {
	colors, err := ParsePalette([]byte{0, 0, 0, 10, 10, 10})
	if err != nil {
		t.Fatalf("ParsePalette: %v", err)
	}
	if len(colors) != 2 || colors[1] != (RGB{10, 10, 10}) {
		t.Errorf("ParsePalette = %v, want [[0 0 0] [10 10 10]]", colors)
	}
	if _, err := ParsePalette([]byte{1, 2}); err == nil {
		t.Error("ParsePalette(short) error = nil, want error")
	}

	ids, err := ParseIndex([]byte{10, 0, 0x2c, 0x01})
	if err != nil {
		t.Fatalf("ParseIndex: %v", err)
	}
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 300 {
		t.Errorf("ParseIndex = %v, want [10 300]", ids)
	}
	if _, err := ParseIndex([]byte{1}); err == nil {
		t.Error("ParseIndex(odd) error = nil, want error")
	}
}

func tile(w, h uint32, fill RGB) common.TextureStagingData {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = fill[0], fill[1], fill[2], 255
	}
	return common.TextureStagingData{Pixels: pix, Width: w, Height: h}
}

func TestPick(t *testing.T) {
	west := tile(4, 2, RGB{20, 20, 20})
	east := tile(4, 2, RGB{30, 30, 30})
	// an antialiased edge pixel
	east.Pixels[0], east.Pixels[1], east.Pixels[2] = 5, 5, 5

	p, err := NewPicker(testPalette(t), west, east)
	if err != nil {
		t.Fatalf("NewPicker: %v", err)
	}

	// map space is 16x4, mirror is 8x2
	tests := []struct {
		name   string
		x, y   float64
		wantOK bool
		want   Result
	}{
		{"west", 3, 1, true, Result{RegionID: 77, ColorIndex: 2}},
		{"east", 12, 3, true, Result{RegionID: 5, ColorIndex: 3}},
		{"absent color", 8.5, 0.5, false, Result{}},
		{"NaN", math.NaN(), 1, false, Result{}},
		{"infinite", math.Inf(1), 1, false, Result{}},
		{"negative", -1, 1, false, Result{}},
		{"past right edge", 16, 1, false, Result{}},
		{"past bottom edge", 1, 4, false, Result{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Pick(tt.x, tt.y, 16, 4)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Pick(%v, %v) = %+v, %v, want %+v, %v", tt.x, tt.y, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewPickerRejectsMismatchedTiles(t *testing.T) {
	if _, err := NewPicker(testPalette(t), tile(4, 2, RGB{}), tile(2, 2, RGB{})); err == nil {
		t.Error("NewPicker error = nil, want error")
	}
	if _, err := NewPicker(testPalette(t), common.TextureStagingData{}, tile(2, 2, RGB{})); err == nil {
		t.Error("NewPicker(empty) error = nil, want error")
	}
}

func TestGesture(t *testing.T) {
	tests := []struct {
		name       string
		upX, upY   float64
		wantSelect bool
	}{
		{"small drift", 108, 104, true},
		{"pan", 130, 100, false},
		{"exact threshold", 115, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Gesture
			g.Down(100, 100)
			if got := g.Up(tt.upX, tt.upY); got != tt.wantSelect {
				t.Errorf("Up(%v, %v) = %v, want %v", tt.upX, tt.upY, got, tt.wantSelect)
			}
		})
	}
}

func TestGestureUpWithoutDown(t *testing.T) {
	var g Gesture
	if g.Up(0, 0) {
		t.Error("Up without Down = true, want false")
	}
	g.Down(0, 0)
	g.Up(0, 0)
	if g.Up(0, 0) {
		t.Error("second Up = true, want false")
	}
}

func TestPaletteIndexTile(t *testing.T) {
	p := testPalette(t)
	src := tile(3, 1, RGB{30, 30, 30})
	src.Pixels[4], src.Pixels[5], src.Pixels[6] = 10, 10, 10
	src.Pixels[8], src.Pixels[9], src.Pixels[10] = 1, 2, 3

	got := p.IndexTile(src)
	if got.Width != 3 || got.Height != 1 {
		t.Fatalf("IndexTile size = %dx%d, want 3x1", got.Width, got.Height)
	}
	want := []byte{
		3, 0, 0, 255,
		1, 0, 0, 255,
		0xFF, 0xFF, 0, 0,
	}
	for i := range want {
		if got.Pixels[i] != want[i] {
			t.Errorf("IndexTile pixel byte %d = %d, want %d", i, got.Pixels[i], want[i])
		}
	}
}
