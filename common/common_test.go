package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "a", "b"); got != "a" {
		t.Errorf("Coalesce = %q, want %q", got, "a")
	}
	if got := Coalesce(0, 0); got != 0 {
		t.Errorf("Coalesce = %d, want 0", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{3, 4, 2, 4},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestWrapFloat(t *testing.T) {
	tests := []struct {
		v, m, want float64
	}{
		{0, 5632, 0},
		{5632, 5632, 0},
		{5633, 5632, 1},
		{-1, 5632, 5631},
		{-5632 * 3, 5632, 0},
	}
	for _, tt := range tests {
		got := WrapFloat(tt.v, tt.m)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("WrapFloat(%v, %v) = %v, want %v", tt.v, tt.m, got, tt.want)
		}
		if got < 0 || got >= tt.m {
			t.Errorf("WrapFloat(%v, %v) = %v, out of [0, m)", tt.v, tt.m, got)
		}
	}
}

func TestAlignUp(t *testing.T) {
	if got := AlignUp(1, 256); got != 256 {
		t.Errorf("AlignUp(1, 256) = %d, want 256", got)
	}
	if got := AlignUp(512, 256); got != 512 {
		t.Errorf("AlignUp(512, 256) = %d, want 512", got)
	}
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}

	tex, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if tex.Width != 3 || tex.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", tex.Width, tex.Height)
	}
	if !tex.Valid() {
		t.Errorf("Valid() = false, want true")
	}
	if got := tex.At(2, 1); got != [4]byte{10, 20, 30, 255} {
		t.Errorf("At(2, 1) = %v, want [10 20 30 255]", got)
	}
}

func TestDecodeImageEmpty(t *testing.T) {
	if _, err := DecodeImage(nil); err == nil {
		t.Error("DecodeImage(nil) error = nil, want error")
	}
}
