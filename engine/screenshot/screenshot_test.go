package screenshot

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxy-map/common"
)

func solid(w, h uint32, c [4]byte) common.TextureStagingData {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], c[:])
	}
	return common.TextureStagingData{Pixels: pix, Width: w, Height: h}
}

func TestOptionsSizes(t *testing.T) {
	tests := []struct {
		scale          float64
		wantW, wantH   uint32
		renderW, rendH uint32
	}{
		{0, 5632, 2048, 5632, 2048},
		{2, 11264, 4096, 11264, 4096},
		{0.5, 2816, 1024, 5632, 2048},
		{100, 22528, 8192, 22528, 8192},
	}
	for _, tt := range tests {
		o := Options{Kind: KindWorld, Scale: tt.scale}
		w, h := o.OutputSize(5632, 2048)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("OutputSize(scale %v) = %dx%d, want %dx%d", tt.scale, w, h, tt.wantW, tt.wantH)
		}
		w, h = o.RenderSize(5632, 2048)
		if w != tt.renderW || h != tt.rendH {
			t.Errorf("RenderSize(scale %v) = %dx%d, want %dx%d", tt.scale, w, h, tt.renderW, tt.rendH)
		}
	}
}

func TestHasWatermark(t *testing.T) {
	tests := []struct {
		opts Options
		want bool
	}{
		{Options{Kind: KindWorld, Date: "1444.11.11"}, true},
		{Options{Kind: KindWorld, Credit: "oxy-map"}, true},
		{Options{Kind: KindWorld}, false},
		{Options{Kind: KindViewport, Date: "1444.11.11"}, false},
	}
	for _, tt := range tests {
		if got := tt.opts.HasWatermark(); got != tt.want {
			t.Errorf("HasWatermark(%+v) = %v, want %v", tt.opts, got, tt.want)
		}
	}
}

func TestRenderPNG(t *testing.T) {
	src := solid(8, 4, [4]byte{200, 10, 10, 255})
	out, err := Render(src, 8, 4, Options{Kind: KindViewport}, EncodeOptions{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Errorf("png size = %dx%d, want 8x4", b.Dx(), b.Dy())
	}
	r, g, _, _ := img.At(3, 2).RGBA()
	if r>>8 != 200 || g>>8 != 10 {
		t.Errorf("png pixel = (%d, %d), want (200, 10)", r>>8, g>>8)
	}
}

func TestRenderJPEGResampled(t *testing.T) {
	src := solid(16, 8, [4]byte{0, 0, 255, 255})
	out, err := Render(src, 8, 4, Options{Kind: KindWorld, Scale: 0.5}, EncodeOptions{Format: "jpeg", Quality: 80})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("jpeg.DecodeConfig: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 4 {
		t.Errorf("jpeg size = %dx%d, want 8x4", cfg.Width, cfg.Height)
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := Render(common.TextureStagingData{}, 1, 1, Options{}, EncodeOptions{}); !errors.Is(err, ErrNoContext) {
		t.Errorf("Render(empty) error = %v, want %v", err, ErrNoContext)
	}
	src := solid(2, 2, [4]byte{1, 2, 3, 255})
	if _, err := Render(src, 2, 2, Options{}, EncodeOptions{Format: "gif"}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Render(gif) error = %v, want %v", err, ErrUnknownFormat)
	}
}

func TestRenderWatermark(t *testing.T) {
	src := solid(400, 200, [4]byte{255, 255, 255, 255})
	opts := Options{Kind: KindWorld, Date: "1444.11.11", Credit: "oxy-map", FontFamily: FontMono}
	out, err := Render(src, 400, 200, opts, EncodeOptions{Format: "png"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}

	if r, _, _, _ := img.At(2, 2).RGBA(); r>>8 != 255 {
		t.Errorf("top left red = %d, want 255", r>>8)
	}
	if !touched(img, image.Rect(200, 100, 400, 200)) {
		t.Error("bottom right corner unchanged, want a watermark")
	}
}

func touched(img image.Image, rect image.Rectangle) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if r, g, b, _ := img.At(x, y).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
				return true
			}
		}
	}
	return false
}

func TestFontSource(t *testing.T) {
	for _, family := range []FontFamily{FontSans, FontMono, FontBold, "cursive"} {
		src, err := fontSource(family)
		if err != nil {
			t.Fatalf("fontSource(%s): %v", family, err)
		}
		if src == nil {
			t.Errorf("fontSource(%s) = nil, want a font", family)
		}
	}
	a, _ := fontSource("cursive")
	b, _ := fontSource(FontSans)
	if a != b {
		t.Error("unknown family did not fall back to sans")
	}
}

func TestResampleSolid(t *testing.T) {
	out := Resample(solid(10, 10, [4]byte{40, 80, 120, 255}), 3, 3)
	if out.Width != 3 || out.Height != 3 {
		t.Fatalf("Resample size = %dx%d, want 3x3", out.Width, out.Height)
	}
	if got := out.At(1, 1); got != [4]byte{40, 80, 120, 255} {
		t.Errorf("Resample pixel = %v, want [40 80 120 255]", got)
	}
}
