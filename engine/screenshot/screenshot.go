// Package screenshot turns captured map pixels into encoded images. World captures may be downscaled and
// carry a date and credit watermark.
package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/Carmen-Shannon/oxy-map/common"
	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
)

var (
	// ErrNoContext is returned when no 2D drawing context can be created for the captured pixels.
	ErrNoContext = errors.New("screenshot: no 2d context")

	// ErrUnknownFormat is returned for an EncodeOptions.Format other than png or jpeg.
	ErrUnknownFormat = errors.New("screenshot: unknown format")
)

// Kind selects what a screenshot captures.
type Kind string

const (
	// KindViewport captures the canvas as currently displayed.
	KindViewport Kind = "viewport"

	// KindWorld renders the whole map off-screen, independent of the camera.
	KindWorld Kind = "world"
)

// FontFamily selects the watermark typeface.
type FontFamily string

const (
	FontSans FontFamily = "sans"
	FontMono FontFamily = "mono"
	FontBold FontFamily = "bold"
)

const (
	// MinScale and MaxScale bound Options.Scale.
	MinScale = 0.05
	MaxScale = 4.0

	// DefaultJPEGQuality is used when EncodeOptions.Quality is unset.
	DefaultJPEGQuality = 92
)

// Options describes a screenshot request.
type Options struct {
	Kind Kind `json:"kind"`
	// Scale multiplies the map texture size for world captures. Zero means 1.
	Scale float64 `json:"scale,omitempty"`
	// Date and Credit are drawn as a watermark on world captures when either is set.
	Date       string     `json:"date,omitempty"`
	Credit     string     `json:"credit,omitempty"`
	FontFamily FontFamily `json:"fontFamily,omitempty"`
}

// EncodeOptions selects the output encoding.
type EncodeOptions struct {
	// Format is "png" or "jpeg". Empty means png.
	Format string `json:"format,omitempty"`
	// Quality is the JPEG quality, 1 to 100.
	Quality int `json:"quality,omitempty"`
}

// NormalizedScale returns Scale with the zero default applied, clamped to [MinScale, MaxScale].
func (o Options) NormalizedScale() float64 {
	if o.Scale == 0 || math.IsNaN(o.Scale) {
		return 1
	}
	return common.Clamp(o.Scale, MinScale, MaxScale)
}

// OutputSize returns the size of a world capture of a map texture of the given size.
func (o Options) OutputSize(width, height uint32) (uint32, uint32) {
	s := o.NormalizedScale()
	return max(uint32(math.Round(float64(width)*s)), 1), max(uint32(math.Round(float64(height)*s)), 1)
}

// RenderSize returns the size the world should be rendered at. Downscaled captures are rendered at full
// size and resampled, which keeps thin borders visible.
func (o Options) RenderSize(width, height uint32) (uint32, uint32) {
	if o.NormalizedScale() < 1 {
		return width, height
	}
	return o.OutputSize(width, height)
}

// HasWatermark reports whether the capture gets a watermark.
func (o Options) HasWatermark() bool {
	return o.Kind == KindWorld && (o.Date != "" || o.Credit != "")
}

// Render composes captured pixels into an encoded image: it resamples to width x height when the sizes
// differ, draws the watermark when requested and encodes the result.
//
// Parameters:
//   - src: the captured RGBA pixels
//   - width, height: the output size
//   - opts: the screenshot options
//   - enc: the output encoding
//
// Returns:
//   - []byte: the encoded image
//   - error: ErrNoContext for empty pixels, ErrUnknownFormat, or an encoder error
func Render(src common.TextureStagingData, width, height uint32, opts Options, enc EncodeOptions) ([]byte, error) {
	if !src.Valid() || width == 0 || height == 0 {
		return nil, ErrNoContext
	}
	if src.Width != width || src.Height != height {
		src = Resample(src, width, height)
	}

	dc := gg.NewContextForImage(src.ToImage())
	if dc == nil {
		return nil, ErrNoContext
	}
	defer dc.Close()

	if opts.HasWatermark() {
		if err := drawWatermark(dc, opts); err != nil {
			return nil, err
		}
	}
	return encode(dc, enc)
}

// Resample scales pixels to width x height with a Catmull-Rom filter.
func Resample(src common.TextureStagingData, width, height uint32) common.TextureStagingData {
	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src.ToImage(), image.Rect(0, 0, int(src.Width), int(src.Height)), xdraw.Src, nil)
	return common.FromImage(dst)
}

func encode(dc *gg.Context, enc EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch enc.Format {
	case "", "png", "image/png":
		if err := dc.EncodePNG(&buf); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case "jpeg", "jpg", "image/jpeg":
		quality := enc.Quality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		if err := dc.EncodeJPEG(&buf, common.Clamp(quality, 1, 100)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, enc.Format)
	}
	return buf.Bytes(), nil
}
