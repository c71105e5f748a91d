package screenshot

import (
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontsMu sync.Mutex
	fonts   = map[FontFamily]*text.FontSource{}
)

// fontSource parses the family's embedded Go font once. Unknown families fall back to sans.
func fontSource(family FontFamily) (*text.FontSource, error) {
	fontsMu.Lock()
	defer fontsMu.Unlock()

	if family != FontMono && family != FontBold {
		family = FontSans
	}
	if src, ok := fonts[family]; ok {
		return src, nil
	}

	data := goregular.TTF
	switch family {
	case FontMono:
		data = gomono.TTF
	case FontBold:
		data = gobold.TTF
	}
	src, err := text.NewFontSource(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s font: %w", family, err)
	}
	fonts[family] = src
	return src, nil
}

// drawWatermark draws the date and credit lines in the bottom right corner on a translucent plate.
func drawWatermark(dc *gg.Context, opts Options) error {
	src, err := fontSource(opts.FontFamily)
	if err != nil {
		return err
	}
	w, h := float64(dc.Width()), float64(dc.Height())
	size := math.Max(12, h*0.02)
	dc.SetFont(src.Face(size))

	lines := make([]string, 0, 2)
	for _, s := range []string{opts.Date, opts.Credit} {
		if s != "" {
			lines = append(lines, s)
		}
	}

	textW, lineH := 0.0, size*1.25
	for _, l := range lines {
		lw, _ := dc.MeasureString(l)
		textW = math.Max(textW, lw)
	}
	pad := size * 0.5
	plateW, plateH := textW+2*pad, lineH*float64(len(lines))+pad
	x, y := w-plateW-pad, h-plateH-pad

	dc.SetRGBA(0, 0, 0, 0.45)
	dc.DrawRoundedRectangle(x, y, plateW, plateH, pad*0.5)
	if err := dc.Fill(); err != nil {
		return fmt.Errorf("failed to draw watermark plate: %w", err)
	}

	dc.SetRGBA(1, 1, 1, 0.9)
	for i, l := range lines {
		dc.DrawStringAnchored(l, x+plateW-pad, y+pad*0.5+lineH*float64(i+1)-size*0.25, 1, 0)
	}
	return nil
}
