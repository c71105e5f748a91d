package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
	"github.com/pierrec/lz4"
)

func encodePNG(t *testing.T, colors ...color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, len(colors), 1))
	for x, c := range colors {
		img.SetRGBA(x, 0, c)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func compressLZ4(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("lz4 write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lz4 close: %v", err)
	}
	return buf.Bytes()
}

func serve(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

var (
	gray10 = color.RGBA{10, 10, 10, 255}
	gray20 = color.RGBA{20, 20, 20, 255}
)

func TestBackendTypeOf(t *testing.T) {
	tests := []struct {
		url  string
		want LoaderBackendType
	}{
		{"http://example.com/a.png", BackendTypeHTTP},
		{"HTTPS://example.com/a.png", BackendTypeHTTP},
		{"file:///tmp/a.png", BackendTypeFile},
		{"assets/a.png", BackendTypeFile},
	}
	for _, tt := range tests {
		if got := backendTypeOf(tt.url); got != tt.want {
			t.Errorf("backendTypeOf(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestIsLZ4(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"a.png.lz4", true},
		{"a.PNG.LZ4", true},
		{"http://x/a.lz4?v=2", true},
		{"a.png", false},
		{"http://x/a.png?f=b.lz4x", false},
	}
	for _, tt := range tests {
		if got := isLZ4(tt.url); got != tt.want {
			t.Errorf("isLZ4(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestFetchFileDecompressesLZ4(t *testing.T) {
	dir := t.TempDir()
	want := []byte("palette bytes")
	if err := os.WriteFile(filepath.Join(dir, "palette.bin.lz4"), compressLZ4(t, want), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(WithBaseDir(dir), WithDecodeWorkers(1))
	defer l.Close()

	got, err := l.Fetch(context.Background(), "palette.bin.lz4")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Fetch = %q, want %q", got, want)
	}
}

func TestFetchHTTPStatusError(t *testing.T) {
	srv := serve(t, nil)
	l := NewLoader(WithHTTPClient(srv.Client()), WithDecodeWorkers(1))
	defer l.Close()

	url := srv.URL + "/missing.png"
	_, err := l.Fetch(context.Background(), url)
	if err == nil {
		t.Fatal("Fetch error = nil, want error")
	}
	if !strings.Contains(err.Error(), url) {
		t.Errorf("Fetch error = %q, want it to name %s", err, url)
	}
}

func TestFetchImageDecodeError(t *testing.T) {
	srv := serve(t, map[string][]byte{"/broken.png": []byte("not an image")})
	l := NewLoader(WithDecodeWorkers(2))
	defer l.Close()

	_, err := l.FetchImage(context.Background(), srv.URL+"/broken.png")
	if err == nil || !strings.Contains(err.Error(), "broken.png") {
		t.Errorf("FetchImage error = %v, want a decode error naming broken.png", err)
	}
}

func TestLoadResources(t *testing.T) {
	srv := serve(t, map[string][]byte{
		"/west.png":        encodePNG(t, gray10, gray20),
		"/east.png.lz4":    compressLZ4(t, encodePNG(t, gray20, color.RGBA{1, 2, 3, 255})),
		"/rivers_west.png": encodePNG(t, color.RGBA{0, 0, 255, 255}, color.RGBA{}),
		"/palette.bin":     {10, 10, 10, 20, 20, 20},
		"/index.bin":       {7, 0, 0x2c, 0x01},
	})
	l := NewLoader(WithHTTPClient(srv.Client()), WithConcurrency(2), WithDecodeWorkers(2))
	defer l.Close()

	res, err := l.LoadResources(context.Background(), ResourceURLs{
		Provinces: HemisphereURLs{West: srv.URL + "/west.png", East: srv.URL + "/east.png.lz4"},
		Rivers:    HemisphereURLs{West: srv.URL + "/rivers_west.png"},
		Palette:   srv.URL + "/palette.bin",
		Index:     srv.URL + "/index.bin",
	})
	if err != nil {
		t.Fatalf("LoadResources: %v", err)
	}

	if res.Palette.Len() != 2 {
		t.Errorf("Palette.Len() = %d, want 2", res.Palette.Len())
	}
	west := res.ProvinceIndex[resource.West]
	if west.Width != 2 || west.Height != 1 {
		t.Fatalf("west index size = %dx%d, want 2x1", west.Width, west.Height)
	}
	if got := west.At(1, 0); got != [4]byte{1, 0, 0, 255} {
		t.Errorf("west index texel 1 = %v, want [1 0 0 255]", got)
	}
	if got := res.ProvinceIndex[resource.East].At(1, 0); got[3] != 0 {
		t.Errorf("east unmapped texel alpha = %d, want 0", got[3])
	}
	if !res.Rivers[resource.West].Valid() {
		t.Error("west river tile is empty, want decoded")
	}
	if res.Rivers[resource.East].Valid() {
		t.Error("east river tile is set, want empty")
	}
	if res.Stripes[resource.West].Valid() {
		t.Error("stripe tile is set, want empty")
	}

	p, err := res.Picker()
	if err != nil {
		t.Fatalf("Picker: %v", err)
	}
	if got := p.Palette().RegionID(1); got != 300 {
		t.Errorf("RegionID(1) = %d, want 300", got)
	}
}

func TestLoadResourcesMissingURL(t *testing.T) {
	l := NewLoader(WithDecodeWorkers(1))
	defer l.Close()

	_, err := l.LoadResources(context.Background(), ResourceURLs{
		Provinces: HemisphereURLs{West: "w.png"},
		Palette:   "p.bin",
		Index:     "i.bin",
	})
	if !errors.Is(err, ErrMissingURL) {
		t.Errorf("LoadResources error = %v, want %v", err, ErrMissingURL)
	}
}

func TestLoadTerrainAndCache(t *testing.T) {
	dir := t.TempDir()
	names := []string{"tw.png", "te.png", "nw.png", "ne.png", "height.png", "water.png"}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), encodePNG(t, gray10, gray10, gray10), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	urls := TerrainURLs{
		Terrain: HemisphereURLs{West: "tw.png", East: "te.png"},
		Normal:  HemisphereURLs{West: "nw.png", East: "ne.png"},
		Height:  "height.png",
		Water:   "water.png",
	}

	l := NewLoader(WithBaseDir(dir), WithCache(true), WithDecodeWorkers(3))
	defer l.Close()

	tiles, err := l.LoadTerrain(context.Background(), urls)
	if err != nil {
		t.Fatalf("LoadTerrain: %v", err)
	}
	if len(tiles) != len(resource.TerrainIDs) {
		t.Fatalf("LoadTerrain returned %d tiles, want %d", len(tiles), len(resource.TerrainIDs))
	}
	for _, id := range resource.TerrainIDs {
		if tiles[id].Width != 3 {
			t.Errorf("tile %s width = %d, want 3", id, tiles[id].Width)
		}
	}

	if _, ok := l.Get("water.png"); !ok {
		t.Error("Get(water.png) missed, want cached")
	}
	// cached tiles do not touch the disk again
	for _, name := range names {
		os.Remove(filepath.Join(dir, name))
	}
	if _, err := l.LoadTerrain(context.Background(), urls); err != nil {
		t.Errorf("LoadTerrain from cache: %v", err)
	}

	urls.Water = ""
	if _, err := l.LoadTerrain(context.Background(), urls); !errors.Is(err, ErrMissingURL) {
		t.Errorf("LoadTerrain error = %v, want %v", err, ErrMissingURL)
	}
}
