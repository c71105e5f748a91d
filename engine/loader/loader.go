package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-map/common"
	"github.com/Carmen-Shannon/oxy-map/engine/picker"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
	"github.com/pierrec/lz4"
	"golang.org/x/sync/errgroup"
)

// ErrMissingURL is returned when a required asset has no URL.
var ErrMissingURL = errors.New("missing asset url")

// HemisphereURLs locates the west and east tile of a layer.
type HemisphereURLs struct {
	West string `json:"west"`
	East string `json:"east"`
}

func (h HemisphereURLs) empty() bool {
	return h.West == "" && h.East == ""
}

// ResourceURLs locates the assets the map needs before its first frame.
type ResourceURLs struct {
	// Provinces are the region color tiles. Every pixel holds a palette color.
	Provinces HemisphereURLs `json:"provinces"`
	// Rivers and Stripes are optional overlays.
	Rivers  HemisphereURLs `json:"rivers"`
	Stripes HemisphereURLs `json:"stripes"`
	// Palette is the sorted RGB triple file, Index the matching uint16 region id file.
	Palette string `json:"palette"`
	Index   string `json:"index"`
}

// TerrainURLs locates the terrain layer, loaded after the map resources.
type TerrainURLs struct {
	Terrain HemisphereURLs `json:"terrain"`
	Normal  HemisphereURLs `json:"normal"`
	Height  string         `json:"height"`
	Water   string         `json:"water"`
}

// Validate returns ErrMissingURL, naming the slot, when any terrain layer has no URL.
func (t TerrainURLs) Validate() error {
	sources := t.byID()
	for _, id := range resource.TerrainIDs {
		if sources[id] == "" {
			return fmt.Errorf("terrain %s: %w", id, ErrMissingURL)
		}
	}
	return nil
}

func (t TerrainURLs) byID() map[resource.ID]string {
	return map[resource.ID]string{
		resource.TerrainWest: t.Terrain.West,
		resource.TerrainEast: t.Terrain.East,
		resource.NormalWest:  t.Normal.West,
		resource.NormalEast:  t.Normal.East,
		resource.Height:      t.Height,
		resource.Water:       t.Water,
	}
}

// MapResources is the decoded form of ResourceURLs.
type MapResources struct {
	// Provinces keeps the source color tiles, used as the CPU mirror for picking.
	Provinces resource.Hemispheres
	// ProvinceIndex holds the same tiles re-encoded as palette indices for the bake pass.
	ProvinceIndex resource.Hemispheres
	Rivers        resource.Hemispheres
	Stripes       resource.Hemispheres
	Palette       *picker.Palette
}

// Picker builds a region picker over the province tiles.
func (m *MapResources) Picker() (*picker.Picker, error) {
	return picker.NewPicker(m.Palette, m.Provinces[resource.West], m.Provinces[resource.East])
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	backends    map[LoaderBackendType]loaderBackend
	root        string
	concurrency int

	decodePool    worker.DynamicWorkerPool
	decodeWorkers int

	cacheEnabled bool
	imageCache   map[string]common.TextureStagingData
}

// Loader fetches and decodes map assets. Fetches run concurrently, image decoding runs on a worker pool,
// and any URL ending in .lz4 is decompressed before it is decoded or parsed.
type Loader interface {
	// Fetch reads the raw bytes of an asset, decompressing .lz4 URLs.
	//
	// Parameters:
	//   - ctx: cancels the fetch
	//   - url: a file path, file:// URL or http(s):// URL
	//
	// Returns:
	//   - []byte: the asset bytes
	//   - error: the fetch or decompression error, wrapped with the URL
	Fetch(ctx context.Context, url string) ([]byte, error)

	// FetchImage fetches and decodes a PNG or JPEG image into RGBA pixels.
	//
	// Parameters:
	//   - ctx: cancels the fetch
	//   - url: the image location
	//
	// Returns:
	//   - common.TextureStagingData: the decoded pixels
	//   - error: the fetch or decode error, wrapped with the URL
	FetchImage(ctx context.Context, url string) (common.TextureStagingData, error)

	// LoadResources fetches every map asset, decodes the tiles and builds the palette. Province tiles are
	// converted into index tiles for the bake pass.
	//
	// Parameters:
	//   - ctx: cancels outstanding fetches
	//   - urls: the asset locations
	//
	// Returns:
	//   - *MapResources: the decoded assets
	//   - error: the first failure, or ErrMissingURL when a required URL is empty
	LoadResources(ctx context.Context, urls ResourceURLs) (*MapResources, error)

	// LoadTerrain fetches and decodes the terrain layer.
	//
	// Parameters:
	//   - ctx: cancels outstanding fetches
	//   - urls: the terrain asset locations
	//
	// Returns:
	//   - map[resource.ID]common.TextureStagingData: one tile per slot in resource.TerrainIDs
	//   - error: the first failure, or ErrMissingURL when a URL is empty
	LoadTerrain(ctx context.Context, urls TerrainURLs) (map[resource.ID]common.TextureStagingData, error)

	// Get returns a decoded image from the cache. The cache is only filled when enabled with WithCache.
	//
	// Parameters:
	//   - url: the image location
	//
	// Returns:
	//   - common.TextureStagingData: the cached pixels
	//   - bool: true if the image was cached
	Get(url string) (common.TextureStagingData, bool)

	// Close stops the decode workers and drops the cache.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the file and http backends and the specified options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:            sync.RWMutex{},
		backends:      make(map[LoaderBackendType]loaderBackend),
		concurrency:   4,
		decodeWorkers: max(runtime.NumCPU()-1, 1),
		imageCache:    make(map[string]common.TextureStagingData),
	}
	for _, option := range options {
		option(l)
	}

	if _, ok := l.backends[BackendTypeFile]; !ok {
		l.backends[BackendTypeFile] = newFileLoaderBackend(l.root)
	}
	if _, ok := l.backends[BackendTypeHTTP]; !ok {
		l.backends[BackendTypeHTTP] = newHTTPLoaderBackend(nil)
	}
	l.decodePool = worker.NewDynamicWorkerPool(l.decodeWorkers, 256, 1*time.Second)
	return l
}

func (l *loader) Fetch(ctx context.Context, url string) ([]byte, error) {
	backend := l.resolveBackend(url)
	data, err := backend.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if isLZ4(url) {
		data, err = decompressLZ4(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", url, err)
		}
	}
	return data, nil
}

func (l *loader) FetchImage(ctx context.Context, url string) (common.TextureStagingData, error) {
	var img common.TextureStagingData
	if err := l.loadImages(ctx, []imageJob{{url: url, dst: &img}}); err != nil {
		return common.TextureStagingData{}, err
	}
	return img, nil
}

func (l *loader) LoadResources(ctx context.Context, urls ResourceURLs) (*MapResources, error) {
	if urls.Provinces.West == "" || urls.Provinces.East == "" {
		return nil, fmt.Errorf("provinces: %w", ErrMissingURL)
	}
	if urls.Palette == "" || urls.Index == "" {
		return nil, fmt.Errorf("palette: %w", ErrMissingURL)
	}
	start := time.Now()

	res := &MapResources{}
	jobs := []imageJob{
		{url: urls.Provinces.West, dst: &res.Provinces[resource.West]},
		{url: urls.Provinces.East, dst: &res.Provinces[resource.East]},
	}
	jobs = appendOptional(jobs, urls.Rivers, &res.Rivers)
	jobs = appendOptional(jobs, urls.Stripes, &res.Stripes)

	// the palette files are small, fetch them alongside the tiles
	var paletteData, indexData []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		paletteData, err = l.Fetch(gctx, urls.Palette)
		return err
	})
	g.Go(func() error {
		var err error
		indexData, err = l.Fetch(gctx, urls.Index)
		return err
	})
	g.Go(func() error {
		return l.loadImages(gctx, jobs)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	colors, err := picker.ParsePalette(paletteData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse palette %s: %w", urls.Palette, err)
	}
	ids, err := picker.ParseIndex(indexData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index %s: %w", urls.Index, err)
	}
	res.Palette, err = picker.NewPalette(colors, ids)
	if err != nil {
		return nil, err
	}

	if err := l.parallel(2, func(i int) error {
		res.ProvinceIndex[i] = res.Palette.IndexTile(res.Provinces[i])
		return nil
	}); err != nil {
		return nil, err
	}

	log.Printf("[Loader] loaded %d map tiles and %d regions in %s", len(jobs), res.Palette.Len(), time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (l *loader) LoadTerrain(ctx context.Context, urls TerrainURLs) (map[resource.ID]common.TextureStagingData, error) {
	if err := urls.Validate(); err != nil {
		return nil, err
	}
	sources := urls.byID()
	tiles := make([]common.TextureStagingData, len(resource.TerrainIDs))
	jobs := make([]imageJob, 0, len(resource.TerrainIDs))
	for i, id := range resource.TerrainIDs {
		jobs = append(jobs, imageJob{url: sources[id], dst: &tiles[i]})
	}

	start := time.Now()
	if err := l.loadImages(ctx, jobs); err != nil {
		return nil, err
	}

	out := make(map[resource.ID]common.TextureStagingData, len(tiles))
	for i, id := range resource.TerrainIDs {
		out[id] = tiles[i]
	}
	log.Printf("[Loader] loaded %d terrain tiles in %s", len(tiles), time.Since(start).Round(time.Millisecond))
	return out, nil
}

func (l *loader) Get(url string) (common.TextureStagingData, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, ok := l.imageCache[url]
	return img, ok
}

func (l *loader) Close() {
	l.decodePool.Stop()

	l.mu.Lock()
	l.imageCache = make(map[string]common.TextureStagingData)
	l.mu.Unlock()
}

// imageJob is one image to fetch and decode into dst.
type imageJob struct {
	url  string
	dst  *common.TextureStagingData
	data []byte
}

func appendOptional(jobs []imageJob, urls HemisphereURLs, dst *resource.Hemispheres) []imageJob {
	if urls.empty() {
		return jobs
	}
	if urls.West != "" {
		jobs = append(jobs, imageJob{url: urls.West, dst: &dst[resource.West]})
	}
	if urls.East != "" {
		jobs = append(jobs, imageJob{url: urls.East, dst: &dst[resource.East]})
	}
	return jobs
}

// loadImages runs in two phases: every uncached job is fetched concurrently with at most l.concurrency
// requests in flight, then the fetched bytes are decoded on the worker pool.
func (l *loader) loadImages(ctx context.Context, jobs []imageJob) error {
	pending := make([]*imageJob, 0, len(jobs))
	for i := range jobs {
		if img, ok := l.Get(jobs[i].url); ok {
			*jobs[i].dst = img
			continue
		}
		pending = append(pending, &jobs[i])
	}
	if len(pending) == 0 {
		return nil
	}

	// Phase 1: fetch
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, job := range pending {
		g.Go(func() error {
			data, err := l.Fetch(gctx, job.url)
			if err != nil {
				return err
			}
			job.data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Phase 2: decode
	err := l.parallel(len(pending), func(i int) error {
		job := pending[i]
		img, err := common.DecodeImage(job.data)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", job.url, err)
		}
		*job.dst = img
		job.data = nil
		return nil
	})
	if err != nil {
		return err
	}

	if l.cacheEnabled {
		l.mu.Lock()
		for _, job := range pending {
			l.imageCache[job.url] = *job.dst
		}
		l.mu.Unlock()
	}
	return nil
}

// parallel runs fn(0..n-1) on the decode pool and waits for all of them. A panic in fn is returned as an
// error instead of taking down the worker.
func (l *loader) parallel(n int, fn func(i int) error) error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		l.decodePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.Printf("[Loader] recovered from panic in decode task %d: %v", i, r)
						errs[i] = fmt.Errorf("decode task %d panicked: %v", i, r)
					}
				}()
				errs[i] = fn(i)
				return nil, errs[i]
			},
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// resolveBackend selects the backend registered for the URL scheme.
func (l *loader) resolveBackend(url string) loaderBackend {
	return l.backends[backendTypeOf(url)]
}

// isLZ4 reports whether the URL path, ignoring any query or fragment, ends in .lz4.
func isLZ4(url string) bool {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return strings.HasSuffix(strings.ToLower(url), ".lz4")
}

func decompressLZ4(data []byte) ([]byte, error) {
	reader := lz4.NewReader(bytes.NewReader(data))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
