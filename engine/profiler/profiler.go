package profiler

import (
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-map/engine/scheduler"
	"github.com/shirou/gopsutil/v3/process"
)

// DrawEvent is delivered to draw listeners once per completed frame.
type DrawEvent struct {
	ElapsedMs           float64 `json:"elapsedMs"`
	ViewportDrawsQueued int     `json:"viewportDrawsQueued"`
	MapDrawsQueued      int     `json:"mapDrawsQueued"`
	// Error is the message of a failed frame, empty on success.
	Error string `json:"error,omitempty"`
}

// NewDrawEvent converts a completed scheduler frame.
func NewDrawEvent(f scheduler.Frame) DrawEvent {
	ev := DrawEvent{
		ElapsedMs:           float64(f.Elapsed.Microseconds()) / 1000,
		ViewportDrawsQueued: f.ViewportDrawsQueued,
		MapDrawsQueued:      f.MapDrawsQueued,
	}
	if f.Err != nil {
		ev.Error = f.Err.Error()
	}
	return ev
}

// Snapshot is one logged interval.
type Snapshot struct {
	FPS           float64
	AvgDrawMs     float64
	ViewportDraws int
	MapDraws      int
	HeapMB        float64
	AllocRateMB   float64
	SysMB         float64
	RSSMB         float64
	CPUPercent    float64
}

// Profiler tracks frame rate, draw counters, and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	drawTime       time.Duration
	viewportDraws  int
	mapDraws       int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64

	// proc is nil when the process cannot be inspected, RSS and CPU are then reported as 0
	proc *process.Process
	now  func() time.Time
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		now:            time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("[Profiler] process stats unavailable: %v", err)
	} else {
		p.proc = proc
	}
	return p
}

// Record should be called once per completed frame.
// Logs performance statistics when the update interval has elapsed: FPS, average draw time, draw
// counters, heap usage, allocation rate, process RSS and CPU.
//
// Parameters:
//   - ev: the completed frame
//
// Returns:
//   - Snapshot: the logged statistics, zero when nothing was logged
//   - bool: true if stats were logged this call
func (p *Profiler) Record(ev DrawEvent) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	p.drawTime += time.Duration(ev.ElapsedMs * float64(time.Millisecond))
	p.viewportDraws += ev.ViewportDrawsQueued
	p.mapDraws += ev.MapDrawsQueued

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		return Snapshot{}, false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Snapshot{
		FPS:           float64(p.frameCount) / elapsed.Seconds(),
		AvgDrawMs:     float64(p.drawTime.Microseconds()) / 1000 / float64(p.frameCount),
		ViewportDraws: p.viewportDraws,
		MapDraws:      p.mapDraws,
		HeapMB:        float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB:   float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		SysMB:         float64(p.memStats.Sys) / 1024 / 1024,
	}
	if p.proc != nil {
		if mem, err := p.proc.MemoryInfo(); err == nil {
			s.RSSMB = float64(mem.RSS) / 1024 / 1024
		}
		if cpu, err := p.proc.Percent(0); err == nil {
			s.CPUPercent = cpu
		}
	}

	log.Printf("[Profiler] FPS: %.2f | Draw: %.2f ms | Queued: %d viewport, %d map | Heap: %.2f MB | Alloc Rate: %.2f MB/s | Sys: %.2f MB | RSS: %.2f MB | CPU: %.1f%%",
		s.FPS, s.AvgDrawMs, s.ViewportDraws, s.MapDraws, s.HeapMB, s.AllocRateMB, s.SysMB, s.RSSMB, s.CPUPercent)

	p.frameCount = 0
	p.drawTime = 0
	p.viewportDraws = 0
	p.mapDraws = 0
	p.lastTime = currentTime
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return s, true
}
