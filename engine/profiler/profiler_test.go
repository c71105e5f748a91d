package profiler

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-map/engine/scheduler"
)

func TestNewDrawEvent(t *testing.T) {
	ev := NewDrawEvent(scheduler.Frame{Elapsed: 2500 * time.Microsecond, ViewportDrawsQueued: 5, MapDrawsQueued: 1})
	want := DrawEvent{ElapsedMs: 2.5, ViewportDrawsQueued: 5, MapDrawsQueued: 1}
	if ev != want {
		t.Errorf("NewDrawEvent = %+v, want %+v", ev, want)
	}

	failed := NewDrawEvent(scheduler.Frame{MapDrawsQueued: 1, Err: errors.New("gpu context lost: device-lost")})
	if failed.Error != "gpu context lost: device-lost" {
		t.Errorf("Error = %q, want the frame error", failed.Error)
	}
}

func TestRecordLogsPerInterval(t *testing.T) {
	clock := time.Unix(1000, 0)
	p := NewProfiler(WithUpdateInterval(time.Second))
	p.now = func() time.Time { return clock }
	p.lastTime = clock

	for i := 0; i < 3; i++ {
		clock = clock.Add(250 * time.Millisecond)
		if _, logged := p.Record(DrawEvent{ElapsedMs: 2, ViewportDrawsQueued: 1}); logged {
			t.Fatalf("Record %d logged before the interval elapsed", i)
		}
	}
	clock = clock.Add(250 * time.Millisecond)
	s, logged := p.Record(DrawEvent{ElapsedMs: 6, MapDrawsQueued: 2})
	if !logged {
		t.Fatal("Record did not log after the interval elapsed")
	}
	if s.FPS != 4 {
		t.Errorf("FPS = %v, want 4", s.FPS)
	}
	if s.AvgDrawMs != 3 {
		t.Errorf("AvgDrawMs = %v, want 3", s.AvgDrawMs)
	}
	if s.ViewportDraws != 3 || s.MapDraws != 2 {
		t.Errorf("draws = %d viewport, %d map, want 3, 2", s.ViewportDraws, s.MapDraws)
	}
	if s.HeapMB <= 0 {
		t.Errorf("HeapMB = %v, want > 0", s.HeapMB)
	}

	clock = clock.Add(100 * time.Millisecond)
	if _, logged := p.Record(DrawEvent{}); logged {
		t.Error("Record logged right after a reset")
	}
}

func TestWithUpdateIntervalIgnoresTiny(t *testing.T) {
	p := NewProfiler(WithUpdateInterval(time.Microsecond))
	if p.updateInterval != time.Second {
		t.Errorf("updateInterval = %v, want %v", p.updateInterval, time.Second)
	}
}
