package window

import "github.com/Carmen-Shannon/oxy-map/engine/camera"

// wheelDeltaPerNotch converts one scroll notch to the pixel delta browsers report.
const wheelDeltaPerNotch = 100.0

// pointerTracker turns absolute cursor positions into pointer events with movement deltas.
type pointerTracker struct {
	x, y float64
	seen bool
}

func (p *pointerTracker) event(x, y float64) camera.PointerEvent {
	ev := camera.PointerEvent{ClientX: x, ClientY: y}
	if p.seen {
		ev.MovementX = x - p.x
		ev.MovementY = y - p.y
	}
	p.x, p.y, p.seen = x, y, true
	return ev
}

// wheelEvent converts a vertical scroll offset to a wheel event. Scrolling up zooms in, which browsers
// report as a negative delta.
//
// Parameters:
//   - yoff: the scroll offset in notches
//   - x, y: the cursor position
//   - seconds: the event time in seconds
//
// Returns:
//   - camera.WheelEvent: the wheel event with its timestamp in milliseconds
func wheelEvent(yoff, x, y, seconds float64) camera.WheelEvent {
	return camera.WheelEvent{
		DeltaY:    -yoff * wheelDeltaPerNotch,
		ClientX:   x,
		ClientY:   y,
		TimeStamp: seconds * 1000,
	}
}
