package picker

import "math"

// SelectThreshold is the largest pointer displacement in pixels that still counts as a click.
const SelectThreshold = 15.0

// Gesture tracks a pointer-down to pointer-up sequence and tells a selection apart from the end of a pan.
type Gesture struct {
	downX, downY float64
	down         bool
}

// Down records the pointer-down position.
func (g *Gesture) Down(x, y float64) {
	g.downX, g.downY = x, y
	g.down = true
}

// Up ends the gesture.
//
// Parameters:
//   - x, y: the pointer-up position
//
// Returns:
//   - bool: true if the gesture is a selection, false if it was a pan or no pointer-down was recorded
func (g *Gesture) Up(x, y float64) bool {
	if !g.down {
		return false
	}
	g.down = false
	return IsSelection(g.downX, g.downY, x, y)
}

// IsSelection reports whether the Euclidean displacement between two pointer positions is below SelectThreshold.
func IsSelection(downX, downY, upX, upY float64) bool {
	return math.Hypot(upX-downX, upY-downY) < SelectThreshold
}
