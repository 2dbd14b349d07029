package wizard

import "math"

// DefaultSwipeThreshold is the horizontal distance in px a drag must exceed to count as navigation
const DefaultSwipeThreshold = 50.0

// Gesture is a completed touch drag in screen coordinates
type Gesture struct {
	StartX, StartY float64
	EndX, EndY     float64
}

// SwipeDirection is the navigation intent of a gesture
type SwipeDirection int

const (
	SwipeNone SwipeDirection = iota
	SwipeNext
	SwipePrevious
)

func (d SwipeDirection) String() string {
	switch d {
	case SwipeNext:
		return "next"
	case SwipePrevious:
		return "previous"
	default:
		return "none"
	}
}

// ClassifySwipe maps a gesture to a direction. Dragging left moves forward.
// Short and vertical-dominant drags are ignored.
func ClassifySwipe(g Gesture, threshold float64) SwipeDirection {
	if threshold <= 0 {
		threshold = DefaultSwipeThreshold
	}
	dx := g.StartX - g.EndX
	dy := g.StartY - g.EndY
	if math.Abs(dx) <= threshold || math.Abs(dx) <= math.Abs(dy) {
		return SwipeNone
	}
	if dx > 0 {
		return SwipeNext
	}
	return SwipePrevious
}
