package gesture

import (
	"math"

	"github.com/ayusman/treegesture/internal/detector"
)

// Classified is the per-frame summary of one hand. It carries no state
// between frames.
type Classified struct {
	PalmCenter Point
	PinchRatio float64
	Extended   int
}

// minPalmWidth guards the pinch ratio against a degenerate palm.
const minPalmWidth = 1e-6

var palmPoints = [...]int{
	detector.Wrist,
	detector.IndexMCP,
	detector.MiddleMCP,
	detector.RingMCP,
	detector.PinkyMCP,
}

var fingers = [...]struct{ tip, base int }{
	{detector.IndexTip, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleMCP},
	{detector.RingTip, detector.RingMCP},
	{detector.PinkyTip, detector.PinkyMCP},
}

// Classify computes palm center, pinch ratio and extended finger count.
func Classify(hand *detector.HandLandmarks) Classified {
	return Classified{
		PalmCenter: PalmCenter(hand),
		PinchRatio: PinchRatio(hand),
		Extended:   ExtendedFingers(hand),
	}
}

// PalmCenter is the mean of the wrist and the four finger knuckles.
func PalmCenter(hand *detector.HandLandmarks) Point {
	var sx, sy float64
	for _, i := range palmPoints {
		sx += hand.Points[i].X
		sy += hand.Points[i].Y
	}
	n := float64(len(palmPoints))
	return Point{X: sx / n, Y: sy / n}
}

// PinchRatio is the thumb-to-index tip distance over the palm width
// (index knuckle to pinky knuckle).
func PinchRatio(hand *detector.HandLandmarks) float64 {
	width := math.Max(minPalmWidth, hand.Dist(detector.IndexMCP, detector.PinkyMCP))
	return hand.Dist(detector.ThumbTip, detector.IndexTip) / width
}

// ExtendedFingers counts fingers whose tip is far from the wrist relative to
// the finger base. The thumb uses a looser factor.
func ExtendedFingers(hand *detector.HandLandmarks) int {
	count := 0
	for _, f := range fingers {
		if hand.Dist(f.tip, detector.Wrist) > 1.5*hand.Dist(f.base, detector.Wrist) {
			count++
		}
	}
	if hand.Dist(detector.ThumbTip, detector.Wrist) > 1.2*hand.Dist(detector.ThumbMCP, detector.Wrist) {
		count++
	}
	return count
}
