// Package gesture turns per-frame hand landmarks into control signals: a
// continuous palm position, a debounced open/closed mode and a latched pinch.
package gesture

// Mode is the discrete hand pose reported to consumers.
type Mode string

const (
	// ModeUnknown is the mode before any pose has been confirmed.
	ModeUnknown Mode = ""
	// ModeOpen is an open palm (four or more fingers extended).
	ModeOpen Mode = "open"
	// ModeClosed is a fist (at most one finger extended).
	ModeClosed Mode = "closed"
)

// ParseMode converts a string into a Mode. ok is false for anything other
// than "open" or "closed".
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeOpen:
		return ModeOpen, true
	case ModeClosed:
		return ModeClosed, true
	}
	return ModeUnknown, false
}

// Point is a normalized 2D position in the camera frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HandPosition is the continuous pointer signal.
type HandPosition struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Detected bool    `json:"detected"`
}

// LostPosition is reported whenever no hand is tracked.
var LostPosition = HandPosition{X: 0.5, Y: 0.5, Detected: false}
