package gesture

import "time"

// Thresholds for the two debounce mechanisms.
const (
	// ModeConfidence is the streak a pose must exceed before it is reported.
	ModeConfidence = 5
	// PinchConfidence is the streak a pinch or release must exceed to flip the latch.
	PinchConfidence = 4

	// PinchRatioOn is the ratio below which a frame counts as pinched.
	PinchRatioOn = 0.32
	// PinchRatioOff is the ratio above which a frame counts as released.
	PinchRatioOff = 0.42

	// OpenFingers is the minimum extended count for an open palm.
	OpenFingers = 4
	// ClosedFingers is the maximum extended count for a fist.
	ClosedFingers = 1

	// PinchHint is how long the pinch notice stays in the status line.
	PinchHint = 900 * time.Millisecond
)

// Counters holds the per-gesture frame streaks. All fields are non-negative.
type Counters struct {
	Open    int
	Closed  int
	Pinch   int
	Release int
}

// PinchLatch makes the pinch fire once per gesture.
type PinchLatch struct {
	Latched   bool
	HintUntil time.Time
}

// TrackState is the mode dimension of the machine.
type TrackState int

const (
	Idle TrackState = iota
	TrackingOpen
	TrackingClosed
)

func (s TrackState) String() string {
	switch s {
	case TrackingOpen:
		return "tracking-open"
	case TrackingClosed:
		return "tracking-closed"
	default:
		return "idle"
	}
}

// State is the pair of independent machine dimensions.
type State struct {
	Track   TrackState
	Latched bool
}

// Output is what one frame produced. Mode is only meaningful when
// ModeChanged is set.
type Output struct {
	Position HandPosition
	// Pose is the pose seen on this frame before debouncing, ModeUnknown for
	// the ambiguous band.
	Pose        Mode
	Mode        Mode
	ModeChanged bool
	Pinched     bool
	// Hint is true while the pinch notice should be shown.
	Hint bool
}

// Machine debounces classified frames into mode changes and pinch events.
// It is not safe for concurrent use; the frame loop owns it.
type Machine struct {
	counters Counters
	latch    PinchLatch
}

// NewMachine returns a Machine in the idle, released state.
func NewMachine() *Machine {
	return &Machine{}
}

// Step advances the machine by one frame with a hand in view. last is the
// mode most recently reported to consumers, including changes they made
// themselves; a confirmed pose equal to last is not reported again.
func (m *Machine) Step(c Classified, last Mode, now time.Time) Output {
	out := Output{
		Position: HandPosition{X: c.PalmCenter.X, Y: c.PalmCenter.Y, Detected: true},
	}

	m.stepPinch(c.PinchRatio, now, &out)
	m.stepMode(c.Extended, last, &out)

	out.Hint = now.Before(m.latch.HintUntil)
	return out
}

func (m *Machine) stepPinch(ratio float64, now time.Time, out *Output) {
	switch {
	case ratio < PinchRatioOn:
		m.counters.Pinch++
		m.counters.Release = 0
	case ratio > PinchRatioOff:
		m.counters.Release++
		m.counters.Pinch = 0
	default:
		m.counters.Pinch = decay(m.counters.Pinch)
		m.counters.Release = decay(m.counters.Release)
	}

	if !m.latch.Latched && m.counters.Pinch > PinchConfidence {
		m.latch.Latched = true
		m.latch.HintUntil = now.Add(PinchHint)
		out.Pinched = true
	} else if m.latch.Latched && m.counters.Release > PinchConfidence {
		m.latch.Latched = false
	}
}

func (m *Machine) stepMode(extended int, last Mode, out *Output) {
	switch {
	case extended >= OpenFingers:
		m.counters.Open++
		m.counters.Closed = 0
		out.Pose = ModeOpen
		if m.counters.Open > ModeConfidence && last != ModeOpen {
			out.Mode = ModeOpen
			out.ModeChanged = true
		}
	case extended <= ClosedFingers:
		m.counters.Closed++
		m.counters.Open = 0
		out.Pose = ModeClosed
		if m.counters.Closed > ModeConfidence && last != ModeClosed {
			out.Mode = ModeClosed
			out.ModeChanged = true
		}
	default:
		m.counters.Open = 0
		m.counters.Closed = 0
	}
}

func decay(n int) int {
	if n > 0 {
		return n - 1
	}
	return 0
}

// HandLost resets every counter and the latch. The caller reports
// LostPosition.
func (m *Machine) HandLost() {
	m.Reset()
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.counters = Counters{}
	m.latch = PinchLatch{}
}

// Counters returns a copy of the current counters.
func (m *Machine) Counters() Counters {
	return m.counters
}

// Latch returns a copy of the pinch latch.
func (m *Machine) Latch() PinchLatch {
	return m.latch
}

// State reports the current machine state.
func (m *Machine) State() State {
	s := State{Latched: m.latch.Latched}
	switch {
	case m.counters.Open > 0:
		s.Track = TrackingOpen
	case m.counters.Closed > 0:
		s.Track = TrackingClosed
	}
	return s
}
