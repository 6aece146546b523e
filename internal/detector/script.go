package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// Step is a scripted run of identical detections.
type Step struct {
	Hands  []HandLandmarks
	Frames int
}

// Hold scripts frames detections of hand.
func Hold(hand HandLandmarks, frames int) Step {
	return Step{Hands: []HandLandmarks{hand}, Frames: frames}
}

// Lost scripts frames detections without a hand.
func Lost(frames int) Step {
	return Step{Frames: frames}
}

// ScriptedDetector plays back a sequence of steps, one detection per frame.
// Once the script is exhausted it reports no hand and Done is closed.
type ScriptedDetector struct {
	mu     sync.Mutex
	steps  []Step
	step   int
	frame  int
	calls  int
	closes int
	done   chan struct{}
}

// NewScriptedDetector creates a detector playing steps in order.
func NewScriptedDetector(steps ...Step) *ScriptedDetector {
	d := &ScriptedDetector{steps: steps, done: make(chan struct{})}
	d.skipEmpty()
	return d
}

// skipEmpty moves past zero-length steps and closes done at the end.
// Callers hold mu, except the constructor.
func (d *ScriptedDetector) skipEmpty() {
	for d.step < len(d.steps) && d.frame >= d.steps[d.step].Frames {
		d.step++
		d.frame = 0
	}
	if d.step >= len(d.steps) {
		select {
		case <-d.done:
		default:
			close(d.done)
		}
	}
}

// Detect returns the current scripted hands and advances one frame.
func (d *ScriptedDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.step >= len(d.steps) {
		return nil, nil
	}
	hands := d.steps[d.step].Hands
	d.frame++
	d.skipEmpty()
	return hands, nil
}

// Done is closed after the last scripted frame was returned.
func (d *ScriptedDetector) Done() <-chan struct{} {
	return d.done
}

// Close records the call.
func (d *ScriptedDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// Calls returns how many times Detect was invoked.
func (d *ScriptedDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Closes returns how many times Close was invoked.
func (d *ScriptedDetector) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}
