package app

import (
	"errors"

	"github.com/ayusman/treegesture/internal/gesture"
)

// Status lines.
const (
	StatusOff              = "gestures: off"
	StatusRequestingCamera = "requesting camera permission…"
	StatusLoadingModel     = "loading hand model…"
	StatusReady            = "show your hand to the camera…"
	StatusNoHand           = "no hand detected"
	StatusOpen             = "detected: open (scatter)"
	StatusClosed           = "detected: fist (gather)"
	StatusDetecting        = "detecting…"
	StatusUnavailable      = "gestures unavailable"

	pinchNotice = "pinch → next memory"
)

// statuser is implemented by errors that carry their own status line.
type statuser interface {
	Status() string
}

// StatusFor converts a setup failure into a status line.
func StatusFor(err error) string {
	var s statuser
	if errors.As(err, &s) {
		return s.Status()
	}
	return StatusUnavailable
}

// frameStatus describes what the last frame showed.
func frameStatus(out gesture.Output) string {
	base := StatusDetecting
	switch out.Pose {
	case gesture.ModeOpen:
		base = StatusOpen
	case gesture.ModeClosed:
		base = StatusClosed
	}
	if out.Hint {
		return base + " · " + pinchNotice
	}
	return base
}
