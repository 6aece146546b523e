package detector

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/treegesture/internal/chain"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Delegate selects the execution backend of the inference engine.
type Delegate string

const (
	// DelegateGPU runs inference on the hardware accelerator.
	DelegateGPU Delegate = "GPU"
	// DelegateCPU runs inference in software.
	DelegateCPU Delegate = "CPU"
)

// Opposite returns the other delegate.
func (d Delegate) Opposite() Delegate {
	if d == DelegateGPU {
		return DelegateCPU
	}
	return DelegateGPU
}

// Config holds configuration options for hand detection.
type Config struct {
	// ScriptPath is the inference service entry point.
	ScriptPath string

	// ModelPath is the hand landmark model file.
	ModelPath string

	// Delegate is the execution backend requested from the engine.
	Delegate Delegate

	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Delegate:        DelegateGPU,
		MaxHands:        1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// DetectorCreationError is returned when no delegate produced a detector.
type DetectorCreationError struct {
	Tried []Delegate
	Err   error
}

func (e *DetectorCreationError) Error() string {
	return fmt.Sprintf("create hand detector (tried %v): %v", e.Tried, e.Err)
}

func (e *DetectorCreationError) Unwrap() error { return e.Err }

// Status returns the user-facing description of the failure.
func (e *DetectorCreationError) Status() string {
	if chain.IsTimeout(e.Err) {
		return "hand model load timed out (check that the runtime assets are reachable)"
	}
	return "gestures unavailable (hand model could not start)"
}
