// Package app drives the gesture session: it acquires the camera, the
// inference runtime and a detector, runs the frame loop and reports signals
// through the current handlers.
package app

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ayusman/treegesture/internal/assets"
	"github.com/ayusman/treegesture/internal/capture"
	"github.com/ayusman/treegesture/internal/detector"
	"github.com/ayusman/treegesture/internal/gesture"
	"github.com/ayusman/treegesture/internal/preview"
)

// DefaultFPS is the frame loop rate when Config.FPS is unset.
const DefaultFPS = 30

// AssetResolver locates the inference runtime.
type AssetResolver interface {
	Resolve(ctx context.Context) (assets.Runtime, error)
}

// DetectorFactory builds a detector for a resolved runtime.
type DetectorFactory interface {
	Create(ctx context.Context, rt assets.Runtime, preferred detector.Delegate) (detector.Detector, detector.Delegate, error)
}

// EventRecorder keeps a history of session events.
type EventRecorder interface {
	Record(kind, detail string) error
}

// Event kinds passed to EventRecorder.
const (
	EventEnabled  = "enabled"
	EventDisabled = "disabled"
	EventReady    = "ready"
	EventError    = "error"
	EventMode     = "mode"
	EventPinch    = "pinch"
)

// Config holds the collaborators of an App.
type Config struct {
	// Camera opens the video stream. Nil means no camera API is available.
	Camera capture.OpenFunc
	// Secure reports whether the camera may be opened in this context.
	Secure bool
	// Assets resolves the inference runtime.
	Assets AssetResolver
	// Detectors builds the hand detector.
	Detectors DetectorFactory
	// Device selects the preferred delegate.
	Device detector.DeviceInfo
	// FPS is the frame loop rate.
	FPS int
	// Preview receives frames and landmarks for display. Optional.
	Preview *preview.Preview
	// Events records session history. Optional.
	Events EventRecorder
}

// App is the session controller. All methods are safe for concurrent use.
type App struct {
	config   Config
	handlers atomic.Pointer[Handlers]
	mode     atomic.Value // gesture.Mode
	wg       sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	enabled bool
	ready   bool
	status  string
	session *session
}

// New creates a disabled App.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = DefaultFPS
	}
	a := &App{config: config, status: StatusOff}
	a.mode.Store(gesture.ModeUnknown)
	a.handlers.Store(&Handlers{})
	return a
}

// SetHandlers replaces the output handlers. The frame loop picks them up on
// its next frame.
func (a *App) SetHandlers(h Handlers) {
	a.handlers.Store(&h)
}

func (a *App) current() *Handlers {
	return a.handlers.Load()
}

// SetCurrentMode records a mode set outside the gesture loop so that the
// loop does not report it again.
func (a *App) SetCurrentMode(m gesture.Mode) {
	a.mode.Store(m)
}

// CurrentMode returns the last reported or externally set mode.
func (a *App) CurrentMode() gesture.Mode {
	return a.mode.Load().(gesture.Mode)
}

// IsEnabled returns whether gesture control is switched on.
func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Ready returns whether the current session finished setup.
func (a *App) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Status returns the current human-readable status line.
func (a *App) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// SetEnabled switches gesture control on or off. Disabling is synchronous:
// when it returns the previous session's stream and detector have been
// released, and any setup still in flight will discard what it acquires.
// Enabling starts setup from scratch. It has no effect after Close.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	if a.enabled == enabled || (enabled && a.closed) {
		a.mu.Unlock()
		return
	}
	a.enabled = enabled
	a.ready = false
	old := a.session
	a.session = nil

	var next *session
	if enabled {
		next = newSession(a.config.Camera, a.config.Secure)
		a.session = next
		// Added under mu so that Close cannot start waiting in between.
		a.wg.Add(1)
	}
	a.mu.Unlock()

	if old != nil {
		old.release()
	}

	if !enabled {
		if a.config.Preview != nil {
			a.config.Preview.Reset()
		}
		a.record(EventDisabled, "")
		a.setStatus(nil, StatusOff)
		a.current().position(gesture.LostPosition)
		log.Println("gestures: disabled")
		return
	}

	a.record(EventEnabled, "")
	log.Println("gestures: enabled")
	go func() {
		defer a.wg.Done()
		a.run(next)
	}()
}

// Close disables the App for good and waits for its goroutines to exit.
func (a *App) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.SetEnabled(false)
	a.wg.Wait()
}

// setStatus updates the status line if s is still the current session. A nil
// s updates it unconditionally.
func (a *App) setStatus(s *session, text string) {
	a.mu.Lock()
	if s != nil && a.session != s {
		a.mu.Unlock()
		return
	}
	if a.status == text {
		a.mu.Unlock()
		return
	}
	a.status = text
	a.mu.Unlock()

	a.current().statusChanged(text)
}

// markReady flags s as ready if it is still current.
func (a *App) markReady(s *session) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != s {
		return false
	}
	a.ready = true
	return true
}

func (a *App) record(kind, detail string) {
	if a.config.Events == nil {
		return
	}
	if err := a.config.Events.Record(kind, detail); err != nil {
		log.Printf("gestures: record %s event: %v", kind, err)
	}
}
