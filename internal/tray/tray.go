// Package tray provides the system tray menu: a gesture toggle plus the
// current status and mode.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/treegesture/internal/app"
	"github.com/ayusman/treegesture/internal/gesture"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	status     string
	mode       gesture.Mode
	mu         sync.RWMutex

	// Menu items stored for later updates. Nil until the tray is ready.
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
	menuMode   *systray.MenuItem
}

// New creates a new Tray showing the given enabled state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
		status:  app.StatusOff,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Handlers returns session handlers that keep the menu current.
func (t *Tray) Handlers() app.Handlers {
	return app.Handlers{
		OnStatus:     t.SetStatus,
		OnModeChange: t.SetMode,
	}
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Gestures on"
	}
	return "○ Gestures off"
}

func modeTitle(m gesture.Mode) string {
	switch m {
	case gesture.ModeOpen:
		return "Mode: open (scatter)"
	case gesture.ModeClosed:
		return "Mode: closed (gather)"
	}
	return "Mode: none"
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("TreeGesture")
	systray.SetTooltip("Hand gesture control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture control")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(t.status, "Gesture status")
	t.menuStatus.Disable()
	t.menuMode = systray.AddMenuItem(modeTitle(t.mode), "Current mode")
	t.menuMode.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit TreeGesture")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetEnabled reflects a toggle made elsewhere. It does not call OnToggle.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetStatus updates the status line. The toggle follows the session, so a
// change made through the API shows up here too.
func (t *Tray) SetStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if status == t.status {
		return
	}
	t.status = status
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(status)
	}

	enabled := status != app.StatusOff
	if enabled != t.enabled {
		t.enabled = enabled
		if t.menuToggle != nil {
			t.menuToggle.SetTitle(toggleTitle(enabled))
		}
	}
}

// SetMode updates the mode line.
func (t *Tray) SetMode(m gesture.Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mode = m
	if t.menuMode != nil {
		t.menuMode.SetTitle(modeTitle(m))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Status returns the status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Mode returns the mode shown.
func (t *Tray) Mode() gesture.Mode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}
