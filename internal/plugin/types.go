// Package plugin runs external plugin executables in response to gesture
// signals.
package plugin

import (
	"encoding/json"
	"slices"

	"github.com/ayusman/treegesture/internal/gesture"
)

// Signals that can be bound to a plugin action.
const (
	SignalPinch      = "pinch"
	SignalModeOpen   = "mode:open"
	SignalModeClosed = "mode:closed"
)

// Signals lists every bindable signal.
var Signals = []string{SignalPinch, SignalModeOpen, SignalModeClosed}

// ValidSignal reports whether s can be bound.
func ValidSignal(s string) bool {
	return slices.Contains(Signals, s)
}

// ModeSignal returns the signal emitted when the mode changes to m.
func ModeSignal(m gesture.Mode) string {
	return "mode:" + string(m)
}

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written to the plugin's stdin.
type Request struct {
	Action string          `json:"action"`
	Signal string          `json:"signal"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest declares action.
func (p *Plugin) Supports(action string) bool {
	return slices.Contains(p.Manifest.Actions, action)
}
