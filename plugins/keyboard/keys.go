package main

import (
	"errors"
	"fmt"
	"strings"
)

// errUnsupportedOS is returned on platforms without a keystroke backend.
var errUnsupportedOS = errors.New("keystrokes are not supported on this platform")

// Keystroke is a key plus optional modifiers.
type Keystroke struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// appleModifiers maps modifier names to AppleScript.
var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// appleKeyCodes covers keys that keystroke cannot type.
var appleKeyCodes = map[string]int{
	"left":   123,
	"right":  124,
	"down":   125,
	"up":     126,
	"return": 36,
	"enter":  36,
	"tab":    48,
	"space":  49,
	"escape": 53,
	"esc":    53,
}

var xdoModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

var xdoKeys = map[string]string{
	"left":   "Left",
	"right":  "Right",
	"down":   "Down",
	"up":     "Up",
	"return": "Return",
	"enter":  "Return",
	"tab":    "Tab",
	"space":  "space",
	"escape": "Escape",
	"esc":    "Escape",
}

// command returns the program and arguments that send k on goos.
func command(goos string, k Keystroke) (string, []string, error) {
	if k.Key == "" {
		return "", nil, errors.New("key is required")
	}

	switch goos {
	case "darwin":
		return "osascript", []string{"-e", appleScript(k)}, nil
	case "linux":
		return "xdotool", []string{"key", "--clearmodifiers", xdoChord(k)}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", errUnsupportedOS, goos)
	}
}

func appleScript(k Keystroke) string {
	var mods []string
	for _, m := range k.Modifiers {
		if am, ok := appleModifiers[strings.ToLower(m)]; ok {
			mods = append(mods, am)
		}
	}

	press := fmt.Sprintf("keystroke %q", k.Key)
	if code, ok := appleKeyCodes[strings.ToLower(k.Key)]; ok {
		press = fmt.Sprintf("key code %d", code)
	}

	if len(mods) == 0 {
		return `tell application "System Events" to ` + press
	}
	return fmt.Sprintf(`tell application "System Events" to %s using {%s}`, press, strings.Join(mods, ", "))
}

func xdoChord(k Keystroke) string {
	var parts []string
	for _, m := range k.Modifiers {
		if xm, ok := xdoModifiers[strings.ToLower(m)]; ok {
			parts = append(parts, xm)
		}
	}

	key := k.Key
	if named, ok := xdoKeys[strings.ToLower(key)]; ok {
		key = named
	}
	return strings.Join(append(parts, key), "+")
}
