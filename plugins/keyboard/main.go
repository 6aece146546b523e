// Package main provides a keyboard plugin. It sends a keystroke or shortcut
// when a gesture signal fires, through AppleScript on macOS and xdotool on
// Linux.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Signal string          `json:"signal"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// runner executes an external command.
type runner func(name string, args ...string) error

func main() {
	resp := handle(os.Stdin, runtime.GOOS, runCommand)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(in io.Reader, goos string, run runner) Response {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return failure(fmt.Sprintf("failed to decode request: %v", err))
	}

	switch req.Action {
	case "keystroke", "shortcut":
	default:
		return failure(fmt.Sprintf("unknown action: %s", req.Action))
	}

	var k Keystroke
	if err := json.Unmarshal(req.Params, &k); err != nil {
		return failure(fmt.Sprintf("action %s failed: failed to parse params: %v", req.Action, err))
	}
	if req.Action == "shortcut" && len(k.Modifiers) == 0 {
		return failure("action shortcut failed: at least one modifier is required")
	}

	name, args, err := command(goos, k)
	if err != nil {
		return failure(fmt.Sprintf("action %s failed: %v", req.Action, err))
	}
	if err := run(name, args...); err != nil {
		return failure(fmt.Sprintf("action %s failed: %v", req.Action, err))
	}

	data, _ := json.Marshal(map[string]string{"signal": req.Signal, "key": k.Key})
	return Response{Success: true, Data: data}
}

func failure(msg string) Response {
	return Response{Success: false, Error: msg}
}

func runCommand(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
