package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// ErrDetectorClosed is returned by Detect after Close.
var ErrDetectorClosed = errors.New("detector is closed")

// closeGrace is how long Close waits for the service to exit on its own
// before killing it.
var closeGrace = 2 * time.Second

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Frames are sent as a 4-byte big-endian length followed by JPEG bytes; each
// frame is answered with one JSON line. On startup the service prints a single
// handshake line, {"ready":true} or {"error":"..."}.
type MediaPipeDetector struct {
	config Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	// mu serialises frame exchanges. Close does not take it, so it can
	// interrupt a Detect that is waiting on a stalled service.
	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewMediaPipeDetector starts the inference service and waits for its handshake.
// If ctx ends first the process is killed and ctx.Err() is returned.
func NewMediaPipeDetector(ctx context.Context, config Config) (*MediaPipeDetector, error) {
	if config.ScriptPath == "" {
		return nil, fmt.Errorf("mediapipe_service.py not found")
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	maxHands := config.MaxHands
	if maxHands <= 0 {
		maxHands = 1
	}

	cmd := exec.Command(pythonPath, config.ScriptPath,
		"--model", config.ModelPath,
		"--delegate", string(config.Delegate),
		"--num-hands", strconv.Itoa(maxHands),
		"--min-confidence", strconv.FormatFloat(config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}

	d := &MediaPipeDetector{
		config: config,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}

	handshake := make(chan error, 1)
	go func() {
		handshake <- d.readHandshake()
	}()

	select {
	case err := <-handshake:
		if err != nil {
			d.kill()
			return nil, err
		}
		return d, nil
	case <-ctx.Done():
		d.kill()
		return nil, ctx.Err()
	}
}

func (d *MediaPipeDetector) readHandshake() error {
	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}

	var hs struct {
		Ready bool   `json:"ready"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &hs); err != nil {
		return fmt.Errorf("parse handshake: %w", err)
	}
	if !hs.Ready {
		if hs.Error == "" {
			hs.Error = "service not ready"
		}
		return fmt.Errorf("mediapipe %s delegate: %s", d.config.Delegate, hs.Error)
	}
	return nil
}

// Delegate returns the delegate the service was started with.
func (d *MediaPipeDetector) Delegate() Delegate {
	return d.config.Delegate
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return nil, ErrDetectorClosed
	}

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		if d.closed.Load() {
			return nil, ErrDetectorClosed
		}
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		if d.closed.Load() {
			return nil, ErrDetectorClosed
		}
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		if d.closed.Load() {
			return nil, ErrDetectorClosed
		}
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}

	return result, nil
}

// Close shuts down the Python process. Closing stdin asks the service to
// exit; if it has not exited after closeGrace it is killed, which also
// unblocks a pending Detect. It is safe to call more than once.
func (d *MediaPipeDetector) Close() error {
	d.shutdown(closeGrace)
	return d.closeErr
}

func (d *MediaPipeDetector) kill() {
	d.shutdown(0)
}

func (d *MediaPipeDetector) shutdown(grace time.Duration) {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.stdin.Close()

		exited := make(chan error, 1)
		go func() { exited <- d.cmd.Wait() }()

		if grace > 0 {
			select {
			case d.closeErr = <-exited:
				return
			case <-time.After(grace):
				log.Printf("mediapipe: service did not exit within %v, killing it", grace)
			}
		}
		d.cmd.Process.Kill()
		err := <-exited
		if grace > 0 {
			d.closeErr = err
		}
	})
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".treegesture/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if absPath, err := filepath.Abs(path); err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	copy(lm.Points[:], h.Points)
	return lm
}
