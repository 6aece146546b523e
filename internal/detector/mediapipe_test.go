package detector

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// startService runs body as the inference service.
func startService(t *testing.T, body string) *MediaPipeDetector {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}

	script := filepath.Join(t.TempDir(), "service.py")
	if err := os.WriteFile(script, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.ScriptPath = script
	cfg.ModelPath = "unused.task"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := NewMediaPipeDetector(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMediaPipeDetector() error = %v", err)
	}
	return d
}

func TestMediaPipeDetector_CloseExitsService(t *testing.T) {
	d := startService(t, `import sys
sys.stdout.write('{"ready": true}\n')
sys.stdout.flush()
sys.stdin.buffer.read()
`)

	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMediaPipeDetector_CloseInterruptsStalledDetect(t *testing.T) {
	old := closeGrace
	closeGrace = 50 * time.Millisecond
	t.Cleanup(func() { closeGrace = old })

	d := startService(t, `import sys, time
sys.stdout.write('{"ready": true}\n')
sys.stdout.flush()
sys.stdin.buffer.read(4)
time.sleep(60)
`)

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()

	detected := make(chan error, 1)
	go func() {
		_, err := d.Detect(&frame)
		detected <- err
	}()
	time.Sleep(100 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close() blocked behind a stalled Detect")
	}
	select {
	case err := <-detected:
		if !errors.Is(err, ErrDetectorClosed) {
			t.Errorf("Detect() error = %v, want ErrDetectorClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Detect() did not return after Close")
	}
}
