package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/treegesture/internal/app"
	"github.com/ayusman/treegesture/internal/assets"
	"github.com/ayusman/treegesture/internal/capture"
	"github.com/ayusman/treegesture/internal/detector"
	"github.com/ayusman/treegesture/internal/plugin"
	"github.com/ayusman/treegesture/internal/preview"
	"github.com/ayusman/treegesture/internal/server"
	"github.com/ayusman/treegesture/internal/store"
)

// runtimeServer serves the inference runtime files.
func runtimeServer(t *testing.T) *httptest.Server {
	t.Helper()
	files := map[string]string{
		"/" + assets.ScriptFile: "# service",
		"/" + assets.ModelFile:  "model",
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

// installPlugin writes a plugin that appends the signal it receives to log.
func installPlugin(t *testing.T, dir, logPath string) {
	t.Helper()
	pluginDir := filepath.Join(dir, "recorder")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","version":"1.0.0","executable":"run.sh","actions":["record"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ninput=$(cat)\necho \"$input\" >> '" + logPath + "'\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

type signals struct {
	mu    sync.Mutex
	seen  []map[string]any
	modes []string
	pins  int
}

func (s *signals) add(msg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, msg)
	switch msg["type"] {
	case server.SignalMode:
		s.modes = append(s.modes, msg["mode"].(string))
	case server.SignalPinch:
		s.pins++
	}
}

func (s *signals) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.modes...), s.pins
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("plugin script needs a POSIX shell")
	}

	tmpDir := t.TempDir()

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	pluginLog := filepath.Join(tmpDir, "plugin.log")
	pluginDir := filepath.Join(tmpDir, "plugins")
	installPlugin(t, pluginDir, pluginLog)
	plugins := plugin.NewManager(pluginDir)
	if err := plugins.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	dispatcher := plugin.NewDispatcher(s.Bindings(), plugins, plugin.NewExecutor(5*time.Second))
	defer dispatcher.Close()

	// The local runtime is missing, so assets come from the remote base.
	remote := runtimeServer(t)
	resolver := assets.NewResolver(filepath.Join(tmpDir, "missing"), remote.URL, filepath.Join(tmpDir, "cache"))
	resolver.Timeout = 2 * time.Second

	script := detector.NewScriptedDetector(
		detector.Lost(3),
		detector.Hold(detector.OpenPalmLandmarks(), 10),
		detector.Hold(detector.PinchLandmarks(), 8),
		detector.Lost(2),
		detector.Hold(detector.FistLandmarks(), 10),
	)
	factory := &detector.Factory{
		Timeout: 2 * time.Second,
		Base:    detector.DefaultConfig(),
		New: func(ctx context.Context, cfg detector.Config) (detector.Detector, error) {
			if cfg.Delegate == detector.DelegateGPU {
				return nil, errors.New("no GPU")
			}
			if _, err := os.Stat(cfg.ModelPath); err != nil {
				return nil, err
			}
			return script, nil
		},
	}

	camera := capture.NewMockCamera()
	pv := preview.New()
	hub := server.NewHub()
	defer hub.Close()

	gestures := app.New(app.Config{
		Camera:    camera.Open,
		Secure:    true,
		Assets:    resolver,
		Detectors: factory,
		Device:    detector.DeviceInfo{Platform: "linux/amd64"},
		FPS:       60,
		Preview:   pv,
		Events:    s.Events(),
	})
	defer gestures.Close()
	gestures.SetHandlers(app.Broadcast(hub.Handlers(), dispatcher.Handlers()))

	srv := server.New(server.Config{Store: s, App: gestures, Preview: pv, Signals: hub, Plugins: plugins})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("BindPinch", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/bindings", "application/json",
			strings.NewReader(`{"signal":"pinch","plugin_name":"recorder","action_name":"record"}`))
		if err != nil {
			t.Fatalf("create binding error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/signals", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitFor(t, "signals client", func() bool { return hub.Clients() == 1 })

	got := &signals{}
	go func() {
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			got.add(msg)
		}
	}()

	t.Run("Enable", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/gesture", strings.NewReader(`{"enabled":true}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("enable error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		waitFor(t, "ready", gestures.Ready)
	})

	t.Run("Signals", func(t *testing.T) {
		select {
		case <-script.Done():
		case <-time.After(10 * time.Second):
			t.Fatal("script did not finish")
		}

		waitFor(t, "open then closed", func() bool {
			modes, _ := got.snapshot()
			return len(modes) >= 2
		})
		modes, pinches := got.snapshot()
		if modes[0] != "open" || modes[1] != "closed" {
			t.Errorf("modes = %v, want [open closed]", modes)
		}
		if pinches < 1 {
			t.Error("expected at least one pinch")
		}
		if gestures.CurrentMode() != "closed" {
			t.Errorf("CurrentMode() = %q, want closed", gestures.CurrentMode())
		}
	})

	t.Run("PluginRan", func(t *testing.T) {
		waitFor(t, "plugin run", func() bool {
			data, err := os.ReadFile(pluginLog)
			return err == nil && strings.Contains(string(data), `"signal":"pinch"`)
		})
	})

	t.Run("History", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/events?limit=100")
		if err != nil {
			t.Fatalf("events error = %v", err)
		}
		defer resp.Body.Close()

		var history struct {
			Events []store.Event `json:"events"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		kinds := map[string]int{}
		for _, e := range history.Events {
			kinds[e.Kind]++
		}
		for _, k := range []string{app.EventEnabled, app.EventReady, app.EventMode, app.EventPinch} {
			if kinds[k] == 0 {
				t.Errorf("no %q event in history %v", k, kinds)
			}
		}
	})

	t.Run("Disable", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/gesture", strings.NewReader(`{"enabled":false}`))
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("disable error = %v", err)
		}
		defer resp.Body.Close()

		var state struct {
			Enabled bool   `json:"enabled"`
			Status  string `json:"status"`
		}
		json.NewDecoder(resp.Body).Decode(&state)
		if state.Enabled || state.Status != app.StatusOff {
			t.Errorf("unexpected state %+v", state)
		}
		if n := camera.ActiveStreams(); n != 0 {
			t.Errorf("ActiveStreams() = %d after disable", n)
		}
		if script.Closes() != 1 {
			t.Errorf("detector closed %d times, want 1", script.Closes())
		}
		if on, _ := s.Settings().GetBool(store.SettingEnabled, true); on {
			t.Error("expected the disabled toggle to be persisted")
		}
	})
}
