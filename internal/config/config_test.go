package config

import (
	"os"
	"path/filepath"
	"testing"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.FPS != DefaultFPS || !cfg.Tray {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"fps": 24, "tray": false}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FPS != 24 || cfg.Tray {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.PrimaryAssets != DefaultPrimaryAssets {
		t.Errorf("expected default primary assets, got %q", cfg.PrimaryAssets)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.CameraID = 2
	cfg.Enabled = true

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("loaded %+v, want %+v", loaded, cfg)
	}
}

func TestParse_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"addr": "127.0.0.1:9000", "fps": 20, "camera_id": 1}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse(
		[]string{"-config", path, "-fps", "25", "-enabled"},
		env(map[string]string{"TREEGESTURE_CAMERA_ID": "3"}),
	)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("file value lost: addr = %q", cfg.Addr)
	}
	if cfg.FPS != 25 {
		t.Errorf("flag did not override file: fps = %d", cfg.FPS)
	}
	if cfg.CameraID != 3 {
		t.Errorf("env did not override file: camera_id = %d", cfg.CameraID)
	}
	if !cfg.Enabled {
		t.Error("expected -enabled to apply")
	}
}

func TestParse_UnsetFlagsDoNotOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"tray": false}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse(nil, env(map[string]string{"TREEGESTURE_CONFIG": path}))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Tray {
		t.Error("the -tray default must not override the file")
	}
}

func TestParse_Errors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.json")

	if _, err := Parse([]string{"-config", missing, "-nope"}, env(nil)); err == nil {
		t.Error("expected an error for an unknown flag")
	}
	if _, err := Parse([]string{"-config", missing}, env(map[string]string{"TREEGESTURE_FPS": "fast"})); err == nil {
		t.Error("expected an error for a non-numeric fps")
	}
	if _, err := Parse([]string{"-config", missing}, env(map[string]string{"TREEGESTURE_TRAY": "maybe"})); err == nil {
		t.Error("expected an error for a non-boolean tray")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		wantFPS int
	}{
		{"defaults", func(c *Config) {}, false, DefaultFPS},
		{"zero fps", func(c *Config) { c.FPS = 0 }, false, DefaultFPS},
		{"fps clamped", func(c *Config) { c.FPS = 240 }, false, MaxFPS},
		{"empty addr", func(c *Config) { c.Addr = "" }, true, 0},
		{"bad addr", func(c *Config) { c.Addr = "localhost" }, true, 0},
		{"empty primary", func(c *Config) { c.PrimaryAssets = " " }, true, 0},
		{"empty secondary", func(c *Config) { c.SecondaryAssets = "" }, true, 0},
		{"cert without key", func(c *Config) { c.TLSCert = "cert.pem" }, true, 0},
		{"negative camera", func(c *Config) { c.CameraID = -1 }, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.FPS != tt.wantFPS {
				t.Errorf("fps = %d, want %d", cfg.FPS, tt.wantFPS)
			}
		})
	}
}

func TestSecure(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"loopback v4", Config{Addr: "127.0.0.1:8080"}, true},
		{"loopback v6", Config{Addr: "[::1]:8080"}, true},
		{"localhost", Config{Addr: "localhost:8080"}, true},
		{"all interfaces", Config{Addr: ":8080"}, false},
		{"lan address", Config{Addr: "192.168.1.20:8080"}, false},
		{"tls", Config{Addr: ":8443", TLSCert: "c", TLSKey: "k"}, true},
		{"allowed", Config{Addr: "0.0.0.0:8080", AllowInsecure: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Secure(); got != tt.want {
				t.Errorf("Secure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	if cfg.DBPath() != filepath.Join("/data", "treegesture.db") {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
	if cfg.CacheDir() != filepath.Join("/data", "cache") {
		t.Errorf("CacheDir() = %q", cfg.CacheDir())
	}
}
