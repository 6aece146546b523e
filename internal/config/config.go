// Package config loads the service configuration: a JSON file with defaults,
// overridden by command line flags and then by TREEGESTURE_* environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults.
const (
	DefaultAddr            = "127.0.0.1:8080"
	DefaultFPS             = 30
	MaxFPS                 = 60
	DefaultPrimaryAssets   = "runtime"
	DefaultSecondaryAssets = "https://cdn.jsdelivr.net/gh/ayusman/treegesture@main/runtime"
	EnvPrefix              = "TREEGESTURE_"
)

// Config holds the service configuration.
type Config struct {
	Addr            string `json:"addr"`
	StaticDir       string `json:"static_dir"`
	DataDir         string `json:"data_dir"`
	CameraID        int    `json:"camera_id"`
	FPS             int    `json:"fps"`
	PrimaryAssets   string `json:"primary_assets"`
	SecondaryAssets string `json:"secondary_assets"`
	PluginDir       string `json:"plugin_dir"`
	Tray            bool   `json:"tray"`
	Enabled         bool   `json:"enabled"`
	AllowInsecure   bool   `json:"allow_insecure"`
	TLSCert         string `json:"tls_cert"`
	TLSKey          string `json:"tls_key"`
}

// DefaultDataDir returns ~/.treegesture, or .treegesture if there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".treegesture"
	}
	return filepath.Join(home, ".treegesture")
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Addr:            DefaultAddr,
		DataDir:         dataDir,
		FPS:             DefaultFPS,
		PrimaryAssets:   DefaultPrimaryAssets,
		SecondaryAssets: DefaultSecondaryAssets,
		PluginDir:       filepath.Join(dataDir, "plugins"),
		Tray:            true,
	}
}

// Load reads the JSON file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Parse builds the configuration from the file named by -config (or
// TREEGESTURE_CONFIG), then flags that were set explicitly, then environment
// variables.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("treegesture", flag.ContinueOnError)

	path := fs.String("config", filepath.Join(DefaultDataDir(), "config.json"), "path to the JSON config file")
	var flags Config
	fs.StringVar(&flags.Addr, "addr", DefaultAddr, "HTTP listen address")
	fs.StringVar(&flags.StaticDir, "static", "", "directory of static web files")
	fs.StringVar(&flags.DataDir, "data", "", "data directory for the database and asset cache")
	fs.IntVar(&flags.CameraID, "camera", 0, "camera device id")
	fs.IntVar(&flags.FPS, "fps", DefaultFPS, "frame loop rate")
	fs.StringVar(&flags.PrimaryAssets, "assets", DefaultPrimaryAssets, "primary inference runtime base (directory or URL)")
	fs.StringVar(&flags.SecondaryAssets, "assets-fallback", DefaultSecondaryAssets, "secondary inference runtime base")
	fs.StringVar(&flags.PluginDir, "plugins", "", "plugin directory")
	fs.BoolVar(&flags.Tray, "tray", true, "show the system tray menu")
	fs.BoolVar(&flags.Enabled, "enabled", false, "start with gestures enabled")
	fs.BoolVar(&flags.AllowInsecure, "allow-insecure", false, "allow the camera without TLS on a non-loopback address")
	fs.StringVar(&flags.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&flags.TLSKey, "tls-key", "", "TLS key file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if v := getenv(EnvPrefix + "CONFIG"); v != "" {
		*path = v
	}
	cfg, err := Load(*path)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = flags.Addr
		case "static":
			cfg.StaticDir = flags.StaticDir
		case "data":
			cfg.DataDir = flags.DataDir
		case "camera":
			cfg.CameraID = flags.CameraID
		case "fps":
			cfg.FPS = flags.FPS
		case "assets":
			cfg.PrimaryAssets = flags.PrimaryAssets
		case "assets-fallback":
			cfg.SecondaryAssets = flags.SecondaryAssets
		case "plugins":
			cfg.PluginDir = flags.PluginDir
		case "tray":
			cfg.Tray = flags.Tray
		case "enabled":
			cfg.Enabled = flags.Enabled
		case "allow-insecure":
			cfg.AllowInsecure = flags.AllowInsecure
		case "tls-cert":
			cfg.TLSCert = flags.TLSCert
		case "tls-key":
			cfg.TLSKey = flags.TLSKey
		}
	})

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TREEGESTURE_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"ADDR":             &c.Addr,
		"STATIC_DIR":       &c.StaticDir,
		"DATA_DIR":         &c.DataDir,
		"PRIMARY_ASSETS":   &c.PrimaryAssets,
		"SECONDARY_ASSETS": &c.SecondaryAssets,
		"PLUGIN_DIR":       &c.PluginDir,
		"TLS_CERT":         &c.TLSCert,
		"TLS_KEY":          &c.TLSKey,
	}
	for name, field := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*field = v
		}
	}

	ints := map[string]*int{
		"CAMERA_ID": &c.CameraID,
		"FPS":       &c.FPS,
	}
	for name, field := range ints {
		if v := getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*field = n
		}
	}

	bools := map[string]*bool{
		"TRAY":           &c.Tray,
		"ENABLED":        &c.Enabled,
		"ALLOW_INSECURE": &c.AllowInsecure,
	}
	for name, field := range bools {
		if v := getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*field = b
		}
	}
	return nil
}

// Validate clamps the frame rate and rejects unusable settings.
func (c *Config) Validate() error {
	switch {
	case c.FPS <= 0:
		c.FPS = DefaultFPS
	case c.FPS > MaxFPS:
		c.FPS = MaxFPS
	}

	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("addr %q: %w", c.Addr, err)
	}
	if strings.TrimSpace(c.PrimaryAssets) == "" || strings.TrimSpace(c.SecondaryAssets) == "" {
		return errors.New("primary_assets and secondary_assets are required")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("tls_cert and tls_key must be set together")
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.CameraID < 0 {
		return fmt.Errorf("camera_id %d: must not be negative", c.CameraID)
	}
	return nil
}

// TLS reports whether the server is served over TLS.
func (c *Config) TLS() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// Secure reports whether the camera may be opened: the server uses TLS, is
// bound to a loopback address, or insecure access was allowed explicitly.
func (c *Config) Secure() bool {
	if c.AllowInsecure || c.TLS() {
		return true
	}
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// DBPath returns the database file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "treegesture.db")
}

// CacheDir returns the directory for downloaded runtime files.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}
