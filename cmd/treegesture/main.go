package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/treegesture/internal/app"
	"github.com/ayusman/treegesture/internal/assets"
	"github.com/ayusman/treegesture/internal/capture"
	"github.com/ayusman/treegesture/internal/config"
	"github.com/ayusman/treegesture/internal/detector"
	"github.com/ayusman/treegesture/internal/plugin"
	"github.com/ayusman/treegesture/internal/preview"
	"github.com/ayusman/treegesture/internal/server"
	"github.com/ayusman/treegesture/internal/store"
	"github.com/ayusman/treegesture/internal/tray"
)

func main() {
	fmt.Println("TreeGesture - Hand Gesture Control")

	cfg, err := config.Parse(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	enabled, err := st.Settings().GetBool(store.SettingEnabled, cfg.Enabled)
	if err != nil {
		log.Printf("Failed to read enabled setting, using %v: %v", cfg.Enabled, err)
	}

	plugins := plugin.NewManager(cfg.PluginDir)
	if err := plugins.Discover(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	log.Printf("Loaded %d plugins from %s", plugins.Len(), plugins.PluginDir())
	dispatcher := plugin.NewDispatcher(st.Bindings(), plugins, plugin.NewExecutor(plugin.DefaultTimeout))
	defer dispatcher.Close()

	if !cfg.Secure() {
		log.Printf("Camera disabled: %s is not a loopback address and TLS is not configured (use -allow-insecure to override)", cfg.Addr)
	}

	pv := preview.New()
	hub := server.NewHub()
	defer hub.Close()

	gestures := app.New(app.Config{
		Camera:    capture.OpenCamera(cfg.CameraID),
		Secure:    cfg.Secure(),
		Assets:    assets.NewResolver(cfg.PrimaryAssets, cfg.SecondaryAssets, cfg.CacheDir()),
		Detectors: detector.NewFactory(),
		Device:    detector.CurrentDevice(),
		FPS:       cfg.FPS,
		Preview:   pv,
		Events:    st.Events(),
	})
	defer gestures.Close()

	handlers := []app.Handlers{hub.Handlers(), dispatcher.Handlers()}
	var tr *tray.Tray
	if cfg.Tray {
		tr = tray.New(enabled)
		handlers = append(handlers, tr.Handlers())
	}
	gestures.SetHandlers(app.Broadcast(handlers...))
	gestures.SetEnabled(enabled)

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		fmt.Printf("Serving static files from: %s\n", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		App:       gestures,
		Preview:   pv,
		Signals:   hub,
		Plugins:   plugins,
	})
	httpServer := srv.HTTPServer(cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		var err error
		if cfg.TLS() {
			err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if tr != nil {
		tr.OnToggle(func(on bool) {
			gestures.SetEnabled(on)
			if err := st.Settings().SetBool(store.SettingEnabled, on); err != nil {
				log.Printf("Failed to persist enabled setting: %v", err)
			}
		})
		tr.OnSettings(func() { openBrowser(settingsURL(cfg)) })
		tr.OnQuit(stop)

		go func() {
			select {
			case <-ctx.Done():
			case err := <-serveErr:
				if err != nil {
					log.Printf("Server failed: %v", err)
				}
			}
			tr.Quit()
		}()
		// systray needs the main goroutine.
		tr.Run()
	} else {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

func settingsURL(cfg *config.Config) string {
	scheme := "http"
	if cfg.TLS() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, cfg.Addr)
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
