package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ayusman/treegesture/internal/gesture"
	"github.com/ayusman/treegesture/internal/store"
)

// Controller is the gesture session as seen by the API.
type Controller interface {
	IsEnabled() bool
	Ready() bool
	Status() string
	CurrentMode() gesture.Mode
	SetEnabled(enabled bool)
	SetCurrentMode(m gesture.Mode)
}

// SettingStore persists boolean settings.
type SettingStore interface {
	SetBool(key string, value bool) error
}

// GestureHandler reads and drives the gesture session at /api/gesture.
type GestureHandler struct {
	app      Controller
	settings SettingStore
}

// NewGestureHandler creates a GestureHandler. settings may be nil, in which
// case the enabled toggle is not persisted.
func NewGestureHandler(app Controller, settings SettingStore) *GestureHandler {
	return &GestureHandler{app: app, settings: settings}
}

type gestureState struct {
	Enabled bool   `json:"enabled"`
	Ready   bool   `json:"ready"`
	Status  string `json:"status"`
	Mode    string `json:"mode"`
}

type updateGestureRequest struct {
	Enabled *bool   `json:"enabled"`
	Mode    *string `json:"mode"`
}

func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.state())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *GestureHandler) state() gestureState {
	return gestureState{
		Enabled: h.app.IsEnabled(),
		Ready:   h.app.Ready(),
		Status:  h.app.Status(),
		Mode:    string(h.app.CurrentMode()),
	}
}

// update handles PUT /api/gesture. Either field may be omitted.
func (h *GestureHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateGestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Enabled == nil && req.Mode == nil {
		writeError(w, http.StatusBadRequest, "enabled or mode is required")
		return
	}

	var mode gesture.Mode
	if req.Mode != nil {
		m, ok := gesture.ParseMode(*req.Mode)
		if !ok {
			writeError(w, http.StatusBadRequest, `mode must be "open" or "closed"`)
			return
		}
		mode = m
	}

	if req.Mode != nil {
		h.app.SetCurrentMode(mode)
	}
	if req.Enabled != nil {
		h.app.SetEnabled(*req.Enabled)
		if h.settings != nil {
			if err := h.settings.SetBool(store.SettingEnabled, *req.Enabled); err != nil {
				log.Printf("api: failed to persist enabled setting: %v", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, h.state())
}
