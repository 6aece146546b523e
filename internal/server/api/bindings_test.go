package api

import (
	"net/http"
	"testing"

	"github.com/ayusman/treegesture/internal/plugin"
)

type fakePlugins map[string]*plugin.Plugin

func (f fakePlugins) Lookup(name, action string) (*plugin.Plugin, error) {
	p, ok := f[name]
	if !ok {
		return nil, plugin.ErrPluginNotFound
	}
	if !p.Supports(action) {
		return nil, plugin.ErrUnsupportedAction
	}
	return p, nil
}

var testPlugins = fakePlugins{
	"keyboard": {Manifest: plugin.Manifest{Name: "keyboard", Actions: []string{"keystroke", "shortcut"}}},
}

func TestBindingHandler_Workflow(t *testing.T) {
	s := newTestStore(t)
	h := NewBindingHandler(s, testPlugins)

	// Create
	rec := do(t, h, http.MethodPost, "/api/bindings", map[string]any{
		"signal":      plugin.SignalPinch,
		"plugin_name": "keyboard",
		"action_name": "keystroke",
		"config":      map[string]string{"key": "right"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var created bindingResponse
	decode(t, rec, &created)
	if created.ID == "" || !created.Enabled || created.Signal != plugin.SignalPinch {
		t.Fatalf("unexpected binding %+v", created)
	}

	// Get
	rec = do(t, h, http.MethodGet, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET: expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got bindingResponse
	decode(t, rec, &got)
	if string(got.Config) != `{"key":"right"}` {
		t.Errorf("expected stored config, got %s", got.Config)
	}

	// Update
	rec = do(t, h, http.MethodPut, "/api/bindings/"+created.ID, `{"action_name":"shortcut","enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT: expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var updated bindingResponse
	decode(t, rec, &updated)
	if updated.ActionName != "shortcut" || updated.Enabled {
		t.Errorf("unexpected update %+v", updated)
	}

	// List
	rec = do(t, h, http.MethodGet, "/api/bindings", nil)
	var list listBindingsResponse
	decode(t, rec, &list)
	if len(list.Bindings) != 1 {
		t.Errorf("expected 1 binding, got %d", len(list.Bindings))
	}
	if len(list.Signals) != len(plugin.Signals) {
		t.Errorf("expected the bindable signals, got %v", list.Signals)
	}

	// Delete
	if rec := do(t, h, http.MethodDelete, "/api/bindings/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/bindings/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete: expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestBindingHandler_CreateValidation(t *testing.T) {
	s := newTestStore(t)
	h := NewBindingHandler(s, testPlugins)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing signal", `{"plugin_name":"keyboard","action_name":"keystroke"}`, http.StatusBadRequest},
		{"unknown signal", `{"signal":"swipe","plugin_name":"keyboard","action_name":"keystroke"}`, http.StatusBadRequest},
		{"missing plugin", `{"signal":"pinch","action_name":"keystroke"}`, http.StatusBadRequest},
		{"missing action", `{"signal":"pinch","plugin_name":"keyboard"}`, http.StatusBadRequest},
		{"unknown plugin", `{"signal":"pinch","plugin_name":"mouse","action_name":"click"}`, http.StatusBadRequest},
		{"unsupported action", `{"signal":"pinch","plugin_name":"keyboard","action_name":"volume-up"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/api/bindings", tt.body); rec.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestBindingHandler_Conflict(t *testing.T) {
	h := NewBindingHandler(newTestStore(t), nil)
	body := `{"signal":"mode:open","plugin_name":"anything","action_name":"run"}`

	if rec := do(t, h, http.MethodPost, "/api/bindings", body); rec.Code != http.StatusCreated {
		t.Fatalf("first POST: expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/bindings", body); rec.Code != http.StatusConflict {
		t.Errorf("second POST: expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestBindingHandler_NotFound(t *testing.T) {
	h := NewBindingHandler(newTestStore(t), testPlugins)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(t, h, method, "/api/bindings/missing", `{"enabled":true}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestBindingHandler_UpdateRejectsUnsupportedAction(t *testing.T) {
	s := newTestStore(t)
	h := NewBindingHandler(s, testPlugins)

	rec := do(t, h, http.MethodPost, "/api/bindings", `{"signal":"pinch","plugin_name":"keyboard","action_name":"keystroke"}`)
	var created bindingResponse
	decode(t, rec, &created)

	rec = do(t, h, http.MethodPut, "/api/bindings/"+created.ID, `{"action_name":"volume-up"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	b, err := s.Bindings().GetByID(created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if b.ActionName != "keystroke" {
		t.Errorf("rejected update was stored: %q", b.ActionName)
	}
}

func TestPluginsHandler(t *testing.T) {
	h := NewPluginsHandler(plugin.NewManager(t.TempDir()))

	rec := do(t, h, http.MethodGet, "/api/plugins", nil)
	if got := rec.Body.String(); got != "{\"plugins\":[]}\n" {
		t.Errorf("expected an empty list, got %q", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/plugins", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
