package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestBindings_CRUD(t *testing.T) {
	s := newTestStore(t)
	repo := s.Bindings()

	b := &Binding{
		Signal:     "pinch",
		PluginName: "keyboard",
		ActionName: "press",
		Config:     json.RawMessage(`{"key":"right"}`),
		Enabled:    true,
	}

	t.Run("create assigns an id", func(t *testing.T) {
		if err := repo.Create(b); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if b.ID == "" {
			t.Error("Create() should assign an ID")
		}
	})

	t.Run("get by id and signal", func(t *testing.T) {
		got, err := repo.GetByID(b.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Signal != "pinch" || got.PluginName != "keyboard" || !got.Enabled {
			t.Errorf("GetByID() = %+v", got)
		}
		if string(got.Config) != `{"key":"right"}` {
			t.Errorf("Config = %s", got.Config)
		}

		bySignal, err := repo.GetBySignal("pinch")
		if err != nil || bySignal == nil || bySignal.ID != b.ID {
			t.Errorf("GetBySignal() = (%v, %v)", bySignal, err)
		}
	})

	t.Run("unbound signal is nil", func(t *testing.T) {
		got, err := repo.GetBySignal("mode:open")
		if err != nil || got != nil {
			t.Errorf("GetBySignal() = (%v, %v), want (nil, nil)", got, err)
		}
	})

	t.Run("signal is unique", func(t *testing.T) {
		dup := &Binding{Signal: "pinch", PluginName: "keyboard", ActionName: "press"}
		if err := repo.Create(dup); err == nil {
			t.Error("second binding for the same signal should fail")
		}
	})

	t.Run("update", func(t *testing.T) {
		b.Enabled = false
		b.Config = nil
		if err := repo.Update(b); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		got, _ := repo.GetByID(b.ID)
		if got.Enabled || string(got.Config) != "{}" {
			t.Errorf("after update = %+v", got)
		}
	})

	t.Run("list", func(t *testing.T) {
		repo.Create(&Binding{Signal: "mode:open", PluginName: "keyboard", ActionName: "press", Enabled: true})
		all, err := repo.List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(all) != 2 {
			t.Errorf("List() returned %d bindings, want 2", len(all))
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(b.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.GetByID(b.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
		}
		if err := repo.Delete(b.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
		if err := repo.Update(b); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update() of deleted binding error = %v, want ErrNotFound", err)
		}
	})
}
