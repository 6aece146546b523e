package app

import "github.com/ayusman/treegesture/internal/gesture"

// Handlers receive the session outputs. Any field may be nil. Handlers run on
// the frame loop goroutine and may call back into the App.
type Handlers struct {
	OnModeChange   func(gesture.Mode)
	OnHandPosition func(gesture.HandPosition)
	OnPinch        func()
	OnStatus       func(string)
}

func (h *Handlers) modeChanged(m gesture.Mode) {
	if h.OnModeChange != nil {
		h.OnModeChange(m)
	}
}

func (h *Handlers) position(p gesture.HandPosition) {
	if h.OnHandPosition != nil {
		h.OnHandPosition(p)
	}
}

func (h *Handlers) pinched() {
	if h.OnPinch != nil {
		h.OnPinch()
	}
}

func (h *Handlers) statusChanged(s string) {
	if h.OnStatus != nil {
		h.OnStatus(s)
	}
}

// Broadcast combines several handler sets into one that calls each in order.
func Broadcast(sets ...Handlers) Handlers {
	return Handlers{
		OnModeChange: func(m gesture.Mode) {
			for i := range sets {
				sets[i].modeChanged(m)
			}
		},
		OnHandPosition: func(p gesture.HandPosition) {
			for i := range sets {
				sets[i].position(p)
			}
		},
		OnPinch: func() {
			for i := range sets {
				sets[i].pinched()
			}
		},
		OnStatus: func(s string) {
			for i := range sets {
				sets[i].statusChanged(s)
			}
		},
	}
}
