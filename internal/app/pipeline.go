package app

import (
	"fmt"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/treegesture/internal/capture"
	"github.com/ayusman/treegesture/internal/detector"
	"github.com/ayusman/treegesture/internal/gesture"
)

// run performs setup for s and then runs its frame loop until s is released.
//
// Setup order:
// 1. Open the camera (permission prompt)
// 2. Resolve the runtime assets (primary base, then secondary)
// 3. Create the detector (preferred delegate, then the other one)
// The token is checked after each step. A resource that arrives after
// release is closed instead of installed.
func (a *App) run(s *session) {
	if s.token.Cancelled() {
		return
	}
	ctx := s.token.Context()

	a.setStatus(s, StatusRequestingCamera)
	stream, err := s.camera.Open(ctx)
	if s.token.Cancelled() {
		return
	}
	if err != nil {
		a.fail(s, err)
		return
	}

	a.setStatus(s, StatusLoadingModel)
	if a.config.Assets == nil || a.config.Detectors == nil {
		a.fail(s, fmt.Errorf("no inference runtime configured"))
		return
	}
	rt, err := a.config.Assets.Resolve(ctx)
	if s.token.Cancelled() {
		return
	}
	if err != nil {
		a.fail(s, err)
		return
	}

	det, delegate, err := a.config.Detectors.Create(ctx, rt, detector.PreferredDelegate(a.config.Device))
	if s.token.Cancelled() {
		if det != nil {
			det.Close()
		}
		return
	}
	if err != nil {
		a.fail(s, err)
		return
	}
	if !s.install(det) {
		det.Close()
		return
	}

	if !a.markReady(s) {
		return
	}
	log.Printf("gestures: ready (assets %s, delegate %s)", rt.Base, delegate)
	a.record(EventReady, fmt.Sprintf("assets=%s delegate=%s", rt.Base, delegate))
	a.setStatus(s, StatusReady)

	a.runLoop(s, stream)
}

// fail reports a terminal setup error for s and releases what it holds.
func (a *App) fail(s *session, err error) {
	log.Printf("gestures: setup failed: %v", err)
	a.record(EventError, err.Error())
	a.setStatus(s, StatusFor(err))
	s.release()
}

// runLoop processes one frame per tick until the session is released.
func (a *App) runLoop(s *session, stream capture.Stream) {
	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	machine := gesture.NewMachine()
	for {
		select {
		case <-s.token.Done():
			return
		case now := <-ticker.C:
			a.processFrame(s, stream, machine, now)
		}
	}
}

// processFrame runs detection on the latest frame and feeds the result
// through the classifier and the state machine. Handlers are called without
// holding any lock.
func (a *App) processFrame(s *session, stream capture.Stream, machine *gesture.Machine, now time.Time) {
	pv := a.config.Preview

	var update func(*gocv.Mat)
	if pv != nil {
		update = pv.UpdateFrame
	}
	hands, ok := s.detect(stream, update)
	if !ok || s.token.Cancelled() {
		return
	}

	h := a.current()

	if len(hands) == 0 {
		machine.HandLost()
		if pv != nil {
			pv.Clear()
		}
		a.setStatus(s, StatusNoHand)
		if s.token.Cancelled() {
			return
		}
		h.position(gesture.LostPosition)
		return
	}

	hand := hands[0]
	if pv != nil {
		pv.SetHand(hand)
	}

	out := machine.Step(gesture.Classify(&hand), a.CurrentMode(), now)

	// A handler may disable the App, and so may another goroutine. Nothing
	// from this frame is reported once the session is released.
	if s.token.Cancelled() {
		return
	}
	h.position(out.Position)

	if out.Pinched {
		if s.token.Cancelled() {
			return
		}
		a.record(EventPinch, "")
		h.pinched()
	}
	if out.ModeChanged {
		if s.token.Cancelled() {
			return
		}
		a.mode.Store(out.Mode)
		a.record(EventMode, string(out.Mode))
		h.modeChanged(out.Mode)
	}
	a.setStatus(s, frameStatus(out))
}
