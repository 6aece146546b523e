// Package preview keeps the latest camera frame and hand landmarks for
// optional display. Nothing in it influences gesture decisions.
package preview

import (
	"bytes"
	"context"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/treegesture/internal/detector"
)

// Preview is the shared video/overlay surface. The frame loop writes it; HTTP
// viewers read copies.
type Preview struct {
	mu       sync.Mutex
	jpeg     []byte
	seq      uint64
	hand     *detector.HandLandmarks
	watchers int
	notify   chan struct{}
}

// New returns an empty Preview.
func New() *Preview {
	return &Preview{notify: make(chan struct{})}
}

// Watch registers a viewer. Frames are only encoded while at least one
// viewer is registered. Call the returned func to unregister.
func (p *Preview) Watch() func() {
	p.mu.Lock()
	p.watchers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.watchers--
			p.mu.Unlock()
		})
	}
}

// Watching reports whether any viewer is registered.
func (p *Preview) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchers > 0
}

// UpdateFrame encodes frame as JPEG when someone is watching.
func (p *Preview) UpdateFrame(frame *gocv.Mat) {
	if frame == nil || frame.Empty() || !p.Watching() {
		return
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return
	}
	data := bytes.Clone(buf.GetBytes())
	buf.Close()

	p.SetJPEG(data)
}

// SetJPEG stores an already encoded frame and wakes waiting viewers.
func (p *Preview) SetJPEG(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.jpeg = data
	p.seq++
	close(p.notify)
	p.notify = make(chan struct{})
}

// SetHand stores a copy of the landmarks for the overlay.
func (p *Preview) SetHand(hand detector.HandLandmarks) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hand = &hand
}

// Clear removes the overlay landmarks.
func (p *Preview) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hand = nil
}

// Reset removes both the overlay and the last frame.
func (p *Preview) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hand = nil
	p.jpeg = nil
}

// Hand returns a copy of the overlay landmarks.
func (p *Preview) Hand() (detector.HandLandmarks, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hand == nil {
		return detector.HandLandmarks{}, false
	}
	return *p.hand, true
}

// Frame returns the latest JPEG and its sequence number.
func (p *Preview) Frame() ([]byte, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jpeg, p.seq
}

// Next blocks until a frame newer than after is available.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		if p.seq > after && p.jpeg != nil {
			data, seq := p.jpeg, p.seq
			p.mu.Unlock()
			return data, seq, nil
		}
		ch := p.notify
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, after, ctx.Err()
		}
	}
}
