package capture

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockStream produces blank frames and records its lifecycle for tests.
type MockStream struct {
	mu      sync.Mutex
	playErr error
	plays   int
	stops   int
	reads   int
}

// NewMockStream returns a stream whose Play fails with playErr (nil for success).
func NewMockStream(playErr error) *MockStream {
	return &MockStream{playErr: playErr}
}

func (s *MockStream) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stops > 0 {
		return nil, ErrCameraNotOpen
	}
	s.reads++
	mat := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	return &mat, nil
}

func (s *MockStream) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	return s.playErr
}

func (s *MockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

// Active is true until the first Stop.
func (s *MockStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops == 0
}

// Stops returns how many times Stop was called.
func (s *MockStream) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Plays returns how many times Play was called.
func (s *MockStream) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

// Reads returns how many frames were handed out.
func (s *MockStream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// MockCamera is a camera API for tests. Every successful Open hands out a
// new MockStream.
type MockCamera struct {
	mu      sync.Mutex
	err     error
	playErr error
	gate    chan struct{}
	waiting chan struct{}
	streams []*MockStream
}

// NewMockCamera returns a camera that grants access immediately.
func NewMockCamera() *MockCamera {
	return &MockCamera{}
}

// SetError makes Open fail with err.
func (c *MockCamera) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// SetPlayError makes the streams' Play fail with err.
func (c *MockCamera) SetPlayError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playErr = err
}

// Hold makes Open block until Grant is called, like a permission prompt that
// ignores cancellation. The returned channel is closed once Open is waiting.
func (c *MockCamera) Hold() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
	c.waiting = make(chan struct{})
	return c.waiting
}

// Grant releases a held Open.
func (c *MockCamera) Grant() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil {
		close(c.gate)
		c.gate = nil
	}
}

// Open implements OpenFunc.
func (c *MockCamera) Open(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	gate, waiting := c.gate, c.waiting
	c.waiting = nil
	c.mu.Unlock()

	if waiting != nil {
		close(waiting)
	}
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := NewMockStream(c.playErr)
	c.streams = append(c.streams, s)
	return s, nil
}

// Streams returns every stream handed out so far.
func (c *MockCamera) Streams() []*MockStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MockStream(nil), c.streams...)
}

// ActiveStreams counts streams that were never stopped.
func (c *MockCamera) ActiveStreams() int {
	n := 0
	for _, s := range c.Streams() {
		if s.Active() {
			n++
		}
	}
	return n
}
