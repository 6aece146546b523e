package app

import (
	"context"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/treegesture/internal/capture"
	"github.com/ayusman/treegesture/internal/detector"
)

// Token is the cancellation token of one setup sequence.
type Token struct {
	ctx context.Context
}

// Context returns the context passed to blocking setup calls.
func (t Token) Context() context.Context { return t.ctx }

// Done is closed when the session is torn down.
func (t Token) Done() <-chan struct{} { return t.ctx.Done() }

// Cancelled reports whether the session was torn down.
func (t Token) Cancelled() bool { return t.ctx.Err() != nil }

// session owns the resources of one enable cycle.
type session struct {
	token  Token
	cancel context.CancelFunc
	camera *capture.Session

	once sync.Once
	// mu serialises frame reads with release. Detection runs outside it so
	// that release can close a detector that stopped answering.
	mu       sync.Mutex
	released bool
	det      detector.Detector
	// detecting counts Detect calls in flight. Add happens under mu while
	// not released, so release may Wait on it.
	detecting sync.WaitGroup
}

func newSession(open capture.OpenFunc, secure bool) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		token:  Token{ctx: ctx},
		cancel: cancel,
		camera: capture.NewSession(open, secure),
	}
}

// install hands det to the session. It returns false if the session was
// released first; the caller then owns det.
func (s *session) install(det detector.Detector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || s.token.Cancelled() {
		return false
	}
	s.det = det
	return true
}

// release cancels the token and frees the stream and the detector. Only the
// first call has an effect. A Detect call in flight is interrupted by the
// detector's Close and has returned by the time release does. release must
// not be called from inside detect.
func (s *session) release() {
	s.once.Do(func() {
		s.cancel()

		s.mu.Lock()
		s.released = true
		s.camera.Close()
		det := s.det
		s.det = nil
		s.mu.Unlock()

		if det != nil {
			if err := det.Close(); err != nil {
				log.Printf("gestures: close detector: %v", err)
			}
		}
		s.detecting.Wait()
	})
}

// detect reads one frame and runs the detector on it. ok is false when there
// was nothing to process.
func (s *session) detect(stream capture.Stream, update func(*gocv.Mat)) (hands []detector.HandLandmarks, ok bool) {
	s.mu.Lock()
	if s.released || s.det == nil {
		s.mu.Unlock()
		return nil, false
	}
	det := s.det

	frame, err := stream.ReadFrame()
	if err != nil {
		s.mu.Unlock()
		return nil, false
	}
	if update != nil {
		update(frame)
	}
	s.detecting.Add(1)
	s.mu.Unlock()
	defer frame.Close()

	hands, err = det.Detect(frame)
	s.detecting.Done()
	if err != nil {
		if !s.token.Cancelled() {
			log.Printf("gestures: detect: %v", err)
		}
		return nil, false
	}
	return hands, true
}
