// Package capture provides camera capture functionality using GoCV (OpenCV).
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings. A low resolution keeps landmark inference cheap.
const (
	DefaultWidth  = 320
	DefaultHeight = 240
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device has not produced a frame yet.
	ErrNoFrame = errors.New("no frame available")
	// ErrSessionClosed is returned by Open when Close won the race.
	ErrSessionClosed = errors.New("camera session closed")
)

// Stream is an open video source.
type Stream interface {
	// ReadFrame returns the next frame. The caller closes the Mat.
	ReadFrame() (*gocv.Mat, error)
	// Play starts delivering frames.
	Play() error
	// Stop releases the device.
	Stop() error
}

// OpenFunc requests a stream from the camera API.
type OpenFunc func(ctx context.Context) (Stream, error)

// camera manages video capture from a camera device using GoCV.
type camera struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
}

// OpenCamera opens the given device at 320x240. It implements OpenFunc for a
// fixed device id.
func OpenCamera(deviceID int) OpenFunc {
	return func(ctx context.Context) (Stream, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		capture, err := gocv.OpenVideoCapture(deviceID)
		if err != nil {
			return nil, err
		}
		if !capture.IsOpened() {
			capture.Close()
			return nil, fmt.Errorf("error opening device: %d", deviceID)
		}

		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)

		return &camera{deviceID: deviceID, capture: capture}, nil
	}
}

// Play reads a first frame to start the device.
func (c *camera) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return ErrCameraNotOpen
	}
	c.running = true

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		return fmt.Errorf("device %d did not deliver a first frame", c.deviceID)
	}
	return nil
}

// Stop closes the device. Calling it more than once is a no-op.
func (c *camera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	c.running = false
	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *camera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrNoFrame
	}
	return &mat, nil
}

// Session owns at most one stream from acquisition to release.
type Session struct {
	open   OpenFunc
	secure bool

	mu     sync.Mutex
	stream Stream
	closed bool
}

// NewSession returns a Session. A nil open means no camera API is present;
// secure reports whether the feed may be opened from this context.
func NewSession(open OpenFunc, secure bool) *Session {
	return &Session{open: open, secure: secure}
}

// Open checks the preconditions, requests the stream and starts playback.
// Open failures are returned as one of the camera error types. If Close is
// called while the request is pending, the late stream is stopped and
// ErrSessionClosed is returned.
func (s *Session) Open(ctx context.Context) (Stream, error) {
	if !s.secure {
		return nil, &InsecureContextError{}
	}
	if s.open == nil {
		return nil, &CameraUnavailableError{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.stream != nil {
		stream := s.stream
		s.mu.Unlock()
		return stream, nil
	}
	s.mu.Unlock()

	stream, err := s.open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ClassifyOpenError(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err := stream.Stop(); err != nil {
			log.Printf("capture: stop late stream: %v", err)
		}
		return nil, ErrSessionClosed
	}
	s.stream = stream
	s.mu.Unlock()

	if err := stream.Play(); err != nil {
		log.Printf("capture: playback did not start (%v), continuing", err)
	}
	return stream, nil
}

// Close stops the stream if one was installed. It is safe to call before
// Open completes and more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.stream == nil {
		return
	}
	if err := s.stream.Stop(); err != nil {
		log.Printf("capture: stop stream: %v", err)
	}
	s.stream = nil
}
