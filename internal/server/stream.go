package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/treegesture/internal/preview"
)

// streamInterval caps the MJPEG rate at about 15 FPS.
const streamInterval = 66 * time.Millisecond

// StreamHandler serves the preview frames as MJPEG. It never touches the
// camera; frames are encoded by the session only while someone is watching.
type StreamHandler struct {
	preview  *preview.Preview
	interval time.Duration
}

// NewStreamHandler creates a new StreamHandler for p.
func NewStreamHandler(p *preview.Preview) *StreamHandler {
	return &StreamHandler{preview: p, interval: streamInterval}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	unwatch := h.preview.Watch()
	defer unwatch()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	ctx := r.Context()
	var seq uint64
	for {
		frame, next, err := h.preview.Next(ctx, seq)
		if err != nil {
			return
		}
		seq = next

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.interval):
		}
	}
}
