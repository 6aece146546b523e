package preview

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/treegesture/internal/detector"
)

func TestPreview_Hand(t *testing.T) {
	p := New()

	if _, ok := p.Hand(); ok {
		t.Fatal("new preview should have no hand")
	}

	hand := detector.OpenPalmLandmarks()
	p.SetHand(hand)
	hand.Points[detector.Wrist].X = 0

	got, ok := p.Hand()
	if !ok {
		t.Fatal("Hand() should be set")
	}
	if got.Points[detector.Wrist].X != 0.5 {
		t.Error("preview should keep its own copy of the landmarks")
	}

	p.Clear()
	if _, ok := p.Hand(); ok {
		t.Error("Clear() should remove the hand")
	}
}

func TestPreview_Next(t *testing.T) {
	p := New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.SetJPEG([]byte("one"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	data, seq, err := p.Next(ctx, 0)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if string(data) != "one" || seq != 1 {
		t.Errorf("Next() = (%q, %d), want (one, 1)", data, seq)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, _, err := p.Next(short, seq); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() with no new frame error = %v, want deadline", err)
	}
}

func TestPreview_Reset(t *testing.T) {
	p := New()
	p.SetJPEG([]byte("frame"))
	p.SetHand(detector.FistLandmarks())

	p.Reset()

	if data, _ := p.Frame(); data != nil {
		t.Error("Reset() should drop the frame")
	}
	if _, ok := p.Hand(); ok {
		t.Error("Reset() should drop the hand")
	}
}

func TestPreview_UpdateFrameOnlyWhenWatched(t *testing.T) {
	p := New()
	mat := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer mat.Close()

	p.UpdateFrame(&mat)
	if _, seq := p.Frame(); seq != 0 {
		t.Fatal("frame encoded without viewers")
	}

	stop := p.Watch()
	p.UpdateFrame(&mat)
	data, seq := p.Frame()
	if seq != 1 || len(data) == 0 {
		t.Errorf("Frame() = (%d bytes, %d), want an encoded frame", len(data), seq)
	}

	stop()
	stop()
	if p.Watching() {
		t.Error("Watching() should be false after unregistering")
	}
}
