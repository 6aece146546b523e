package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/treegesture/internal/detector"
)

const epsilon = 1e-9

func TestPalmCenter(t *testing.T) {
	hand := detector.OpenPalmLandmarks()

	got := PalmCenter(&hand)

	if math.Abs(got.X-0.48) > epsilon || math.Abs(got.Y-0.704) > epsilon {
		t.Errorf("PalmCenter() = %+v, want (0.48, 0.704)", got)
	}
}

func TestPalmCenter_IgnoresFingertips(t *testing.T) {
	a := detector.OpenPalmLandmarks()
	b := detector.OpenPalmLandmarks()
	b.Points[detector.IndexTip] = detector.Point3D{X: 0.99, Y: 0.01}
	b.Points[detector.ThumbTip] = detector.Point3D{X: 0.01, Y: 0.99}

	if PalmCenter(&a) != PalmCenter(&b) {
		t.Error("palm center should only depend on the wrist and knuckles")
	}
}

func TestPinchRatio(t *testing.T) {
	t.Run("open palm is released", func(t *testing.T) {
		hand := detector.OpenPalmLandmarks()
		if r := PinchRatio(&hand); r <= PinchRatioOff {
			t.Errorf("PinchRatio() = %f, want > %f", r, PinchRatioOff)
		}
	})

	t.Run("pinch is below the on threshold", func(t *testing.T) {
		hand := detector.PinchLandmarks()
		if r := PinchRatio(&hand); r >= PinchRatioOn {
			t.Errorf("PinchRatio() = %f, want < %f", r, PinchRatioOn)
		}
	})

	t.Run("scale invariant", func(t *testing.T) {
		hand := detector.OpenPalmLandmarks()
		scaled := hand
		for i := range scaled.Points {
			scaled.Points[i].X *= 0.5
			scaled.Points[i].Y *= 0.5
		}
		if math.Abs(PinchRatio(&hand)-PinchRatio(&scaled)) > 1e-6 {
			t.Errorf("ratio changed with scale: %f vs %f", PinchRatio(&hand), PinchRatio(&scaled))
		}
	})

	t.Run("degenerate palm width does not divide by zero", func(t *testing.T) {
		var hand detector.HandLandmarks
		hand.Points[detector.ThumbTip] = detector.Point3D{X: 0.1}
		r := PinchRatio(&hand)
		if math.IsInf(r, 0) || math.IsNaN(r) {
			t.Errorf("PinchRatio() = %f, want finite", r)
		}
	})
}

func TestExtendedFingers(t *testing.T) {
	tests := []struct {
		name string
		hand detector.HandLandmarks
		want int
	}{
		{"open palm", detector.OpenPalmLandmarks(), 5},
		{"pinch keeps fingers extended", detector.PinchLandmarks(), 5},
		{"fist", detector.FistLandmarks(), 0},
		{"thumbs up", detector.ThumbsUpLandmarks(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtendedFingers(&tt.hand); got != tt.want {
				t.Errorf("ExtendedFingers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	hand := detector.OpenPalmLandmarks()

	c := Classify(&hand)

	if c.Extended != 5 {
		t.Errorf("Extended = %d, want 5", c.Extended)
	}
	if c.PalmCenter != PalmCenter(&hand) {
		t.Errorf("PalmCenter = %+v", c.PalmCenter)
	}
	if c.PinchRatio != PinchRatio(&hand) {
		t.Errorf("PinchRatio = %f", c.PinchRatio)
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := ParseMode("open"); !ok || m != ModeOpen {
		t.Errorf("ParseMode(open) = %q, %v", m, ok)
	}
	if m, ok := ParseMode("closed"); !ok || m != ModeClosed {
		t.Errorf("ParseMode(closed) = %q, %v", m, ok)
	}
	if _, ok := ParseMode("chaos"); ok {
		t.Error("ParseMode(chaos) should fail")
	}
}
