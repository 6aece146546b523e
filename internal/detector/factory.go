package detector

import (
	"context"
	"time"

	"github.com/ayusman/treegesture/internal/assets"
	"github.com/ayusman/treegesture/internal/chain"
)

// CreateTimeout bounds each detector construction attempt.
const CreateTimeout = 18 * time.Second

// NewFunc constructs a detector for the given configuration.
type NewFunc func(ctx context.Context, cfg Config) (Detector, error)

// Factory builds detectors, falling back to the opposite delegate once.
type Factory struct {
	// New constructs one detector. Defaults to the MediaPipe service.
	New NewFunc
	// Timeout bounds each attempt. Defaults to CreateTimeout.
	Timeout time.Duration
	// Base supplies thresholds; paths and delegate are filled per attempt.
	Base Config
}

// NewFactory returns a Factory backed by the MediaPipe service.
func NewFactory() *Factory {
	return &Factory{
		New: func(ctx context.Context, cfg Config) (Detector, error) {
			return NewMediaPipeDetector(ctx, cfg)
		},
		Timeout: CreateTimeout,
		Base:    DefaultConfig(),
	}
}

// Create builds a detector for rt, trying preferred first and then its opposite.
// It returns the delegate that succeeded. A detector that finishes starting after
// its attempt timed out is closed.
func (f *Factory) Create(ctx context.Context, rt assets.Runtime, preferred Delegate) (Detector, Delegate, error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = CreateTimeout
	}

	order := []Delegate{preferred, preferred.Opposite()}
	attempts := make([]chain.Attempt[Detector], len(order))
	for i, delegate := range order {
		cfg := f.Base
		cfg.ScriptPath = rt.ScriptPath
		cfg.ModelPath = rt.ModelPath
		cfg.Delegate = delegate

		attempts[i] = chain.Attempt[Detector]{
			Name:    "create " + string(delegate),
			Timeout: timeout,
			Run: func(ctx context.Context) (Detector, error) {
				return f.New(ctx, cfg)
			},
		}
	}

	res, err := chain.Run(ctx, attempts, func(late Detector) {
		if late != nil {
			late.Close()
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		return nil, "", &DetectorCreationError{Tried: order, Err: err}
	}

	return res.Value, order[res.Index], nil
}
