// Package chain evaluates ordered fallback attempts, each bounded by its own timeout.
//
// A fallback policy is expressed as data: a slice of Attempt values tried in order
// until one succeeds. Run reports which attempt won, or ErrExhausted with the
// error of every attempt.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// ErrExhausted is returned by Run when every attempt failed.
var ErrExhausted = errors.New("all attempts failed")

// TimeoutError reports that an attempt did not settle before its deadline.
type TimeoutError struct {
	Label   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout after %s", e.Label, e.Timeout)
}

// Attempt is one provider in a fallback chain.
type Attempt[T any] struct {
	// Name labels the attempt in logs and timeout errors.
	Name string
	// Timeout bounds Run. Zero means no bound.
	Timeout time.Duration
	// Run performs the attempt. It should honour ctx, but is not required to.
	Run func(ctx context.Context) (T, error)
}

// Result describes the outcome of Run.
type Result[T any] struct {
	Value T
	// Index is the position of the winning attempt, or -1 when exhausted.
	Index int
	// Errs holds the error of every attempt that failed, in order.
	Errs []error
}

// Fallback reports whether a later attempt won.
func (r Result[T]) Fallback() bool {
	return r.Index > 0
}

// Run tries each attempt in order and returns the first success.
//
// A value produced by an attempt after its timeout fired is passed to discard
// (when non-nil) so the caller can release it. If ctx is cancelled, Run stops
// without trying further attempts and returns ctx.Err().
func Run[T any](ctx context.Context, attempts []Attempt[T], discard func(T)) (Result[T], error) {
	res := Result[T]{Index: -1}

	for i, a := range attempts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		v, err := WithTimeout(ctx, a.Name, a.Timeout, a.Run, discard)
		if err == nil {
			res.Value = v
			res.Index = i
			return res, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}

		res.Errs = append(res.Errs, err)
		if i < len(attempts)-1 {
			log.Printf("chain: %s failed (%v), trying %s", a.Name, err, attempts[i+1].Name)
		}
	}

	return res, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(res.Errs...))
}

// WithTimeout races fn against a timer. The timer is always stopped before
// returning. If the timer or ctx wins, fn keeps running in the background and
// any value it later produces without error is handed to discard.
func WithTimeout[T any](ctx context.Context, label string, d time.Duration, fn func(context.Context) (T, error), discard func(T)) (T, error) {
	var zero T

	if d <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := fn(attemptCtx)
		done <- outcome{v: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	abandon := func() {
		go func() {
			o := <-done
			if o.err == nil && discard != nil {
				discard(o.v)
			}
		}()
	}

	select {
	case o := <-done:
		return o.v, o.err
	case <-timer.C:
		abandon()
		return zero, &TimeoutError{Label: label, Timeout: d}
	case <-ctx.Done():
		abandon()
		return zero, ctx.Err()
	}
}

// IsTimeout reports whether err wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
