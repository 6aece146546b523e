package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/treegesture/internal/app"
	"github.com/ayusman/treegesture/internal/gesture"
	"github.com/ayusman/treegesture/internal/store"
)

// queueSize bounds the signals waiting for the worker. Signals beyond it are
// dropped.
const queueSize = 16

// BindingSource looks up the binding of a signal.
type BindingSource interface {
	GetBySignal(signal string) (*store.Binding, error)
}

// Runner executes one plugin request.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Result describes one dispatched signal.
type Result struct {
	Signal   string
	Binding  *store.Binding
	Response *Response
	Err      error
}

// Dispatcher runs the plugin bound to each signal on a single worker, so
// actions execute in the order the signals arrived without blocking the
// caller.
type Dispatcher struct {
	bindings BindingSource
	plugins  *Manager
	runner   Runner

	// OnResult, if set before the first Handle, observes every dispatch.
	OnResult func(Result)

	queue     chan string
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher starts a dispatcher.
func NewDispatcher(bindings BindingSource, plugins *Manager, runner Runner) *Dispatcher {
	d := &Dispatcher{
		bindings: bindings,
		plugins:  plugins,
		runner:   runner,
		queue:    make(chan string, queueSize),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.work()
	return d
}

// Handle queues signal for dispatch. It never blocks; it returns false if the
// signal was dropped.
func (d *Dispatcher) Handle(signal string) bool {
	select {
	case <-d.done:
		return false
	default:
	}

	select {
	case d.queue <- signal:
		return true
	default:
		log.Printf("plugin: queue full, dropping %s", signal)
		return false
	}
}

// Handlers returns session handlers that dispatch pinch and mode signals.
func (d *Dispatcher) Handlers() app.Handlers {
	return app.Handlers{
		OnPinch:      func() { d.Handle(SignalPinch) },
		OnModeChange: func(m gesture.Mode) { d.Handle(ModeSignal(m)) },
	}
}

// Close stops the worker after the current dispatch. Queued signals are dropped.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-d.done
		cancel()
	}()

	for {
		select {
		case <-d.done:
			return
		case signal := <-d.queue:
			res := d.dispatch(ctx, signal)
			if res.Err != nil {
				log.Printf("plugin: %s: %v", signal, res.Err)
			}
			if d.OnResult != nil {
				d.OnResult(res)
			}
		}
	}
}

// dispatch runs the binding for signal. An unbound or disabled signal yields
// a Result with neither Response nor Err.
func (d *Dispatcher) dispatch(ctx context.Context, signal string) Result {
	res := Result{Signal: signal}

	b, err := d.bindings.GetBySignal(signal)
	if err != nil {
		res.Err = fmt.Errorf("lookup binding: %w", err)
		return res
	}
	if b == nil || !b.Enabled {
		return res
	}
	res.Binding = b

	p, err := d.plugins.Lookup(b.PluginName, b.ActionName)
	if err != nil {
		res.Err = err
		return res
	}

	params := b.Config
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	res.Response, res.Err = d.runner.Execute(ctx, p, &Request{
		Action: b.ActionName,
		Signal: signal,
		Config: json.RawMessage("{}"),
		Params: params,
	})
	if res.Err == nil && !res.Response.Success {
		res.Err = fmt.Errorf("%s/%s: %s", b.PluginName, b.ActionName, res.Response.Error)
	}
	return res
}
