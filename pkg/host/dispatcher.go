// Package host runs registered selectors on a pool of workers, one call per
// worker at a time, the way the query engine drives them.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/illmade-knight/go-inclusionfilter/pkg/resultset"
	"github.com/illmade-knight/go-inclusionfilter/pkg/selector"
	"github.com/illmade-knight/go-inclusionfilter/pkg/types"
	"github.com/rs/zerolog"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("dispatcher is stopped")

// Lookup resolves a registered function by name.
type Lookup interface {
	Lookup(name string) (selector.Func, bool)
}

// Call is one invocation of a registered function. Done receives exactly one
// result and should be buffered.
type Call struct {
	Name      string
	Args      selector.Args
	ResultSet resultset.ResultSet
	Done      chan error
}

// Config holds configuration for a Dispatcher.
type Config struct {
	NumWorkers int
	QueueSize  int
}

// Dispatcher consumes calls from a queue and runs them on NumWorkers goroutines.
type Dispatcher struct {
	numWorkers int
	registry   Lookup
	logger     zerolog.Logger
	calls      chan Call
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	runCtx  context.Context
	runStop context.CancelFunc
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg Config, registry Lookup, logger zerolog.Logger) (*Dispatcher, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 5 // Default to a reasonable number of workers.
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	return &Dispatcher{
		numWorkers: cfg.NumWorkers,
		registry:   registry,
		logger:     logger.With().Str("service", "Dispatcher").Logger(),
		calls:      make(chan Call, cfg.QueueSize),
	}, nil
}

// Start spawns the worker pool. Workers stop when ctx is cancelled or Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if d.runCtx != nil {
		return fmt.Errorf("dispatcher already started")
	}
	d.runCtx, d.runStop = context.WithCancel(ctx)

	d.logger.Info().Int("worker_count", d.numWorkers).Msg("Starting dispatcher workers...")
	d.wg.Add(d.numWorkers)
	for i := 0; i < d.numWorkers; i++ {
		go d.worker(d.runCtx, i)
	}
	return nil
}

// Submit queues a call. It blocks until a worker accepts the call, ctx ends,
// or the dispatcher stops.
func (d *Dispatcher) Submit(ctx context.Context, call Call) error {
	if call.Done == nil {
		return fmt.Errorf("call must carry a done channel: %w", types.ErrInvalidArgument)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped || d.runCtx == nil {
		return ErrStopped
	}
	select {
	case d.calls <- call:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.runCtx.Done():
		return ErrStopped
	}
}

// Invoke submits a call and waits for its result.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args selector.Args, rs resultset.ResultSet) error {
	done := make(chan error, 1)
	if err := d.Submit(ctx, Call{Name: name, Args: args, ResultSet: rs, Done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new calls, lets the workers drain what is queued and waits for
// them, respecting the provided context's deadline.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.logger.Info().Msg("Stopping dispatcher...")
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.calls)
	runStop := d.runStop
	d.mu.Unlock()

	workerDone := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(workerDone)
	}()

	select {
	case <-workerDone:
		d.logger.Info().Msg("All dispatcher workers completed gracefully.")
	case <-ctx.Done():
		d.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for dispatcher workers to finish.")
		if runStop != nil {
			runStop()
		}
		return ctx.Err()
	}
	if runStop != nil {
		runStop()
	}
	d.logger.Info().Msg("Dispatcher stopped.")
	return nil
}

// worker is the main loop for each concurrent worker. Once ctx is cancelled it
// stops running calls and fails whatever is still queued, until Stop closes
// the queue, so every submitted call gets exactly one result.
func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	defer d.wg.Done()
	d.logger.Debug().Int("worker_id", workerID).Msg("Dispatcher worker started.")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Int("worker_id", workerID).Msg("Dispatcher worker shutting down due to context cancellation.")
			d.drain(ctx, workerID)
			return
		case call, ok := <-d.calls:
			if !ok {
				d.logger.Debug().Int("worker_id", workerID).Msg("Call queue closed, worker exiting.")
				return
			}
			if ctx.Err() != nil {
				d.reject(ctx, call)
				continue
			}
			d.process(ctx, call, workerID)
		}
	}
}

// drain fails queued calls until the queue is closed.
func (d *Dispatcher) drain(ctx context.Context, workerID int) {
	rejected := 0
	for call := range d.calls {
		d.reject(ctx, call)
		rejected++
	}
	if rejected > 0 {
		d.logger.Warn().Int("worker_id", workerID).Int("rejected", rejected).Msg("Rejected queued calls after cancellation.")
	}
}

func (d *Dispatcher) reject(ctx context.Context, call Call) {
	call.Done <- fmt.Errorf("call to %s not run: %w: %w", call.Name, ErrStopped, context.Cause(ctx))
}

// process runs a single call and reports its result.
func (d *Dispatcher) process(ctx context.Context, call Call, workerID int) {
	fn, ok := d.registry.Lookup(call.Name)
	if !ok {
		call.Done <- fmt.Errorf("unknown function <%s>: %w", call.Name, types.ErrInvalidArgument)
		return
	}
	err := fn(ctx, call.Args, call.ResultSet)
	if err != nil {
		d.logger.Debug().Err(err).Int("worker_id", workerID).Str("function", call.Name).Msg("Call failed.")
	}
	call.Done <- err
}
