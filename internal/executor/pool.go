// Package executor provides a keyed worker pool for running message handlers.
//
// Tasks submitted with the same key always run on the same worker, so messages
// for one subject are handled in arrival order while different subjects run in
// parallel.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/xxh3"
)

// Default pool parameters.
const (
	DefaultPoolSize     = 4
	DefaultQueueSize    = 256
	DefaultNamingPrefix = "jetpush-dispatch"
)

// ErrPoolClosed is returned when a task is submitted after Shutdown.
var ErrPoolClosed = errors.New("executor pool is closed")

// Executor runs tasks. Tasks sharing a key may be serialized by the implementation.
type Executor interface {
	Execute(key string, task func()) error
}

// Config configures a Pool.
type Config struct {
	// PoolSize is the number of workers. Zero selects DefaultPoolSize.
	PoolSize int
	// QueueSize bounds each worker's backlog. Zero selects DefaultQueueSize.
	QueueSize int
	// NamingPrefix names workers as "<prefix>-<index>".
	NamingPrefix string
	// PanicHandler is called with the worker name and recovered value when a task panics.
	PanicHandler func(worker string, recovered any)
}

// Pool is a fixed set of workers, each draining its own bounded queue.
type Pool struct {
	workers []*worker
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type worker struct {
	name  string
	tasks chan func()
}

// NewPool starts a pool with the given configuration.
//
// Parameters:
//   - cfg: Pool configuration; zero fields take defaults
//
// Returns:
//   - *Pool: Running pool, ready for Execute
//   - error: Invalid configuration
func NewPool(cfg Config) (*Pool, error) {
	if cfg.PoolSize < 0 {
		return nil, fmt.Errorf("executor pool size must not be negative, got %d", cfg.PoolSize)
	}
	if cfg.QueueSize < 0 {
		return nil, fmt.Errorf("executor queue size must not be negative, got %d", cfg.QueueSize)
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.NamingPrefix == "" {
		cfg.NamingPrefix = DefaultNamingPrefix
	}

	p := &Pool{workers: make([]*worker, cfg.PoolSize)}
	for i := range p.workers {
		w := &worker{
			name:  fmt.Sprintf("%s-%d", cfg.NamingPrefix, i),
			tasks: make(chan func(), cfg.QueueSize),
		}
		p.workers[i] = w
		p.wg.Add(1)
		go p.run(w, cfg.PanicHandler)
	}

	return p, nil
}

func (p *Pool) run(w *worker, onPanic func(string, any)) {
	defer p.wg.Done()
	for task := range w.tasks {
		runTask(w.name, task, onPanic)
	}
}

func runTask(name string, task func(), onPanic func(string, any)) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(name, r)
		}
	}()
	task()
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// WorkerName returns the name of the worker that runs tasks for key.
func (p *Pool) WorkerName(key string) string {
	return p.pick(key).name
}

func (p *Pool) pick(key string) *worker {
	idx := xxh3.HashString(key) % uint64(len(p.workers))
	return p.workers[idx]
}

// Execute queues task on the worker owning key. It blocks while that worker's
// queue is full.
//
// Returns:
//   - error: ErrPoolClosed after Shutdown
func (p *Pool) Execute(key string, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.pick(key).tasks <- task

	return nil
}

// Shutdown stops accepting tasks and waits for queued tasks to finish.
//
// Parameters:
//   - ctx: Bounds the wait; queued tasks keep running in the background if it expires
//
// Returns:
//   - error: ctx.Err() if the wait was cut short
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, w := range p.workers {
			close(w.tasks)
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
