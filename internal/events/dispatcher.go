package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// DispatcherConfig controls the concurrency characteristics of the dispatcher.
type DispatcherConfig struct {
	QueueSize int
	Workers   int
}

// MessageHandler processes a single bus message.
type MessageHandler interface {
	Handle(msg *nats.Msg)
}

// Dispatcher moves content messages off the NATS delivery goroutine onto a
// bounded worker pool so slow stores never stall the subscription.
type Dispatcher struct {
	handler MessageHandler
	logger  *slog.Logger

	// sendMu is read-held by every send on jobs and write-held while jobs is
	// closed, so a callback still running after unsubscribe cannot send on a
	// closed channel.
	sendMu sync.RWMutex
	jobs   chan *nats.Msg
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// ErrDispatcherClosed is returned by Enqueue after Shutdown.
var ErrDispatcherClosed = errors.New("event dispatcher closed")

// NewDispatcher starts the worker pool.
func NewDispatcher(handler MessageHandler, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		handler: handler,
		logger:  logger,
		jobs:    make(chan *nats.Msg, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// Subscribe attaches the dispatcher to every content subject.
func (d *Dispatcher) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	return nc.Subscribe(ContentSubjects, d.Receive)
}

// Receive is the NATS callback. It blocks while the queue is full, which
// pushes back on the subscription's pending buffer.
func (d *Dispatcher) Receive(msg *nats.Msg) {
	if err := d.Enqueue(context.Background(), msg); err != nil {
		d.logger.Warn("dropping content event", "subject", msg.Subject, "error", err)
	}
}

// Enqueue schedules msg for processing.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *nats.Msg) error {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrDispatcherClosed
	case d.jobs <- msg:
		return nil
	}
}

// Shutdown stops accepting messages and waits for queued ones to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(func() {
		// Cancel first so senders blocked on a full queue let go of sendMu.
		d.cancel()
		d.sendMu.Lock()
		close(d.jobs)
		d.sendMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for msg := range d.jobs {
		d.handler.Handle(msg)
	}
}
