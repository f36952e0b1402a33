// Package batch groups items and hands them to a processor in bulk, when a
// size threshold is reached or on a fixed interval.
package batch

import (
	"context"
	"sync"
	"time"
)

// Processor handles one batch of items
type Processor[T any] interface {
	ProcessBatch(ctx context.Context, items []T) error
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc[T any] func(ctx context.Context, items []T) error

func (f ProcessorFunc[T]) ProcessBatch(ctx context.Context, items []T) error {
	return f(ctx, items)
}

// ErrorHandler is called when a background flush fails
type ErrorHandler func(err error, items int)

// Batcher collects items and flushes them through a Processor
type Batcher[T any] struct {
	batchSize     int
	batchInterval time.Duration
	processor     Processor[T]
	onError       ErrorHandler

	mu      sync.Mutex
	pending []T

	flushChan chan struct{}
	stopChan  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a batcher and starts its background loop
func New[T any](batchSize int, batchInterval time.Duration, processor Processor[T], onError ErrorHandler) *Batcher[T] {
	if batchSize <= 0 {
		batchSize = 1
	}
	if onError == nil {
		onError = func(error, int) {}
	}
	b := &Batcher[T]{
		batchSize:     batchSize,
		batchInterval: batchInterval,
		processor:     processor,
		onError:       onError,
		pending:       make([]T, 0, batchSize),
		flushChan:     make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}

	go b.run()

	return b
}

// Add queues an item. Reaching the batch size schedules a flush.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	b.pending = append(b.pending, item)
	shouldFlush := len(b.pending) >= b.batchSize
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.flushChan <- struct{}{}:
		default:
		}
	}
}

// Flush immediately processes all pending items
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	items := b.pending
	b.pending = make([]T, 0, b.batchSize)
	b.mu.Unlock()

	return b.processor.ProcessBatch(ctx, items)
}

func (b *Batcher[T]) flushInBackground() {
	n := b.Pending()
	if err := b.Flush(context.Background()); err != nil {
		b.onError(err, n)
	}
}

func (b *Batcher[T]) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flushInBackground()
		case <-b.flushChan:
			b.flushInBackground()
		case <-b.stopChan:
			return
		}
	}
}

// Stop ends the background loop and flushes what is left with ctx
func (b *Batcher[T]) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
		err = b.Flush(ctx)
	})
	return err
}

// Pending returns the number of queued items
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
