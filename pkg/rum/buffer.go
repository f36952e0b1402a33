// Package rum buffers real-user-monitoring records per page view and ships
// them to the ingestion endpoint in batches.
package rum

import (
	"context"
	"sync"
	"time"

	format "finsite/pkg/formats/rum"
	"finsite/pkg/vitals"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 30 * time.Second
)

// Handle addresses one page-view record in a Buffer.
type Handle uint64

// Transport delivers batches to the server. Send is used for size and timer
// flushes; Beacon is fire-and-forget and used when the page is going away.
type Transport interface {
	Send(ctx context.Context, batch format.Batch) error
	Beacon(batch format.Batch) bool
}

// PageView describes a navigation that starts a new record.
type PageView struct {
	URL        string
	UserAgent  string
	Viewport   format.Viewport
	Connection *format.Connection
}

// Options configures a Buffer.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	SessionID     string
	Transport     Transport
	Logger        *zap.Logger
	Now           func() time.Time
}

type entry struct {
	data     *format.Data
	requeued bool
}

// Buffer accumulates page-view records and flushes them when the batch size is
// reached, when the flush interval elapses, or when the page is hidden.
type Buffer struct {
	batchSize     int
	flushInterval time.Duration
	sessionID     string
	transport     Transport
	logger        *zap.Logger
	now           func() time.Time

	mu      sync.Mutex
	entries map[Handle]*entry
	order   []Handle
	next    Handle

	flushChan chan struct{}
	stopChan  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a buffer and starts its flush loop.
func New(opts Options) *Buffer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	b := &Buffer{
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		sessionID:     opts.SessionID,
		transport:     opts.Transport,
		logger:        opts.Logger.With(zap.String("component", "rum_buffer")),
		now:           opts.Now,
		entries:       make(map[Handle]*entry),
		flushChan:     make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}

	go b.run()

	return b
}

// SessionID returns the id stamped on every record of this buffer.
func (b *Buffer) SessionID() string {
	return b.sessionID
}

// StartView creates the record for a new page view and returns its handle.
func (b *Buffer) StartView(pv PageView) Handle {
	b.mu.Lock()
	b.next++
	h := b.next
	b.entries[h] = &entry{data: &format.Data{
		SessionID:  b.sessionID,
		Timestamp:  b.nowMillis(),
		URL:        pv.URL,
		UserAgent:  pv.UserAgent,
		Viewport:   pv.Viewport,
		Connection: pv.Connection,
	}}
	b.order = append(b.order, h)
	shouldFlush := len(b.order) >= b.batchSize
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.flushChan <- struct{}{}:
		default:
		}
	}

	return h
}

// update applies fn to the record behind h. It reports false when the record
// has already been flushed.
func (b *Buffer) update(h Handle, fn func(d *format.Data)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[h]
	if !ok {
		b.logger.Debug("dropping update for flushed record", zap.Uint64("handle", uint64(h)))
		return false
	}
	fn(e.data)
	return true
}

// RecordWebVital stores the latest value of a vital on the record.
func (b *Buffer) RecordWebVital(h Handle, name vitals.MetricName, value float64) bool {
	return b.update(h, func(d *format.Data) {
		if d.Performance.WebVitals == nil {
			d.Performance.WebVitals = &format.WebVitals{}
		}
		wv := d.Performance.WebVitals
		v := format.Float(value)
		switch name {
		case vitals.LCP:
			wv.LCP = v
		case vitals.FID:
			wv.FID = v
		case vitals.CLS:
			wv.CLS = v
		case vitals.FCP:
			wv.FCP = v
		case vitals.TTFB:
			wv.TTFB = v
		case vitals.INP:
			wv.INP = v
		}
	})
}

// Reporter returns a vitals.Reporter bound to the record behind h.
func (b *Buffer) Reporter(h Handle) vitals.Reporter {
	return vitals.ReporterFunc(func(m vitals.Metric) {
		b.RecordWebVital(h, m.Name, m.Value)
	})
}

// RecordNavigation stores the navigation timing of the view.
func (b *Buffer) RecordNavigation(h Handle, nt format.NavigationTiming) bool {
	return b.update(h, func(d *format.Data) {
		d.Performance.NavigationTiming = &nt
	})
}

// RecordResources stores the resource summary of the view.
func (b *Buffer) RecordResources(h Handle, res format.Resources) bool {
	return b.update(h, func(d *format.Data) {
		d.Performance.Resources = &res
	})
}

// RecordError appends a script error to the record.
func (b *Buffer) RecordError(h Handle, e format.ErrorEntry) bool {
	if e.Timestamp == 0 {
		e.Timestamp = b.nowMillis()
	}
	return b.update(h, func(d *format.Data) {
		d.Errors = append(d.Errors, e)
	})
}

// RecordInteraction appends a user interaction to the record.
func (b *Buffer) RecordInteraction(h Handle, i format.Interaction) bool {
	if i.Timestamp == 0 {
		i.Timestamp = b.nowMillis()
	}
	return b.update(h, func(d *format.Data) {
		d.Interactions = append(d.Interactions, i)
	})
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// take removes every buffered record. It runs under the lock, so any
// mutation of a record happens before the record leaves the buffer.
func (b *Buffer) take() ([]Handle, []*entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.order) == 0 {
		return nil, nil
	}
	handles := b.order
	entries := make([]*entry, 0, len(handles))
	for _, h := range handles {
		entries = append(entries, b.entries[h])
		delete(b.entries, h)
	}
	b.order = nil
	return handles, entries
}

func (b *Buffer) nowMillis() float64 {
	return float64(b.now().UnixMilli())
}

func (b *Buffer) batchOf(entries []*entry) format.Batch {
	data := make([]format.Data, 0, len(entries))
	for _, e := range entries {
		data = append(data, *e.data)
	}
	return format.Batch{Data: data, Timestamp: b.nowMillis()}
}

// Flush sends every buffered record with Transport.Send. On failure the
// records are requeued once; records that already were requeued are dropped.
// Without a transport the records stay buffered.
func (b *Buffer) Flush(ctx context.Context) error {
	if b.transport == nil {
		return nil
	}
	handles, entries := b.take()
	if len(entries) == 0 {
		return nil
	}

	err := b.transport.Send(ctx, b.batchOf(entries))
	if err == nil {
		return nil
	}

	b.requeue(handles, entries)
	return err
}

func (b *Buffer) requeue(handles []Handle, entries []*entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var kept []Handle
	dropped := 0
	for i, e := range entries {
		if e.requeued {
			dropped++
			continue
		}
		e.requeued = true
		b.entries[handles[i]] = e
		kept = append(kept, handles[i])
	}
	b.order = append(kept, b.order...)

	if dropped > 0 {
		b.logger.Warn("dropping RUM records after failed retry", zap.Int("records", dropped))
	}
	if len(kept) > 0 {
		b.logger.Warn("RUM flush failed, requeued records", zap.Int("records", len(kept)))
	}
}

// OnHidden flushes everything through the transport's beacon. It is meant for
// page-hide and unload, where the batch is either delivered or lost.
func (b *Buffer) OnHidden() {
	if b.transport == nil {
		return
	}
	_, entries := b.take()
	if len(entries) == 0 {
		return
	}
	if !b.transport.Beacon(b.batchOf(entries)) {
		b.logger.Warn("beacon rejected, RUM records lost", zap.Int("records", len(entries)))
	}
}

// run flushes on the timer and when the batch size is reached
func (b *Buffer) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flushAndLog("interval")
		case <-b.flushChan:
			b.flushAndLog("batch_size")
		case <-b.stopChan:
			return
		}
	}
}

func (b *Buffer) flushAndLog(trigger string) {
	if err := b.Flush(context.Background()); err != nil {
		b.logger.Warn("RUM flush failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// Close stops the flush loop and hands the remaining records to the beacon.
func (b *Buffer) Close() {
	b.stopOnce.Do(func() {
		close(b.stopChan)
		<-b.done
		if b.transport == nil {
			if n := b.Len(); n > 0 {
				b.logger.Warn("closing RUM buffer without transport, records lost", zap.Int("records", n))
			}
			return
		}
		b.OnHidden()
	})
}
