package rum

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	format "finsite/pkg/formats/rum"
	"finsite/pkg/vitals"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu       sync.Mutex
	sent     []format.Batch
	beacons  []format.Batch
	failures int
}

func (t *recordingTransport) Send(ctx context.Context, batch format.Batch) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures > 0 {
		t.failures--
		return errors.New("network down")
	}
	t.sent = append(t.sent, batch)
	return nil
}

func (t *recordingTransport) Beacon(batch format.Batch) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.beacons = append(t.beacons, batch)
	return true
}

func (t *recordingTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func newTestBuffer(t *testing.T, tr Transport, batchSize int) *Buffer {
	t.Helper()
	b := New(Options{
		BatchSize:     batchSize,
		FlushInterval: time.Hour,
		Transport:     tr,
	})
	t.Cleanup(b.Close)
	return b
}

func TestBuffer_SessionIDStampedOnRecords(t *testing.T) {
	tr := &recordingTransport{}
	b := newTestBuffer(t, tr, 10)

	b.StartView(PageView{URL: "/"})
	b.StartView(PageView{URL: "/about"})
	require.NoError(t, b.Flush(context.Background()))

	require.Len(t, tr.sent, 1)
	require.Len(t, tr.sent[0].Data, 2)
	for _, d := range tr.sent[0].Data {
		assert.Equal(t, b.SessionID(), d.SessionID)
	}
	assert.NotEmpty(t, b.SessionID())
}

func TestBuffer_BatchSizeTriggersSingleSend(t *testing.T) {
	tr := &recordingTransport{}
	b := newTestBuffer(t, tr, 10)

	for i := 0; i < 10; i++ {
		b.StartView(PageView{URL: "/services"})
	}

	require.Eventually(t, func() bool { return tr.sentCount() == 1 }, time.Second, 5*time.Millisecond)
	// no second send follows for the same crossing
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tr.sentCount())

	tr.mu.Lock()
	assert.Len(t, tr.sent[0].Data, 10)
	tr.mu.Unlock()
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_MutationsAddressRecordByHandle(t *testing.T) {
	tr := &recordingTransport{}
	b := newTestBuffer(t, tr, 10)

	first := b.StartView(PageView{URL: "/"})
	second := b.StartView(PageView{URL: "/contact"})

	assert.True(t, b.RecordWebVital(first, vitals.LCP, 1800))
	assert.True(t, b.RecordError(second, format.ErrorEntry{Message: "boom"}))
	assert.True(t, b.RecordInteraction(first, format.Interaction{Type: "click", Target: "button"}))
	assert.True(t, b.RecordNavigation(second, format.NavigationTiming{TTFB: 120}))
	assert.True(t, b.RecordResources(first, format.Resources{Count: 3}))

	require.NoError(t, b.Flush(context.Background()))
	require.Len(t, tr.sent, 1)
	data := tr.sent[0].Data

	require.NotNil(t, data[0].Performance.WebVitals)
	assert.Equal(t, 1800.0, *data[0].Performance.WebVitals.LCP)
	assert.Len(t, data[0].Interactions, 1)
	assert.Empty(t, data[0].Errors)
	assert.Equal(t, 3.0, data[0].Performance.Resources.Count)

	assert.Len(t, data[1].Errors, 1)
	assert.NotZero(t, data[1].Errors[0].Timestamp)
	assert.Equal(t, 120.0, data[1].Performance.NavigationTiming.TTFB)
	assert.Nil(t, data[1].Performance.WebVitals)
}

func TestBuffer_ReporterWritesVitals(t *testing.T) {
	tr := &recordingTransport{}
	b := newTestBuffer(t, tr, 10)

	h := b.StartView(PageView{URL: "/"})
	b.Reporter(h).Report(vitals.NewMetric(vitals.CLS, 0.05, time.Now(), "/", ""))

	require.NoError(t, b.Flush(context.Background()))
	require.NotNil(t, tr.sent[0].Data[0].Performance.WebVitals.CLS)
	assert.Equal(t, 0.05, *tr.sent[0].Data[0].Performance.WebVitals.CLS)
}

func TestBuffer_MutationAfterFlushIsDropped(t *testing.T) {
	tr := &recordingTransport{}
	b := newTestBuffer(t, tr, 10)

	h := b.StartView(PageView{URL: "/"})
	require.NoError(t, b.Flush(context.Background()))

	assert.False(t, b.RecordWebVital(h, vitals.LCP, 1000))
	assert.False(t, b.RecordError(h, format.ErrorEntry{Message: "late"}))
}

func TestBuffer_FailedSendRequeuesOnce(t *testing.T) {
	tr := &recordingTransport{failures: 1}
	b := newTestBuffer(t, tr, 10)

	b.StartView(PageView{URL: "/"})
	require.Error(t, b.Flush(context.Background()))
	assert.Equal(t, 1, b.Len())

	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, 1, tr.sentCount())
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_RecordDroppedAfterSecondFailure(t *testing.T) {
	tr := &recordingTransport{failures: 2}
	b := newTestBuffer(t, tr, 10)

	b.StartView(PageView{URL: "/"})
	require.Error(t, b.Flush(context.Background()))
	require.Error(t, b.Flush(context.Background()))

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, tr.sentCount())
}

func TestBuffer_RequeuedRecordsKeepOrder(t *testing.T) {
	tr := &recordingTransport{failures: 1}
	b := newTestBuffer(t, tr, 10)

	b.StartView(PageView{URL: "/a"})
	require.Error(t, b.Flush(context.Background()))
	b.StartView(PageView{URL: "/b"})
	require.NoError(t, b.Flush(context.Background()))

	require.Len(t, tr.sent, 1)
	require.Len(t, tr.sent[0].Data, 2)
	assert.Equal(t, "/a", tr.sent[0].Data[0].URL)
	assert.Equal(t, "/b", tr.sent[0].Data[1].URL)
}

func TestBuffer_OnHiddenUsesBeacon(t *testing.T) {
	tr := &recordingTransport{}
	b := newTestBuffer(t, tr, 10)

	b.StartView(PageView{URL: "/onboarding"})
	b.OnHidden()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, tr.sentCount())
	require.Len(t, tr.beacons, 1)
	assert.Equal(t, "/onboarding", tr.beacons[0].Data[0].URL)

	b.OnHidden()
	assert.Len(t, tr.beacons, 1, "empty buffer sends nothing")
}

func TestBuffer_CloseBeaconsRemaining(t *testing.T) {
	tr := &recordingTransport{}
	b := New(Options{BatchSize: 10, FlushInterval: time.Hour, Transport: tr})

	b.StartView(PageView{URL: "/"})
	b.Close()
	b.Close()

	assert.Len(t, tr.beacons, 1)
}

func TestBuffer_IntervalFlush(t *testing.T) {
	tr := &recordingTransport{}
	b := New(Options{BatchSize: 100, FlushInterval: 20 * time.Millisecond, Transport: tr})
	t.Cleanup(b.Close)

	b.StartView(PageView{URL: "/"})
	require.Eventually(t, func() bool { return tr.sentCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBuffer_NoTransportKeepsRecords(t *testing.T) {
	b := newTestBuffer(t, nil, 10)

	b.StartView(PageView{URL: "/pricing"})
	b.StartView(PageView{URL: "/contact"})

	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, 2, b.Len())

	b.OnHidden()
	assert.Equal(t, 2, b.Len())
}
