package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/pkg/frame"
)

// memSink records every Persist call. Records whose timestamp is in fail are
// rejected with errSinkDown.
type memSink struct {
	mu      sync.Mutex
	records []domain.Record
	calls   int
	fail    map[string]bool
}

var errSinkDown = errors.New("sink down")

func (s *memSink) Persist(ctx context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail[rec.Timestamp] {
		return errSinkDown
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memSink) Records() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Record(nil), s.records...)
}

// memBatchSink stores whole batches, skipping records that do not convert.
// When limit > 0 it writes at most limit records of each batch and fails
// the rest.
type memBatchSink struct {
	memSink
	batches []int
	limit   int
}

func (s *memBatchSink) PersistBatch(ctx context.Context, b *domain.Batch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b.Size())

	var (
		kept []domain.Record
		errs []error
	)
	for _, rec := range b.Records {
		if _, err := domain.ParseTick(rec); err != nil {
			errs = append(errs, err)
			continue
		}
		kept = append(kept, rec)
	}
	if s.limit > 0 && len(kept) > s.limit {
		s.records = append(s.records, kept[:s.limit]...)
		return s.limit, errors.Join(append(errs, errSinkDown)...)
	}
	s.records = append(s.records, kept...)
	return len(kept), errors.Join(errs...)
}

func (s *memBatchSink) Batches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batches...)
}

type memStatusRepo struct {
	mu    sync.Mutex
	saved []domain.Status
	load  domain.Status
}

func (r *memStatusRepo) Load(ctx context.Context) (domain.Status, error) {
	return r.load, nil
}

func (r *memStatusRepo) Save(ctx context.Context, st domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, st)
	return nil
}

func (r *memStatusRepo) Last() (domain.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return domain.Status{}, false
	}
	return r.saved[len(r.saved)-1], true
}

// collector is a Submitter that keeps every record.
type collector struct {
	mu      sync.Mutex
	records []domain.Record
}

func (c *collector) Submit(rec domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *collector) Records() []domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Record(nil), c.records...)
}

// scriptDialer returns one scripted connection per Dial. Once the script
// is exhausted it closes exhausted and blocks until ctx ends.
type scriptDialer struct {
	mu        sync.Mutex
	script    []func() (io.ReadCloser, error)
	dials     int
	exhausted chan struct{}
}

func newScriptDialer(script ...func() (io.ReadCloser, error)) *scriptDialer {
	return &scriptDialer{script: script, exhausted: make(chan struct{})}
}

func (d *scriptDialer) Dial(ctx context.Context) (io.ReadCloser, error) {
	d.mu.Lock()
	d.dials++
	if len(d.script) == 0 {
		select {
		case <-d.exhausted:
		default:
			close(d.exhausted)
		}
		d.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := d.script[0]
	d.script = d.script[1:]
	d.mu.Unlock()
	return next()
}

func (d *scriptDialer) Addr() string { return "script://test" }

type fakeMetrics struct {
	mu         sync.Mutex
	decoder    frame.Stats
	dropped    int
	persisted  int
	failed     int
	reconnects int
}

func (m *fakeMetrics) ObserveDecoder(delta frame.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decoder = m.decoder.Add(delta)
}

func (m *fakeMetrics) RecordDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *fakeMetrics) ObserveFlush(persisted, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted += persisted
	m.failed += failed
}

func (m *fakeMetrics) Reconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *fakeMetrics) SetQueueDepth(int) {}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func rec(ts, v string) domain.Record {
	return domain.Record{Timestamp: ts, Value: v}
}

func equalRecords(a, b []domain.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
