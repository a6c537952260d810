package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/internal/ports"
	"github.com/bft-labs/tickship/pkg/log"
)

// Dispatcher defaults.
const (
	DefaultQueueSize     = 4096
	DefaultBatchSize     = 256
	DefaultFlushInterval = time.Second

	// DrainTimeout bounds the final flush after the run context ends.
	DrainTimeout = 5 * time.Second
)

// DispatcherConfig contains configuration for the persistence worker.
type DispatcherConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration

	// Peer is copied into the status snapshot.
	Peer string
}

// DispatchEventEmitter is called after each flush and on every dropped record.
type DispatchEventEmitter interface {
	OnPersistSuccess(count int, duration time.Duration)
	OnPersistError(err error, count int)
	OnRecordDropped(rec domain.Record)
}

// Dispatcher hands records to a sink without ever blocking the producer.
// Records wait in a bounded queue and are written by a single worker in
// submission order. A full queue drops the record. Failed writes are logged
// and not retried.
type Dispatcher struct {
	config     DispatcherConfig
	sink       ports.RecordSink
	batchSink  ports.BatchSink
	statusRepo ports.StatusRepository
	metrics    ports.Metrics
	logger     log.Logger
	emitter    DispatchEventEmitter

	queue   chan domain.Record
	dropped atomic.Uint64

	mu     sync.Mutex
	status domain.Status
}

// NewDispatcher creates a dispatcher. statusRepo, metrics and emitter may be nil.
func NewDispatcher(
	config DispatcherConfig,
	sink ports.RecordSink,
	statusRepo ports.StatusRepository,
	metrics ports.Metrics,
	logger log.Logger,
	emitter DispatchEventEmitter,
) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	d := &Dispatcher{
		config:     config,
		sink:       sink,
		statusRepo: statusRepo,
		metrics:    metrics,
		logger:     log.OrNoop(logger),
		emitter:    emitter,
		queue:      make(chan domain.Record, config.QueueSize),
	}
	if bs, ok := sink.(ports.BatchSink); ok {
		d.batchSink = bs
	}
	d.status.Peer = config.Peer
	return d
}

// Submit enqueues rec. It never blocks; when the queue is full the record is
// dropped and ErrQueueFull is returned.
func (d *Dispatcher) Submit(rec domain.Record) error {
	select {
	case d.queue <- rec:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
	}

	n := d.dropped.Add(1)
	d.metrics.RecordDropped()
	d.logger.Warn("persistence queue full, record dropped",
		log.String("timestamp", rec.Timestamp),
		log.String("value", rec.Value),
		log.Uint64("dropped_total", n),
	)
	if d.emitter != nil {
		d.emitter.OnRecordDropped(rec)
	}
	return domain.ErrQueueFull
}

// Run consumes the queue until ctx ends, then flushes whatever is still
// queued within DrainTimeout and returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context) error {
	d.loadStatus(ctx)

	batcher := NewBatcher(d.config.BatchSize, d.config.FlushInterval)

	var tick <-chan time.Time
	if d.config.FlushInterval > 0 {
		ticker := time.NewTicker(d.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			d.drain(ctx, batcher)
			return ctx.Err()
		case rec := <-d.queue:
			d.metrics.SetQueueDepth(len(d.queue))
			if batcher.Add(rec) {
				d.flush(ctx, batcher)
			}
		case <-tick:
			if batcher.ShouldFlush() {
				d.flush(ctx, batcher)
			}
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context, batcher *Batcher) {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DrainTimeout)
	defer cancel()

	for {
		select {
		case rec := <-d.queue:
			if batcher.Add(rec) {
				d.flush(drainCtx, batcher)
			}
		default:
			d.metrics.SetQueueDepth(0)
			if batcher.HasPending() {
				d.flush(drainCtx, batcher)
			}
			return
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context, batcher *Batcher) {
	batch := batcher.Batch()

	start := time.Now()
	persisted, last, err := d.persist(ctx, batch)
	duration := time.Since(start)
	failed := batch.Size() - persisted

	if err != nil {
		d.logger.Error("persist failed",
			log.Err(err),
			log.Int("records", batch.Size()),
			log.Int("persisted", persisted),
		)
		if d.emitter != nil {
			d.emitter.OnPersistError(err, failed)
		}
	} else {
		d.logger.Debug("persisted batch",
			log.Int("records", persisted),
			log.Int("bytes", batch.TotalBytes),
			log.Duration("duration", duration),
		)
	}
	if persisted > 0 && d.emitter != nil {
		d.emitter.OnPersistSuccess(persisted, duration)
	}
	d.metrics.ObserveFlush(persisted, failed)

	d.mu.Lock()
	d.status.UpdateAfterFlush(persisted, failed, last, time.Now())
	d.status.RecordsDropped = d.dropped.Load()
	snapshot := d.status
	d.mu.Unlock()

	if d.statusRepo != nil {
		if err := d.statusRepo.Save(ctx, snapshot); err != nil {
			d.logger.Error("failed to save status", log.Err(err))
		}
	}

	batcher.Reset()
}

// persist writes batch and returns how many records were stored and the
// last stored record.
func (d *Dispatcher) persist(ctx context.Context, batch *domain.Batch) (int, *domain.Record, error) {
	if d.batchSink != nil {
		n, err := d.batchSink.PersistBatch(ctx, batch)
		if n < 0 {
			n = 0
		}
		if n > batch.Size() {
			n = batch.Size()
		}
		return n, batch.LastWritten(n), err
	}

	var (
		persisted int
		last      *domain.Record
		errs      []error
	)
	for i := range batch.Records {
		rec := &batch.Records[i]
		if err := d.sink.Persist(ctx, *rec); err != nil {
			d.logger.Error("persist record failed",
				log.Err(err),
				log.String("timestamp", rec.Timestamp),
				log.String("value", rec.Value),
			)
			errs = append(errs, err)
			continue
		}
		persisted++
		last = rec
	}
	return persisted, last, errors.Join(errs...)
}

func (d *Dispatcher) loadStatus(ctx context.Context) {
	if d.statusRepo == nil {
		return
	}
	st, err := d.statusRepo.Load(ctx)
	if err != nil {
		d.logger.Error("failed to load status", log.Err(err))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Counters carry over only for the same peer.
	if st.Peer == d.config.Peer {
		d.status = st
		d.dropped.Store(st.RecordsDropped)
	}
	d.status.Peer = d.config.Peer
}

// Status returns a snapshot of the persistence counters.
func (d *Dispatcher) Status() domain.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.status
	st.RecordsDropped = d.dropped.Load()
	return st
}

// QueueLen returns the number of records waiting to be persisted.
func (d *Dispatcher) QueueLen() int {
	return len(d.queue)
}
