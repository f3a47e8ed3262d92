package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/schedule"
	"github.com/remedyhq/remedy/pkg/cache"
	"github.com/remedyhq/remedy/pkg/metrics"
)

type snapshotJob struct {
	key     string
	payload string
}

// SnapshotWriter publishes merged schedules to the cache asynchronously, so
// batch ingestion never blocks on a slow store. Snapshots are advisory: a
// dropped or stale one only means the next read recomputes from the merger.
type SnapshotWriter struct {
	kv      cache.KV
	ttl     time.Duration
	metrics *metrics.Collector
	log     *zap.Logger
	jobs    chan snapshotJob
	done    chan struct{}
}

func NewSnapshotWriter(kv cache.KV, ttl time.Duration, buffer int, m *metrics.Collector, log *zap.Logger) *SnapshotWriter {
	w := &SnapshotWriter{
		kv:      kv,
		ttl:     ttl,
		metrics: m,
		log:     log,
		jobs:    make(chan snapshotJob, buffer),
		done:    make(chan struct{}),
	}
	go w.worker()
	return w
}

// Publish enqueues the entries under the given key. If the buffer is full
// the snapshot is dropped and a warning is emitted.
func (w *SnapshotWriter) Publish(key string, entries []schedule.Entry) {
	payload, err := json.Marshal(entries)
	if err != nil {
		w.log.Error("failed to encode schedule snapshot", zap.String("key", key), zap.Error(err))
		return
	}

	select {
	case w.jobs <- snapshotJob{key: key, payload: string(payload)}:
	default:
		w.metrics.SnapshotsDropped.Inc()
		w.log.Warn("snapshot buffer full, dropping snapshot", zap.String("key", key))
	}
}

// Invalidate removes a published snapshot, as when a watch is torn down.
func (w *SnapshotWriter) Invalidate(ctx context.Context, key string) {
	if err := w.kv.Delete(ctx, key); err != nil {
		w.log.Warn("failed to invalidate snapshot", zap.String("key", key), zap.Error(err))
	}
}

func (w *SnapshotWriter) Shutdown() {
	close(w.jobs)
	select {
	case <-w.done:
	case <-time.After(10 * time.Second):
		w.log.Warn("snapshot writer shutdown timed out; some snapshots may be lost")
	}
}

func (w *SnapshotWriter) worker() {
	defer close(w.done)
	for job := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.kv.Set(ctx, job.key, job.payload, w.ttl); err != nil {
			w.log.Error("failed to write schedule snapshot", zap.String("key", job.key), zap.Error(err))
		} else {
			w.metrics.SnapshotsWrittenTotal.Inc()
		}
		cancel()
	}
}
