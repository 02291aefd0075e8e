// Package recorder moves observer callbacks off the event loop and forwards them to the
// snapshot mirror, the result archive and the webhook notifier.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/park285/chess-rooms/internal/obslog"
	"github.com/park285/chess-rooms/internal/room"
	"go.uber.org/zap"
)

type SnapshotStore interface {
	Save(ctx context.Context, s room.Snapshot) error
	Delete(ctx context.Context, id string) error
}

type ResultArchive interface {
	SaveResult(ctx context.Context, f room.Finished) error
}

type ResultNotifier interface {
	GameFinished(ctx context.Context, f room.Finished) error
}

type kind int

const (
	kindChanged kind = iota
	kindClosed
	kindFinished
)

type item struct {
	kind     kind
	snapshot room.Snapshot
	id       string
	finished room.Finished
}

// Recorder implements room.Observer. Enqueueing never blocks; a full queue drops the item.
type Recorder struct {
	mirror   SnapshotStore
	archive  ResultArchive
	notifier ResultNotifier
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}
}

type Option func(*Recorder)

func WithMirror(s SnapshotStore) Option { return func(r *Recorder) { r.mirror = s } }
func WithArchive(a ResultArchive) Option { return func(r *Recorder) { r.archive = a } }
func WithNotifier(n ResultNotifier) Option { return func(r *Recorder) { r.notifier = n } }
func WithTimeout(d time.Duration) Option { return func(r *Recorder) { r.timeout = d } }
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan item, n)
		}
	}
}

// New starts the worker goroutine. Call Close to drain it.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		timeout: 5 * time.Second,
		queue:   make(chan item, 256),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

func (r *Recorder) SessionChanged(s room.Snapshot) {
	if r.mirror == nil {
		return
	}
	r.enqueue(item{kind: kindChanged, snapshot: s})
}

func (r *Recorder) SessionClosed(id string) {
	if r.mirror == nil {
		return
	}
	r.enqueue(item{kind: kindClosed, id: id})
}

func (r *Recorder) GameFinished(f room.Finished) {
	if r.archive == nil && r.notifier == nil {
		return
	}
	r.enqueue(item{kind: kindFinished, finished: f})
}

func (r *Recorder) enqueue(it item) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- it:
	default:
		obslog.L().Warn("recorder_queue_full", zap.Int("kind", int(it.kind)), zap.Int("capacity", cap(r.queue)))
	}
}

// Close stops accepting items and waits for queued work until ctx expires.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for it := range r.queue {
		r.handle(it)
	}
}

func (r *Recorder) handle(it item) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	switch it.kind {
	case kindChanged:
		if err := r.mirror.Save(ctx, it.snapshot); err != nil {
			obslog.L().Warn("mirror_save_error", zap.String("game_id", it.snapshot.ID), zap.Error(err))
		}
	case kindClosed:
		if err := r.mirror.Delete(ctx, it.id); err != nil {
			obslog.L().Warn("mirror_delete_error", zap.String("game_id", it.id), zap.Error(err))
		}
	case kindFinished:
		f := it.finished
		if r.archive != nil {
			if err := r.archive.SaveResult(ctx, f); err != nil {
				obslog.L().Error("result_persist_error", zap.String("game_id", f.GameID), zap.Error(err))
			} else {
				obslog.L().Info("result_persist", zap.String("game_id", f.GameID), zap.String("result", f.Result), zap.String("method", f.Method))
			}
		}
		if r.notifier != nil {
			if err := r.notifier.GameFinished(ctx, f); err != nil {
				obslog.L().Warn("result_notify_error", zap.String("game_id", f.GameID), zap.Error(err))
			}
		}
	}
}
