// Package queue serializes path requests onto a single planner.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/udisondev/timbernav/internal/nav/pathfind"
)

var (
	// ErrClosed is returned by RequestPath once the worker has stopped.
	ErrClosed = errors.New("path request queue closed")
	// ErrNilCallback is returned by RequestPath when cb is nil.
	ErrNilCallback = errors.New("path request callback is nil")
	// ErrAlreadyRunning is returned by Run on every call after the first.
	ErrAlreadyRunning = errors.New("path request queue already running")
)

// Finder runs one search.
type Finder interface {
	FindPath(ctx context.Context, start, goal mgl32.Vec3) (pathfind.Result, error)
}

// Callback receives the outcome of a request. It runs on the worker goroutine
// and is invoked exactly once per accepted request.
type Callback func(waypoints []mgl32.Vec3, success bool)

type request struct {
	id       uuid.UUID
	start    mgl32.Vec3
	goal     mgl32.Vec3
	callback Callback
	queuedAt time.Time
}

// Queue holds requests in FIFO order and hands them to the finder one at a time.
type Queue struct {
	finder Finder

	mu       sync.Mutex
	pending  []request
	inFlight bool
	closed   bool
	wake     chan struct{}

	running   atomic.Bool
	processed atomic.Int64
}

// New creates a queue in front of finder. Call Run to start processing.
func New(finder Finder) *Queue {
	return &Queue{
		finder: finder,
		wake:   make(chan struct{}, 1),
	}
}

// RequestPath enqueues a search from start to goal and returns its id.
func (q *Queue) RequestPath(start, goal mgl32.Vec3, cb Callback) (uuid.UUID, error) {
	if cb == nil {
		return uuid.Nil, ErrNilCallback
	}

	req := request{
		id:       uuid.New(),
		start:    start,
		goal:     goal,
		callback: cb,
		queuedAt: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return uuid.Nil, ErrClosed
	}
	q.pending = append(q.pending, req)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return req.id, nil
}

// Run processes requests until ctx is canceled. Requests still queued at that
// point fail; their callbacks see success=false. A queue runs at most once.
func (q *Queue) Run(ctx context.Context) error {
	if !q.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	slog.Info("path request queue started")

	for {
		if err := ctx.Err(); err != nil {
			q.shutdown()
			return err
		}

		req, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				q.shutdown()
				return ctx.Err()
			case <-q.wake:
			}
			continue
		}

		q.process(ctx, req)
	}
}

// Pending returns the number of queued requests, excluding the one in flight.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight reports whether a search is running.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Processed returns the number of requests that finished, successfully or not.
func (q *Queue) Processed() int64 {
	return q.processed.Load()
}

func (q *Queue) next() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return request{}, false
	}
	req := q.pending[0]
	q.pending[0] = request{}
	q.pending = q.pending[1:]
	q.inFlight = true
	return req, true
}

func (q *Queue) process(ctx context.Context, req request) {
	started := time.Now()
	res, err := q.finder.FindPath(ctx, req.start, req.goal)

	q.mu.Lock()
	q.inFlight = false
	q.mu.Unlock()
	q.processed.Add(1)

	if err != nil {
		slog.Warn("path request failed", "id", req.id, "err", err)
		req.callback(nil, false)
		return
	}

	slog.Debug("path request finished",
		"id", req.id,
		"found", res.Found,
		"waypoints", len(res.Waypoints),
		"expanded", res.Expanded,
		"wait", started.Sub(req.queuedAt),
		"search", time.Since(started))
	req.callback(res.Waypoints, res.Found)
}

func (q *Queue) shutdown() {
	q.mu.Lock()
	q.closed = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, req := range dropped {
		req.callback(nil, false)
	}
	slog.Info("path request queue stopped", "dropped", len(dropped))
}
