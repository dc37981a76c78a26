package village

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/udisondev/timbernav/internal/nav/queue"
	"github.com/udisondev/timbernav/internal/nav/route"
)

// DefaultMoveThreshold is how far a target must move before a new path is requested.
const DefaultMoveThreshold = 0.5

// Requester queues path searches.
type Requester interface {
	RequestPath(start, goal mgl32.Vec3, cb queue.Callback) (uuid.UUID, error)
}

// RouteOptions shape the paths a Tracker builds.
type RouteOptions struct {
	TurnDistance     float32
	StoppingDistance float32
	MoveThreshold    float32
}

// Tracker keeps one walker's path current as its target moves. It is not safe
// for concurrent use; onPath runs on the queue worker.
type Tracker struct {
	requester Requester
	opts      RouteOptions
	onPath    func(*route.Path)

	lastTarget mgl32.Vec3
	hasTarget  bool
}

// NewTracker creates a tracker that hands every successful path to onPath.
func NewTracker(r Requester, opts RouteOptions, onPath func(*route.Path)) *Tracker {
	if opts.MoveThreshold <= 0 {
		opts.MoveThreshold = DefaultMoveThreshold
	}
	return &Tracker{requester: r, opts: opts, onPath: onPath}
}

// Update requests a path from position to target the first time it is called,
// and afterwards only when target moved more than the threshold since the last
// request. It reports whether a request was queued.
func (t *Tracker) Update(position, target mgl32.Vec3) (bool, error) {
	threshold := t.opts.MoveThreshold
	if t.hasTarget && target.Sub(t.lastTarget).LenSqr() <= threshold*threshold {
		return false, nil
	}

	start := position
	_, err := t.requester.RequestPath(position, target, func(waypoints []mgl32.Vec3, success bool) {
		if !success {
			return
		}
		t.onPath(route.NewPath(waypoints, start, t.opts.TurnDistance, t.opts.StoppingDistance))
	})
	if err != nil {
		return false, err
	}

	t.lastTarget = target
	t.hasTarget = true
	return true, nil
}
