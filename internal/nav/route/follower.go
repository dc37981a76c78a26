package route

import "github.com/go-gl/mathgl/mgl32"

// minSpeedPercent ends the slow-down phase.
const minSpeedPercent = 0.01

// FollowerConfig tunes a Follower.
type FollowerConfig struct {
	Speed            float32
	TurnSpeed        float32
	StoppingDistance float32
}

// DefaultFollowerConfig mirrors the stock unit tuning.
func DefaultFollowerConfig() FollowerConfig {
	return FollowerConfig{Speed: 20, TurnSpeed: 3, StoppingDistance: 10}
}

// Follower moves a walker along a Path, cutting corners at turn boundaries and
// decelerating towards the finish line. It is not safe for concurrent use.
type Follower struct {
	cfg          FollowerConfig
	path         *Path
	position     mgl32.Vec3
	heading      mgl32.Vec3
	index        int
	speedPercent float32
	following    bool
}

// NewFollower places a walker at position, facing the first waypoint.
func NewFollower(path *Path, position mgl32.Vec3, cfg FollowerConfig) *Follower {
	f := &Follower{
		cfg:          cfg,
		path:         path,
		position:     position,
		heading:      mgl32.Vec3{0, 0, 1},
		speedPercent: 1,
		following:    path != nil && path.Len() > 0,
	}
	if f.following {
		if d := path.LookPoint(0).Sub(position); d.Len() > 0 {
			f.heading = d.Normalize()
		}
	}
	return f
}

// Step advances the walker by dt seconds and reports whether it is still
// following the path.
func (f *Follower) Step(dt float32) bool {
	if !f.following {
		return false
	}

	pos2D := flatten(f.position)
	for f.path.TurnBoundary(f.index).HasCrossedLine(pos2D) {
		if f.index == f.path.FinishLineIndex() {
			f.following = false
			return false
		}
		f.index++
	}

	if f.index >= f.path.SlowDownIndex() && f.cfg.StoppingDistance > 0 {
		finish := f.path.TurnBoundary(f.path.FinishLineIndex())
		f.speedPercent = clamp01(finish.DistanceFromPoint(pos2D) / f.cfg.StoppingDistance)
		if f.speedPercent < minSpeedPercent {
			f.following = false
			return false
		}
	}

	if target := f.path.LookPoint(f.index).Sub(f.position); target.Len() > 0 {
		t := clamp01(dt * f.cfg.TurnSpeed)
		blended := f.heading.Add(target.Normalize().Sub(f.heading).Mul(t))
		if blended.Len() > 0 {
			f.heading = blended.Normalize()
		}
	}
	f.position = f.position.Add(f.heading.Mul(f.cfg.Speed * f.speedPercent * dt))
	return true
}

// Position returns the walker's world position.
func (f *Follower) Position() mgl32.Vec3 { return f.position }

// Heading returns the unit facing direction.
func (f *Follower) Heading() mgl32.Vec3 { return f.heading }

// Index returns the waypoint currently steered towards.
func (f *Follower) Index() int { return f.index }

// SpeedPercent returns the current fraction of full speed.
func (f *Follower) SpeedPercent() float32 { return f.speedPercent }

// Following reports whether the walker has not yet finished.
func (f *Follower) Following() bool { return f.following }

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
