// Package route turns planner waypoints into a followable path with turn
// boundaries, and steps a walker along it.
package route

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Path is immutable once built.
type Path struct {
	lookPoints      []mgl32.Vec3
	turnBoundaries  []Line
	finishLineIndex int
	slowDownIndex   int
}

// NewPath builds one turn boundary per waypoint. Every boundary but the last sits
// turnDistance before its waypoint along the direction of travel; the last one,
// the finish line, passes through the final waypoint.
//
// The slow-down index is the first waypoint, walking back from the end, at which
// the remaining distance exceeds stoppingDistance. Paths shorter than that keep
// index 0.
func NewPath(waypoints []mgl32.Vec3, start mgl32.Vec3, turnDistance, stoppingDistance float32) *Path {
	p := &Path{
		lookPoints:      slices.Clone(waypoints),
		turnBoundaries:  make([]Line, len(waypoints)),
		finishLineIndex: len(waypoints) - 1,
	}

	previousPoint := flatten(start)
	for i, wp := range p.lookPoints {
		currentPoint := flatten(wp)
		dir := direction(previousPoint, currentPoint)

		turnBoundaryPoint := currentPoint
		if i != p.finishLineIndex {
			turnBoundaryPoint = currentPoint.Sub(dir.Mul(turnDistance))
		}
		p.turnBoundaries[i] = NewLine(turnBoundaryPoint, previousPoint.Sub(dir.Mul(turnDistance)))
		previousPoint = turnBoundaryPoint
	}

	var distanceFromEndPoint float32
	for i := len(p.lookPoints) - 1; i > 0; i-- {
		distanceFromEndPoint += p.lookPoints[i].Sub(p.lookPoints[i-1]).Len()
		if distanceFromEndPoint > stoppingDistance {
			p.slowDownIndex = i
			break
		}
	}
	return p
}

// LookPoints returns a copy of the waypoints.
func (p *Path) LookPoints() []mgl32.Vec3 { return slices.Clone(p.lookPoints) }

// Len is the number of waypoints.
func (p *Path) Len() int { return len(p.lookPoints) }

// LookPoint returns waypoint i.
func (p *Path) LookPoint(i int) mgl32.Vec3 { return p.lookPoints[i] }

// TurnBoundary returns the boundary of waypoint i.
func (p *Path) TurnBoundary(i int) Line { return p.turnBoundaries[i] }

// FinishLineIndex is the index of the last waypoint, -1 for an empty path.
func (p *Path) FinishLineIndex() int { return p.finishLineIndex }

// SlowDownIndex is the waypoint index from which the walker decelerates.
func (p *Path) SlowDownIndex() int { return p.slowDownIndex }

// flatten drops the height, mapping world X/Z to plane X/Y.
func flatten(v mgl32.Vec3) mgl32.Vec2 {
	return mgl32.Vec2{v.X(), v.Z()}
}

func direction(from, to mgl32.Vec2) mgl32.Vec2 {
	d := to.Sub(from)
	if d.Len() == 0 {
		return mgl32.Vec2{}
	}
	return d.Normalize()
}
