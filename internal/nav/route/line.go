package route

import "github.com/go-gl/mathgl/mgl32"

// VerticalLineGradient stands in for an infinite gradient.
const VerticalLineGradient float32 = 1e5

// Line is a 2D turn boundary. It remembers which side the path approaches from,
// so a walker crosses it when it reaches the other side.
type Line struct {
	gradient              float32
	yIntercept            float32
	gradientPerpendicular float32
	pointOnLine1          mgl32.Vec2
	pointOnLine2          mgl32.Vec2
	approachSide          bool
}

// NewLine builds the line through pointOnLine that is perpendicular to the
// segment towards pointPerpendicularToLine. That second point defines the
// approach side.
func NewLine(pointOnLine, pointPerpendicularToLine mgl32.Vec2) Line {
	deltaX := pointOnLine.X() - pointPerpendicularToLine.X()
	deltaY := pointOnLine.Y() - pointPerpendicularToLine.Y()

	var l Line
	if deltaX == 0 {
		l.gradientPerpendicular = VerticalLineGradient
	} else {
		l.gradientPerpendicular = deltaY / deltaX
	}

	if l.gradientPerpendicular == 0 {
		l.gradient = VerticalLineGradient
	} else {
		l.gradient = -1 / l.gradientPerpendicular
	}

	l.yIntercept = pointOnLine.Y() - l.gradient*pointOnLine.X()
	l.pointOnLine1 = pointOnLine
	l.pointOnLine2 = pointOnLine.Add(mgl32.Vec2{1, l.gradient})
	l.approachSide = l.side(pointPerpendicularToLine)
	return l
}

func (l Line) side(p mgl32.Vec2) bool {
	return (p.X()-l.pointOnLine1.X())*(l.pointOnLine2.Y()-l.pointOnLine1.Y()) >
		(p.Y()-l.pointOnLine1.Y())*(l.pointOnLine2.X()-l.pointOnLine1.X())
}

// HasCrossedLine reports whether p lies on the far side from the approach.
func (l Line) HasCrossedLine(p mgl32.Vec2) bool {
	return l.side(p) != l.approachSide
}

// DistanceFromPoint returns the perpendicular distance from p to the line.
func (l Line) DistanceFromPoint(p mgl32.Vec2) float32 {
	yInterceptPerpendicular := p.Y() - l.gradientPerpendicular*p.X()
	intersectX := (yInterceptPerpendicular - l.yIntercept) / (l.gradient - l.gradientPerpendicular)
	intersectY := l.gradient*intersectX + l.yIntercept
	return p.Sub(mgl32.Vec2{intersectX, intersectY}).Len()
}

// Gradient returns the slope of the boundary.
func (l Line) Gradient() float32 { return l.gradient }

// Point returns the point the boundary was built through.
func (l Line) Point() mgl32.Vec2 { return l.pointOnLine1 }
