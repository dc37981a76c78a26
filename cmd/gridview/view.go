package main

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/nav/pathfind"
)

// cellWidth is the number of terminal columns per grid cell, so cells look square.
const cellWidth = 2

type view struct {
	snap      grid.Snapshot
	lo, hi    int
	start     grid.Position
	goal      grid.Position
	waypoints []grid.Position
	res       pathfind.Result
}

// glyph is what one grid cell renders as.
type glyph struct {
	r     rune
	style tcell.Style
}

// heatColor fades from white at lo to black at hi.
func heatColor(penalty, lo, hi int) tcell.Color {
	t := float64(0)
	if hi > lo {
		t = float64(penalty-lo) / float64(hi-lo)
	}
	t = min(max(t, 0), 1)
	c := int32(255 * (1 - t))
	return tcell.NewRGBColor(c, c, c)
}

// pathCells walks the straight segments between consecutive waypoints, starting
// at from. Waypoints are corners, so every segment is axis-aligned or diagonal.
func pathCells(from grid.Position, waypoints []grid.Position) map[grid.Position]bool {
	cells := make(map[grid.Position]bool)
	cur := from
	for _, wp := range waypoints {
		for cur != wp {
			cur.X += sign(wp.X - cur.X)
			cur.Y += sign(wp.Y - cur.Y)
			cells[cur] = true
		}
	}
	return cells
}

// layout returns the glyphs of the grid, row-major with +Y (world Z) at the top.
func (v view) layout() [][]glyph {
	onPath := pathCells(v.start, v.waypoints)
	isWaypoint := make(map[grid.Position]bool, len(v.waypoints))
	for _, wp := range v.waypoints {
		isWaypoint[wp] = true
	}

	rows := make([][]glyph, v.snap.SizeY)
	for row := range rows {
		y := v.snap.SizeY - 1 - row
		rows[row] = make([]glyph, v.snap.SizeX)
		for x := range v.snap.SizeX {
			i := v.snap.Index(x, y)
			bg := heatColor(v.snap.Penalties[i], v.lo, v.hi)
			if !v.snap.Walkable[i] {
				bg = tcell.ColorRed
			}
			style := tcell.StyleDefault.Background(bg).Foreground(tcell.ColorBlue)

			pos := grid.Position{X: x, Y: y}
			r := ' '
			switch {
			case pos == v.start:
				r = 'S'
			case pos == v.goal:
				r = 'G'
			case isWaypoint[pos]:
				r = 'o'
			case onPath[pos]:
				r = '.'
			}
			rows[row][x] = glyph{r: r, style: style}
		}
	}
	return rows
}

func (v view) draw(screen tcell.Screen) {
	screen.Clear()

	for row, glyphs := range v.layout() {
		for x, gl := range glyphs {
			screen.SetContent(x*cellWidth, row, gl.r, nil, gl.style)
			for c := 1; c < cellWidth; c++ {
				screen.SetContent(x*cellWidth+c, row, ' ', nil, gl.style)
			}
		}
	}

	status := fmt.Sprintf("%dx%d  penalty %d..%d  found=%v cost=%d expanded=%d  q/Esc to quit",
		v.snap.SizeX, v.snap.SizeY, v.lo, v.hi, v.res.Found, v.res.Cost, v.res.Expanded)
	for i, r := range status {
		screen.SetContent(i, v.snap.SizeY, r, nil, tcell.StyleDefault)
	}
	screen.Show()
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
