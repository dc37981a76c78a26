package main

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/timbernav/internal/nav/grid"
)

func TestHeatColor(t *testing.T) {
	assert.Equal(t, tcell.NewRGBColor(255, 255, 255), heatColor(0, 0, 10))
	assert.Equal(t, tcell.NewRGBColor(0, 0, 0), heatColor(10, 0, 10))
	assert.Equal(t, tcell.NewRGBColor(127, 127, 127), heatColor(5, 0, 10))
	assert.Equal(t, tcell.NewRGBColor(255, 255, 255), heatColor(7, 7, 7), "flat field is white")
}

func TestPathCells(t *testing.T) {
	cells := pathCells(grid.Position{X: 0, Y: 0}, []grid.Position{{X: 2, Y: 2}, {X: 2, Y: 4}})
	assert.Equal(t, map[grid.Position]bool{
		{X: 1, Y: 1}: true,
		{X: 2, Y: 2}: true,
		{X: 2, Y: 3}: true,
		{X: 2, Y: 4}: true,
	}, cells)
}

func TestLayout(t *testing.T) {
	v := view{
		snap: grid.Snapshot{
			SizeX:     2,
			SizeY:     2,
			Walkable:  []bool{true, true, false, true},
			Penalties: []int{0, 0, 10, 0},
		},
		lo:        0,
		hi:        10,
		start:     grid.Position{X: 0, Y: 0},
		goal:      grid.Position{X: 1, Y: 1},
		waypoints: []grid.Position{{X: 1, Y: 1}},
	}

	rows := v.layout()
	require.Len(t, rows, 2)

	// Top row is y=1.
	assert.Equal(t, ' ', rows[0][0].r)
	assert.Equal(t, 'G', rows[0][1].r)
	assert.Equal(t, 'S', rows[1][0].r)

	_, bg, _ := rows[1][1].style.Decompose()
	assert.Equal(t, tcell.ColorRed, bg, "cell (1,0) is unwalkable")
}

func TestParsePoint(t *testing.T) {
	def := mgl32.Vec3{1, 2, 3}
	p, err := parsePoint("", def)
	require.NoError(t, err)
	assert.Equal(t, def, p)

	p, err = parsePoint(" -4.5, 7 ", def)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{-4.5, 0, 7}, p)

	_, err = parsePoint("3", def)
	assert.Error(t, err)
	_, err = parsePoint("a,b", def)
	assert.Error(t, err)
}
