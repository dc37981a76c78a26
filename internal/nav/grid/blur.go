package grid

import "math"

// blurPenaltyMap runs a separable box blur of radius BlurSize over the raw penalty
// of every cell. Window samples outside the grid clamp to the nearest edge cell.
// Caller holds the write lock.
func (g *Grid) blurPenaltyMap() {
	extents := g.cfg.BlurSize
	kernelSize := extents*2 + 1
	kernelArea := float64(kernelSize * kernelSize)
	sizeX, sizeY := g.sizeX, g.sizeY

	horizontal := make([]int, sizeX*sizeY)
	vertical := make([]int, sizeX*sizeY)

	for y := 0; y < sizeY; y++ {
		for x := -extents; x <= extents; x++ {
			sampleX := clampInt(x, 0, sizeX-1)
			horizontal[g.index(0, y)] += g.nodes[g.index(sampleX, y)].rawPenalty
		}

		for x := 1; x < sizeX; x++ {
			removeIndex := clampInt(x-extents-1, 0, sizeX-1)
			addIndex := clampInt(x+extents, 0, sizeX-1)

			horizontal[g.index(x, y)] = horizontal[g.index(x-1, y)] -
				g.nodes[g.index(removeIndex, y)].rawPenalty +
				g.nodes[g.index(addIndex, y)].rawPenalty
		}
	}

	g.penaltyMin, g.penaltyMax = math.MaxInt, math.MinInt
	for x := 0; x < sizeX; x++ {
		for y := -extents; y <= extents; y++ {
			sampleY := clampInt(y, 0, sizeY-1)
			vertical[g.index(x, 0)] += horizontal[g.index(x, sampleY)]
		}
		g.setBlurred(x, 0, roundHalfEven(float64(vertical[g.index(x, 0)])/kernelArea))

		for y := 1; y < sizeY; y++ {
			removeIndex := clampInt(y-extents-1, 0, sizeY-1)
			addIndex := clampInt(y+extents, 0, sizeY-1)

			vertical[g.index(x, y)] = vertical[g.index(x, y-1)] -
				horizontal[g.index(x, removeIndex)] +
				horizontal[g.index(x, addIndex)]
			g.setBlurred(x, y, roundHalfEven(float64(vertical[g.index(x, y)])/kernelArea))
		}
	}
}

func (g *Grid) setBlurred(x, y, penalty int) {
	g.nodes[g.index(x, y)].penalty = penalty
	g.penaltyMin = min(g.penaltyMin, penalty)
	g.penaltyMax = max(g.penaltyMax, penalty)
}
