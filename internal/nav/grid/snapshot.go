package grid

// Snapshot is a copy of the walkability and blurred penalty fields, x-major.
type Snapshot struct {
	SizeX     int
	SizeY     int
	Walkable  []bool
	Penalties []int
}

// Index returns the flat slot of (x, y) in Walkable and Penalties.
func (s Snapshot) Index(x, y int) int {
	return x*s.SizeY + y
}

// PenaltyRange returns the lowest and highest penalty in s, or 0, 0 if s is empty.
func (s Snapshot) PenaltyRange() (lo, hi int) {
	if len(s.Penalties) == 0 {
		return 0, 0
	}
	lo, hi = s.Penalties[0], s.Penalties[0]
	for _, p := range s.Penalties[1:] {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	return lo, hi
}

// Snapshot copies the current field under the read lock.
func (g *Grid) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Snapshot{
		SizeX:     g.sizeX,
		SizeY:     g.sizeY,
		Walkable:  make([]bool, len(g.nodes)),
		Penalties: make([]int, len(g.nodes)),
	}
	for i, n := range g.nodes {
		s.Walkable[i] = n.walkable
		s.Penalties[i] = n.penalty
	}
	return s
}
