package grid

import (
	"cmp"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/udisondev/timbernav/internal/nav/heap"
)

// Node is a single grid cell.
//
// Walkability, world position and grid coordinates never change after creation.
// GCost, HCost and Parent are scratch state owned by the search in flight.
type Node struct {
	walkable bool
	position mgl32.Vec3
	gridX    int
	gridY    int

	// rawPenalty is the sampled terrain/obstacle penalty before blurring.
	rawPenalty int
	penalty    int

	GCost  int
	HCost  int
	Parent *Node

	heapIndex int
}

func newNode(walkable bool, position mgl32.Vec3, x, y, rawPenalty int) *Node {
	return &Node{
		walkable:   walkable,
		position:   position,
		gridX:      x,
		gridY:      y,
		rawPenalty: rawPenalty,
		penalty:    rawPenalty,
		heapIndex:  heap.InvalidIndex,
	}
}

// Walkable reports whether units may enter the cell.
func (n *Node) Walkable() bool { return n.walkable }

// WorldPosition returns the cell centre in world space.
func (n *Node) WorldPosition() mgl32.Vec3 { return n.position }

// GridX returns the column index.
func (n *Node) GridX() int { return n.gridX }

// GridY returns the row index.
func (n *Node) GridY() int { return n.gridY }

// MovementPenalty returns the blurred cost of stepping onto the cell.
func (n *Node) MovementPenalty() int { return n.penalty }

// FCost is GCost + HCost.
func (n *Node) FCost() int { return n.GCost + n.HCost }

// Compare ranks lower fCost first, then lower hCost.
func (n *Node) Compare(other *Node) int {
	c := cmp.Compare(n.FCost(), other.FCost())
	if c == 0 {
		c = cmp.Compare(n.HCost, other.HCost)
	}
	return -c
}

func (n *Node) HeapIndex() int     { return n.heapIndex }
func (n *Node) SetHeapIndex(i int) { n.heapIndex = i }
