// Package pathfind runs weighted A* searches over a grid.
package pathfind

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/zyedidia/generic/mapset"

	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/nav/heap"
)

// Step costs: ten per orthogonal step, fourteen (about ten times sqrt 2) per diagonal.
const (
	DefaultAdjacentCost = 10
	DefaultDiagonalCost = 14
)

// cancelCheckInterval is how many expansions run between context checks.
const cancelCheckInterval = 64

// Graph is the view of the grid the planner needs.
type Graph interface {
	NodeFromWorldPoint(p mgl32.Vec3) *grid.Node
	Neighbours(n *grid.Node) []*grid.Node
	MaxSize() int
	RLock()
	RUnlock()
}

// Costs holds the integer step weights.
type Costs struct {
	Adjacent int
	Diagonal int
}

// DefaultCosts returns the 10/14 weights.
func DefaultCosts() Costs {
	return Costs{Adjacent: DefaultAdjacentCost, Diagonal: DefaultDiagonalCost}
}

// Result is the outcome of one search.
type Result struct {
	Waypoints []mgl32.Vec3
	Found     bool
	// Cost is the accumulated gCost at the goal, penalties included.
	Cost int
	// Expanded is the number of cells moved to the closed set.
	Expanded int
}

// Planner searches one path at a time. Concurrent FindPath calls queue on an
// internal mutex, since cells carry per-search scratch state.
type Planner struct {
	graph Graph
	costs Costs
	mu    sync.Mutex
}

// New creates a planner over graph.
func New(graph Graph, costs Costs) *Planner {
	if costs.Adjacent <= 0 || costs.Diagonal <= 0 {
		costs = DefaultCosts()
	}
	return &Planner{graph: graph, costs: costs}
}

// FindPath searches from start to goal. Unwalkable endpoints and an exhausted open
// set are reported as Found=false with a nil error; the error is only set when ctx
// ends the search early.
func (p *Planner) FindPath(ctx context.Context, start, goal mgl32.Vec3) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph.RLock()
	defer p.graph.RUnlock()

	startNode := p.graph.NodeFromWorldPoint(start)
	targetNode := p.graph.NodeFromWorldPoint(goal)

	if !startNode.Walkable() || !targetNode.Walkable() {
		slog.Debug("path endpoints not walkable",
			"start_walkable", startNode.Walkable(),
			"goal_walkable", targetNode.Walkable())
		return Result{}, nil
	}

	openSet := heap.New[*grid.Node](p.graph.MaxSize())
	closedSet := mapset.New[*grid.Node]()

	startNode.GCost = 0
	startNode.HCost = p.distance(startNode, targetNode)
	startNode.Parent = nil
	if err := openSet.Add(startNode); err != nil {
		return Result{}, fmt.Errorf("seeding open set: %w", err)
	}

	found := false
	for iterations := 0; openSet.Count() > 0; iterations++ {
		if iterations%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				openSet.Clear()
				return Result{Expanded: closedSet.Size()}, fmt.Errorf("search canceled: %w", err)
			}
		}

		current, err := openSet.RemoveFirst()
		if err != nil {
			return Result{}, fmt.Errorf("popping open set: %w", err)
		}
		closedSet.Put(current)

		if current == targetNode {
			found = true
			break
		}

		for _, neighbour := range p.graph.Neighbours(current) {
			if !neighbour.Walkable() || closedSet.Has(neighbour) {
				continue
			}

			newCost := current.GCost + p.distance(current, neighbour) + neighbour.MovementPenalty()
			inOpen := openSet.Contains(neighbour)
			if inOpen && newCost >= neighbour.GCost {
				continue
			}

			neighbour.GCost = newCost
			neighbour.HCost = p.distance(neighbour, targetNode)
			neighbour.Parent = current

			if inOpen {
				openSet.UpdateItem(neighbour)
				continue
			}
			if err := openSet.Add(neighbour); err != nil {
				openSet.Clear()
				return Result{}, fmt.Errorf("expanding open set: %w", err)
			}
		}
	}
	openSet.Clear()

	result := Result{Expanded: closedSet.Size()}
	if !found {
		return result, nil
	}

	result.Waypoints = simplifyPath(startNode, retracePath(startNode, targetNode))
	result.Found = len(result.Waypoints) > 0
	result.Cost = targetNode.GCost
	return result, nil
}

// distance is the octile estimate between two cells. It never overestimates the
// true step cost, so the heuristic stays admissible.
func (p *Planner) distance(a, b *grid.Node) int {
	distX := abs(a.GridX() - b.GridX())
	distY := abs(a.GridY() - b.GridY())

	if distX > distY {
		return p.costs.Diagonal*distY + p.costs.Adjacent*(distX-distY)
	}
	return p.costs.Diagonal*distX + p.costs.Adjacent*(distY-distX)
}

// retracePath follows parents back from end and returns the cells after start,
// in travel order.
func retracePath(start, end *grid.Node) []*grid.Node {
	var path []*grid.Node
	for n := end; n != start && n != nil; n = n.Parent {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// simplifyPath keeps the cells where the grid direction changes, plus the goal.
// Collinear steps collapse into their end point.
func simplifyPath(start *grid.Node, path []*grid.Node) []mgl32.Vec3 {
	if len(path) == 0 {
		return nil
	}

	waypoints := make([]mgl32.Vec3, 0, 8)
	prev := start
	var dirOld [2]int
	for i, n := range path {
		dirNew := [2]int{n.GridX() - prev.GridX(), n.GridY() - prev.GridY()}
		if i > 0 && dirNew != dirOld {
			waypoints = append(waypoints, prev.WorldPosition())
		}
		dirOld = dirNew
		prev = n
	}
	return append(waypoints, path[len(path)-1].WorldPosition())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
