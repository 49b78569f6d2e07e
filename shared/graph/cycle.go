package graph

import "github.com/google/uuid"

type color uint8

const (
	white color = iota // unvisited
	gray               // on the current traversal path
	black              // fully explored
)

// detectCycle runs a depth-first traversal over adjacency starting from
// start and reports the first node found closing a cycle. A node revisited
// while still gray is on the recursion stack, so the path from it back to
// itself is a cycle. O(V+E) over the brand's graph.
func detectCycle(adjacency map[uuid.UUID][]uuid.UUID, start uuid.UUID) (uuid.UUID, bool) {
	colors := make(map[uuid.UUID]color, len(adjacency))

	type frame struct {
		node uuid.UUID
		next int
	}

	stack := []frame{{node: start}}
	colors[start] = gray

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		deps := adjacency[top.node]

		if top.next < len(deps) {
			child := deps[top.next]
			top.next++

			switch colors[child] {
			case gray:
				return child, true
			case white:
				colors[child] = gray
				stack = append(stack, frame{node: child})
			}
			continue
		}

		colors[top.node] = black
		stack = stack[:len(stack)-1]
	}

	return uuid.Nil, false
}
