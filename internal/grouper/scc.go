package grouper

import (
	"slices"

	"github.com/kdice/kdice/internal/kconfig"
)

// tarjanFrame is one simulated call of the recursive strongconnect step.
type tarjanFrame struct {
	node int
	next int
}

// StronglyConnected returns the strongly connected components of the subgraph induced by the
// enabled options, with an iterative Tarjan over the graph's index arena. Components are returned
// dependencies first: a component is emitted after every component it needs. Members of each
// component are in graph order.
func StronglyConnected(g *kconfig.Graph, a *kconfig.Assignment) [][]int {
	n := g.Len()
	succ := make([][]int, n)

	for id := range n {
		if !a.Enabled(id) {
			continue
		}

		for _, edge := range g.Needs(id) {
			if a.Enabled(edge.To) {
				succ[id] = append(succ[id], edge.To)
			}
		}
	}

	var (
		index   = make([]int, n)
		low     = make([]int, n)
		onStack = make([]bool, n)
		stack   []int
		sccs    [][]int
		counter int
	)

	visit := func(node int) tarjanFrame {
		counter++
		index[node], low[node] = counter, counter
		stack = append(stack, node)
		onStack[node] = true

		return tarjanFrame{node: node}
	}

	for root := range n {
		if !a.Enabled(root) || index[root] != 0 {
			continue
		}

		calls := []tarjanFrame{visit(root)}

		for len(calls) > 0 {
			frame := &calls[len(calls)-1]

			if frame.next < len(succ[frame.node]) {
				next := succ[frame.node][frame.next]
				frame.next++

				switch {
				case index[next] == 0:
					calls = append(calls, visit(next))
				case onStack[next]:
					low[frame.node] = min(low[frame.node], index[next])
				}

				continue
			}

			node := frame.node
			calls = calls[:len(calls)-1]

			if len(calls) > 0 {
				caller := calls[len(calls)-1].node
				low[caller] = min(low[caller], low[node])
			}

			if low[node] != index[node] {
				continue
			}

			var component []int

			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				component = append(component, top)

				if top == node {
					break
				}
			}

			slices.Sort(component)
			sccs = append(sccs, component)
		}
	}

	return sccs
}
