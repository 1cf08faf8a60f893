package graph

import "github.com/USEPA/git-job-log/internal/jobid"

// findCycle returns one cycle path in g, or nil if g is acyclic.
//
// The algorithm:
//  1. Use Tarjan's algorithm to find strongly connected components
//  2. The first SCC with size > 1, or a single node with a self-loop, is a cycle
//  3. Walk edges inside that SCC back to its first node to produce a path
func findCycle(g *Graph) []jobid.ID {
	for _, scc := range tarjanSCC(g) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], g) {
			continue
		}
		if len(scc) == 1 {
			return []jobid.ID{scc[0], scc[0]}
		}
		return reconstructCyclePath(scc, g)
	}
	return nil
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node jobid.ID, g *Graph) bool {
	for _, c := range g.children[node] {
		if c == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in node order so the result is deterministic.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(g *Graph) [][]jobid.ID {
	var (
		index   = 0
		stack   []jobid.ID
		indices = make(map[jobid.ID]int)
		lowlink = make(map[jobid.ID]int)
		onStack = make(map[jobid.ID]bool)
		sccs    [][]jobid.ID
	)

	var strongConnect func(jobid.ID)
	strongConnect = func(v jobid.ID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.children[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of an SCC: pop it
		if lowlink[v] == indices[v] {
			var scc []jobid.ID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}

	return sccs
}

// reconstructCyclePath builds a cycle path through an SCC, starting and
// ending at its first member.
//
// Every SCC member has an in-SCC successor, and a depth-first walk inside
// the SCC always finds its way back to the start.
func reconstructCyclePath(scc []jobid.ID, g *Graph) []jobid.ID {
	inSCC := make(map[jobid.ID]bool, len(scc))
	for _, n := range scc {
		inSCC[n] = true
	}

	start := scc[0]
	visited := make(map[jobid.ID]bool)
	var path []jobid.ID

	var walk func(jobid.ID) bool
	walk = func(v jobid.ID) bool {
		visited[v] = true
		path = append(path, v)
		for _, w := range g.children[v] {
			if !inSCC[w] {
				continue
			}
			if w == start {
				path = append(path, w)
				return true
			}
			if !visited[w] && walk(w) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	walk(start)
	return path
}
