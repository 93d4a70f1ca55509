// Package graph folds unit reports into a cross-unit call graph and computes
// PageRank over it.
package graph

import (
	"math"
	"sort"

	"github.com/phobologic/fanout/internal/model"
)

// BuildCallGraph merges unit reports into one function per signature and
// one edge per caller/callee name pair.
//
// A signature defined in several units (an inline function from a shared
// header, a static helper copied around) is attributed to the first unit in
// report order and its callees are counted once. An edge is only included
// when the callee is a known definition; Fanout still counts every distinct
// callee, defined or not.
func BuildCallGraph(reports []model.UnitReport) ([]model.FunctionInfo, []model.CallEdge) {
	type fn struct {
		info    model.FunctionInfo
		def     model.Definition
		callers map[string]struct{}
	}

	funcs := make(map[string]*fn)
	var order []string
	for i := range reports {
		for j := range reports[i].Definitions {
			d := reports[i].Definitions[j]
			key := d.Signature.String()
			if _, dup := funcs[key]; dup {
				continue
			}
			funcs[key] = &fn{
				info: model.FunctionInfo{
					Name:      d.Name,
					Unit:      reports[i].Source,
					Signature: key,
				},
				def:     d,
				callers: make(map[string]struct{}),
			}
			order = append(order, key)
		}
	}

	type edgeKey struct{ caller, callee string }
	counts := make(map[edgeKey]int)

	for _, key := range order {
		f := funcs[key]
		distinct := make(map[string]struct{})
		for _, c := range f.def.Callees {
			ckey := c.String()
			distinct[ckey] = struct{}{}
			target, ok := funcs[ckey]
			if !ok {
				continue
			}
			target.callers[key] = struct{}{}
			counts[edgeKey{f.info.Name, c.Name}]++
		}
		f.info.Fanout = len(distinct)
	}

	infos := make([]model.FunctionInfo, 0, len(order))
	for _, key := range order {
		f := funcs[key]
		f.info.Fanin = len(f.callers)
		infos = append(infos, f.info)
	}

	edges := make([]model.CallEdge, 0, len(counts))
	for k, n := range counts {
		edges = append(edges, model.CallEdge{Caller: k.caller, Callee: k.callee, Count: n})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		return edges[i].Callee < edges[j].Callee
	})

	return infos, edges
}

// Rank applies PageRank to functions and sorts them by rank descending.
// Every call site is an edge from caller to callee, so widely called
// functions rank highest. Ties are broken by name.
func Rank(functions []model.FunctionInfo, edges []model.CallEdge) {
	if len(functions) == 0 {
		return
	}

	nodes := make(map[string]struct{})
	for i := range functions {
		nodes[functions[i].Name] = struct{}{}
	}

	if len(edges) == 0 {
		uniform := 1.0 / float64(len(nodes))
		for i := range functions {
			functions[i].Rank = uniform
		}
	} else {
		outEdges := make(map[string][]string) // node → list of targets (with repeats for multi-edges)
		outDegree := make(map[string]int)     // total out-edges per node

		for _, e := range edges {
			if e.Caller == e.Callee {
				continue // recursion adds nothing to reachability
			}
			for range e.Count {
				outEdges[e.Caller] = append(outEdges[e.Caller], e.Callee)
				outDegree[e.Caller]++
			}
		}

		ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
		for i := range functions {
			functions[i].Rank = ranks[functions[i].Name]
		}
	}

	sort.SliceStable(functions, func(i, j int) bool {
		if functions[i].Rank != functions[j].Rank {
			return functions[i].Rank > functions[j].Rank
		}
		return functions[i].Name < functions[j].Name
	})
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	names := make([]string, 0, n)
	for node := range nodes {
		names = append(names, node)
	}
	sort.Strings(names)

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for _, node := range names {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling node contribution (nodes with no outgoing edges)
		var danglingSum float64
		for _, node := range names {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for _, node := range names {
			newRank[node] = teleport + danglingContrib
		}

		// Distribute rank through edges, in name order for stable sums
		for _, src := range names {
			targets := outEdges[src]
			if len(targets) == 0 {
				continue
			}
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		// Check convergence
		var diff float64
		for _, node := range names {
			diff += math.Abs(newRank[node] - rank[node])
		}

		rank = newRank

		if diff < tol {
			break
		}
	}

	return rank
}
