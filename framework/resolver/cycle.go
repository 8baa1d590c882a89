package resolver

import (
	"slices"

	"github.com/km-arc/go-ioc/framework/descriptor"
)

// waitCycle looks for a wait-for cycle among pending entries. An entry waits
// on every unregistered provider of an unsatisfied requirement; a factory
// product stands for its parent. The first cycle found, in queue order, is
// returned as component names closed by the repeated one.
func waitCycle(queue []*descriptor.Pending, universe []*descriptor.Descriptor) []string {
	pending := make(map[*descriptor.Descriptor]*descriptor.Pending, len(queue))
	for _, p := range queue {
		pending[p.Descriptor] = p
	}

	edges := make(map[*descriptor.Descriptor][]*descriptor.Descriptor, len(queue))
	for _, p := range queue {
		for _, r := range p.Requirements() {
			if r.Satisfied() {
				continue
			}
			for _, d := range universe {
				owner := d
				if d.IsProduct() {
					owner = d.Parent
				}
				if _, ok := pending[owner]; !ok || !(r.Accepts(d) || r.AcceptsWhole(d)) {
					continue
				}
				if !slices.Contains(edges[p.Descriptor], owner) {
					edges[p.Descriptor] = append(edges[p.Descriptor], owner)
				}
			}
		}
	}

	const (
		unvisited = iota
		onStack
		done
	)
	mark := make(map[*descriptor.Descriptor]int, len(queue))
	var stack []*descriptor.Descriptor
	var found []*descriptor.Descriptor

	var visit func(d *descriptor.Descriptor) bool
	visit = func(d *descriptor.Descriptor) bool {
		mark[d] = onStack
		stack = append(stack, d)
		for _, next := range edges[d] {
			switch mark[next] {
			case onStack:
				i := slices.Index(stack, next)
				found = append(slices.Clone(stack[i:]), next)
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[d] = done
		return false
	}

	for _, p := range queue {
		if mark[p.Descriptor] == unvisited && visit(p.Descriptor) {
			break
		}
	}
	if found == nil {
		return nil
	}
	names := make([]string, len(found))
	for i, d := range found {
		names[i] = d.String()
	}
	return names
}
