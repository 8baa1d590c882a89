package container

import (
	"errors"
	"fmt"
	"strconv"

	"ocm.software/open-component-model/bindings/go/dag"

	"github.com/km-arc/go-ioc/framework/descriptor"
)

// Vertex attribute keys on the dependency graph.
const (
	AttributeComponent = "ioc/component"
	AttributeType      = "ioc/type"
	AttributeQualifier = "ioc/qualifier"
	AttributeIndex     = "ioc/index"
)

// graph is the resolved dependency graph: one vertex per registered
// component, edges from consumer to provider and from factory product to
// parent.
type graph struct {
	dag  *dag.DirectedAcyclicGraph[string]
	ids  map[*descriptor.Descriptor]string
	byID map[string]*descriptor.Descriptor
}

func buildGraph(components []*descriptor.Descriptor) (*graph, error) {
	g := &graph{
		dag:  dag.NewDirectedAcyclicGraph[string](),
		ids:  make(map[*descriptor.Descriptor]string, len(components)),
		byID: make(map[string]*descriptor.Descriptor, len(components)),
	}
	for i, d := range components {
		id := d.String()
		for n := 2; g.byID[id] != nil; n++ {
			id = d.String() + "#" + strconv.Itoa(n)
		}
		if err := g.dag.AddVertex(id, map[string]any{
			AttributeComponent: d,
			AttributeType:      descriptor.TypeName(d.Type),
			AttributeQualifier: d.Qualifier,
			AttributeIndex:     i,
		}); err != nil {
			return nil, fmt.Errorf("dependency graph: %w", err)
		}
		g.ids[d] = id
		g.byID[id] = d
	}
	for _, d := range components {
		if d.IsProduct() {
			if err := g.edge(d, d.Parent); err != nil {
				return nil, err
			}
		}
		for _, consumer := range d.Dependents() {
			if err := g.edge(consumer, d); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// edge adds consumer → provider. Consumers outside the registry are ignored,
// and so is an edge closing a cycle (a live collection fed by one of its own
// consumers).
func (g *graph) edge(consumer, provider *descriptor.Descriptor) error {
	from, ok := g.ids[consumer]
	if !ok {
		return nil
	}
	to, ok := g.ids[provider]
	if !ok {
		return nil
	}
	err := g.dag.AddEdge(from, to)
	var cycle *dag.CycleError
	if err != nil && !errors.As(err, &cycle) {
		return fmt.Errorf("dependency graph: %w", err)
	}
	return nil
}

// order returns providers before their consumers.
func (g *graph) order() ([]*descriptor.Descriptor, error) {
	ids, err := g.dag.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("dependency graph: %w", err)
	}
	out := make([]*descriptor.Descriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.byID[id])
	}
	return out, nil
}

// ── Container accessors ───────────────────────────────────────────────────────

// Graph returns a copy of the dependency graph. Vertex IDs are component
// names, suffixed with #n when a name repeats.
func (c *Container) Graph() *dag.DirectedAcyclicGraph[string] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.graph == nil {
		return dag.NewDirectedAcyclicGraph[string]()
	}
	return c.graph.dag.Clone()
}

// GraphID returns the vertex ID of d.
func (c *Container) GraphID(d *descriptor.Descriptor) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.graph == nil {
		return "", false
	}
	id, ok := c.graph.ids[d]
	return id, ok
}

// DependencyOrder returns every component with providers ahead of the
// components that consume them.
func (c *Container) DependencyOrder() ([]*descriptor.Descriptor, error) {
	c.mu.RLock()
	g := c.graph
	c.mu.RUnlock()
	if g == nil {
		return nil, nil
	}
	return g.order()
}
