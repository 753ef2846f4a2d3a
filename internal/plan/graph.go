package plan

import (
	"github.com/emicklei/dot"
)

// Graph builds a Graphviz representation of the plan's dependency graph.
// Edges point from a resource to the dependency it waits on.
func Graph(resources []Resource) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")
	g.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
	})

	nodes := make(map[string]dot.Node, len(resources))
	for _, r := range resources {
		n := g.Node(r.Name)
		if r.Kind != "" {
			n.Label(r.Name + "\n(" + string(r.Kind) + ")")
		}
		nodes[r.Name] = n
	}
	for _, r := range resources {
		for _, dep := range r.DependsOn {
			to, ok := nodes[dep]
			if !ok {
				continue
			}
			g.Edge(nodes[r.Name], to)
		}
	}
	return g
}

// DOT renders the dependency graph as Graphviz DOT text.
func DOT(resources []Resource) string {
	return Graph(resources).String()
}

// Mermaid renders the dependency graph as Mermaid text for markdown embeds.
func Mermaid(resources []Resource) string {
	return dot.MermaidGraph(Graph(resources), dot.MermaidTopToBottom)
}
