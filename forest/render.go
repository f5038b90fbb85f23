package forest

import (
	"cmp"
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

// RenderDOT renders the forest as a Graphviz DOT digraph, a debugging
// aid for finished searches. Subtrees below depth, and nodes selected at
// most theta times, are drawn as leaves.
func RenderDOT[A, O cmp.Ordered](f *Forest[A, O], theta uint32, depth int) (string, error) {
	graph := gographviz.NewGraph()
	if err := graph.SetName("forest"); err != nil {
		return "", errors.Wrap(err, "failed to name DOT graph")
	}
	if err := graph.SetDir(true); err != nil {
		return "", errors.Wrap(err, "failed to set DOT graph directed")
	}
	r := renderer[A, O]{forest: f, graph: graph, theta: theta}
	for _, root := range f.roots {
		if _, err := r.render(root, depth); err != nil {
			return "", err
		}
	}
	return graph.String(), nil
}

// WriteDOT renders the forest with RenderDOT and writes it to w.
func WriteDOT[A, O cmp.Ordered](w io.Writer, f *Forest[A, O], theta uint32, depth int) error {
	dot, err := RenderDOT(f, theta, depth)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, dot)
	return errors.Wrap(err, "failed to write DOT graph")
}

type renderer[A, O cmp.Ordered] struct {
	forest *Forest[A, O]
	graph  *gographviz.Graph
	theta  uint32
	count  int
}

func (r *renderer[A, O]) render(id NodeID, depth int) (string, error) {
	name := "n" + strconv.Itoa(r.count)
	r.count++
	node := r.forest.Node(id)
	leaf := depth == 0 || node.SelectCount() <= r.theta
	attrs := map[string]string{
		"shape": "box",
		"label": strconv.Quote(nodeLabel(node, leaf)),
	}
	if err := r.graph.AddNode("forest", name, attrs); err != nil {
		return "", errors.Wrapf(err, "failed to add DOT node %s", name)
	}
	if leaf {
		return name, nil
	}
	for obs, childID := range node.Children() {
		childName, err := r.render(childID, depth-1)
		if err != nil {
			return "", err
		}
		edgeAttrs := map[string]string{"label": strconv.Quote(fmt.Sprintf("%v", obs))}
		if err := r.graph.AddEdge(name, childName, true, edgeAttrs); err != nil {
			return "", errors.Wrapf(err, "failed to add DOT edge %s->%s", name, childName)
		}
	}
	return name, nil
}

func nodeLabel[A, O cmp.Ordered](node *Node[A, O], leaf bool) string {
	value := node.Value()
	label := fmt.Sprintf("n=%d\nv=%.4f (%d)", node.SelectCount(), value.Mean(), value.Count())
	if leaf || node.NumActions() == 0 {
		return label
	}
	for action, info := range node.Actions() {
		label += fmt.Sprintf("\n%v: p=%.3f n=%d q=%.3f",
			action, info.StaticPolicyScore(), info.SelectCount(), info.Value())
	}
	return label
}
