package graph

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

type Field struct {
	Name, Value string
}

type Child struct {
	Name string
	Node *Node
}

type Node struct {
	Name     string
	Fields   []Field
	Children []Child
}

func NewNode(name string) *Node {
	return &Node{
		Name: name,
	}
}

func (n *Node) AddField(name, value string) {
	n.Fields = append(n.Fields, Field{
		Name:  name,
		Value: value,
	})
}

func (n *Node) AddChild(name string, node *Node) {
	n.Children = append(n.Children, Child{
		Name: name,
		Node: node,
	})
}

type Visualizer interface {
	Visualize() *Node
}

// Show renders the tree as a Graphviz graph.
func Show(node *Node) (*gographviz.Graph, error) {
	graph := gographviz.NewGraph()
	graph.Directed = true
	if err := graph.AddAttr("", "rankdir", "LR"); err != nil {
		return nil, errors.Wrap(err, "couldn't set graph direction")
	}
	builder := &graphBuilder{
		graph:        graph,
		nameCounters: make(map[string]int),
	}

	if _, err := getGraphNode(builder, node); err != nil {
		return nil, err
	}

	return graph, nil
}

type graphBuilder struct {
	graph        *gographviz.Graph
	nameCounters map[string]int
}

func (gb *graphBuilder) getID(name string) string {
	count := gb.nameCounters[name]
	gb.nameCounters[name]++
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
	return fmt.Sprintf("n_%s_%d", sanitized, count)
}

func escapeRecordLabel(s string) string {
	replacer := strings.NewReplacer(`"`, `\"`, "<", `\<`, ">", `\>`, "{", `\{`, "}", `\}`, "|", `\|`)
	return replacer.Replace(s)
}

func getGraphNode(gb *graphBuilder, node *Node) (string, error) {
	fields := make([]string, len(node.Fields))
	for i, field := range node.Fields {
		fields[i] = fmt.Sprintf("%s: %s", escapeRecordLabel(field.Name), escapeRecordLabel(field.Value))
	}
	childPorts := make([]string, len(node.Children))
	for i, child := range node.Children {
		childPorts[i] = fmt.Sprintf("<c%d> %s", i, escapeRecordLabel(child.Name))
	}

	var labelParts []string
	labelParts = append(labelParts, fmt.Sprintf("<f0> %s", escapeRecordLabel(node.Name)))

	if len(fields) > 0 {
		labelParts = append(labelParts, strings.Join(fields, "|"))
	}
	if len(childPorts) > 0 {
		labelParts = append(labelParts, strings.Join(childPorts, "|"))
	}

	label := fmt.Sprintf(
		"\"{{%s}}\"",
		strings.Join(labelParts, "}|{"),
	)

	id := gb.getID(node.Name)
	err := gb.graph.AddNode("", id, map[string]string{
		"shape": "record",
		"label": label,
	})
	if err != nil {
		return "", errors.Wrapf(err, "couldn't add node %s", id)
	}

	for i, child := range node.Children {
		childGraphNode, err := getGraphNode(gb, child.Node)
		if err != nil {
			return "", err
		}
		err = gb.graph.AddPortEdge(id, fmt.Sprintf("c%d", i), childGraphNode, "", true, map[string]string{})
		if err != nil {
			return "", errors.Wrapf(err, "couldn't add edge from %s", id)
		}
	}
	return id, nil
}

// Render writes the tree as indented text, one node per line.
func Render(w io.Writer, node *Node) error {
	return render(w, node, "", "")
}

func render(w io.Writer, node *Node, edge, indent string) error {
	line := node.Name
	if edge != "" {
		line = edge + ": " + line
	}
	if len(node.Fields) > 0 {
		fields := make([]string, len(node.Fields))
		for i, field := range node.Fields {
			fields[i] = fmt.Sprintf("%s=%s", field.Name, field.Value)
		}
		line += " [" + strings.Join(fields, ", ") + "]"
	}
	if _, err := fmt.Fprintf(w, "%s%s\n", indent, line); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := render(w, child.Node, child.Name, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}
