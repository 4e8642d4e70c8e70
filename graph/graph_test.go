package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *Node {
	root := NewNode("union all")
	root.AddField("all", "true")

	left := NewNode("subquery")
	left.AddField("alias", "*SELECT* 1")
	right := NewNode("subquery")
	right.AddField("alias", "*SELECT* 2")
	right.AddChild("filter", NewNode("<"))

	root.AddChild("left", left)
	root.AddChild("right", right)
	return root
}

func TestShow(t *testing.T) {
	g, err := Show(testTree())
	require.NoError(t, err)

	out := g.String()
	assert.Contains(t, out, "n_union_all_0")
	assert.Contains(t, out, "n_subquery_0")
	assert.Contains(t, out, "n_subquery_1")
	assert.Contains(t, out, "->")
}

func TestRender(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Render(&sb, testTree()))

	want := `union all [all=true]
  left: subquery [alias=*SELECT* 1]
  right: subquery [alias=*SELECT* 2]
    filter: <
`
	assert.Equal(t, want, sb.String())
}
