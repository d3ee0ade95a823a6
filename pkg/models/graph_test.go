package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph_Valid(t *testing.T) {
	g, err := NewGraph(
		[]*Node{
			{ID: "q", Kind: KindUserQuery},
			{ID: "o", Kind: KindOutput},
		},
		[]Edge{{SourceID: "q", TargetID: "o"}},
	)

	require.NoError(t, err)
	require.Len(t, g.Nodes(), 2)
	require.Len(t, g.Edges(), 1)

	node, ok := g.NodeByID("q")
	require.True(t, ok)
	assert.Equal(t, KindUserQuery, node.Kind)

	assert.Len(t, g.EdgesFrom("q"), 1)
	assert.Empty(t, g.EdgesFrom("o"))
	assert.Len(t, g.EdgesTo("o"), 1)
	assert.Empty(t, g.EdgesTo("q"))
}

func TestNewGraph_DuplicateNodeID(t *testing.T) {
	_, err := NewGraph(
		[]*Node{
			{ID: "q", Kind: KindUserQuery},
			{ID: "q", Kind: KindOutput},
		},
		nil,
	)

	assert.ErrorIs(t, err, ErrDuplicateNode)
}

func TestNewGraph_UnknownKind(t *testing.T) {
	_, err := NewGraph([]*Node{{ID: "x", Kind: "http_trigger"}}, nil)

	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNewGraph_EdgeToMissingNode(t *testing.T) {
	_, err := NewGraph(
		[]*Node{{ID: "q", Kind: KindUserQuery}},
		[]Edge{{SourceID: "q", TargetID: "ghost"}},
	)

	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNewGraph_SelfLoop(t *testing.T) {
	_, err := NewGraph(
		[]*Node{{ID: "q", Kind: KindUserQuery}},
		[]Edge{{SourceID: "q", TargetID: "q"}},
	)

	assert.ErrorIs(t, err, ErrSelfLoop)
}

func TestNewGraph_DuplicateEdge(t *testing.T) {
	_, err := NewGraph(
		[]*Node{
			{ID: "q", Kind: KindUserQuery},
			{ID: "o", Kind: KindOutput},
		},
		[]Edge{
			{SourceID: "q", TargetID: "o"},
			{SourceID: "q", TargetID: "o"},
		},
	)

	assert.ErrorIs(t, err, ErrDuplicateEdge)
}

func TestParseDefinition(t *testing.T) {
	raw := []byte(`{
		"nodes": [
			{"id": "query-1", "kind": "user_query"},
			{"id": "kb-1", "kind": "knowledge_base", "config": {"top_k": 5}},
			{"id": "llm-1", "kind": "llm_engine", "config": {"temperature": 0.3}},
			{"id": "out-1", "kind": "output"}
		],
		"edges": [
			{"source_id": "query-1", "target_id": "kb-1"},
			{"source_id": "kb-1", "target_id": "llm-1"},
			{"source_id": "llm-1", "target_id": "out-1"}
		]
	}`)

	g, err := ParseDefinition(raw)

	require.NoError(t, err)
	assert.Len(t, g.Nodes(), 4)
	assert.Len(t, g.Edges(), 3)

	kb, ok := g.NodeByID("kb-1")
	require.True(t, ok)
	assert.Equal(t, float64(5), kb.Config["top_k"])
}

func TestParseDefinition_RejectsUnknownKind(t *testing.T) {
	raw := []byte(`{"nodes": [{"id": "x", "kind": "scheduler"}], "edges": []}`)

	_, err := ParseDefinition(raw)

	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseDefinition_MalformedJSON(t *testing.T) {
	_, err := ParseDefinition([]byte(`{"nodes": [`))

	assert.Error(t, err)
}
