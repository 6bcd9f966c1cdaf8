package server

import (
	"encoding/hex"
	"sort"

	"github.com/Avi18971911/Tally/internal/analytics/model"
	"go.opentelemetry.io/proto/otlp/trace/v1"
)

type treeNode struct {
	span     *model.Span
	parentID string
}

// ConstructForest rebuilds span trees from parent span ids. Spans whose
// parent is not in the batch become roots of their own tree. Roots and
// siblings are ordered by start time. A parent cycle is cut at the member
// reached first, which becomes a root.
func ConstructForest(spans []*v1.Span) []*model.Span {
	tree := make(map[string]*treeNode, len(spans))
	order := make([]string, 0, len(spans))
	for _, span := range spans {
		id := hex.EncodeToString(span.SpanId)
		if _, seen := tree[id]; seen {
			continue
		}
		tree[id] = &treeNode{span: convertSpan(span), parentID: hex.EncodeToString(span.ParentSpanId)}
		order = append(order, id)
	}

	breakCycles(tree, order)

	var roots []*model.Span
	for _, id := range order {
		node := tree[id]
		parent, ok := tree[node.parentID]
		if node.parentID == "" || !ok {
			roots = append(roots, node.span)
			continue
		}
		parent.span.Children = append(parent.span.Children, node.span)
	}

	byStart := func(s []*model.Span) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Start.Before(s[j].Start) })
	}
	for _, id := range order {
		byStart(tree[id].span.Children)
	}
	byStart(roots)
	return roots
}

const (
	unvisited = iota
	onPath
	settled
)

func breakCycles(tree map[string]*treeNode, order []string) {
	state := make(map[string]int, len(tree))
	for _, id := range order {
		var path []string
		for cur := id; ; {
			node, ok := tree[cur]
			if !ok || state[cur] == settled {
				break
			}
			if state[cur] == onPath {
				node.parentID = ""
				break
			}
			state[cur] = onPath
			path = append(path, cur)
			cur = node.parentID
		}
		for _, p := range path {
			state[p] = settled
		}
	}
}
