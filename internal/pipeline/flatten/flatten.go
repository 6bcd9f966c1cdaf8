// Package flatten turns a span tree into one record per span, each carrying
// per-category rollups of its subtree.
package flatten

import "github.com/Avi18971911/Tally/internal/analytics/model"

// Visitor observes a walk. Enter is called on the way down, before any of the
// span's children; Leave is called in post-order with the span's record.
type Visitor interface {
	Enter(span *model.Span)
	Leave(span *model.Span, record Record)
}

// Walk visits the tree under root and returns the root's rollups. Each call
// owns its category path, so concurrent walks never share state.
func Walk(root *model.Span, location string, visitor Visitor) VisitState {
	return walk(root, location, nil, visitor)
}

func walk(span *model.Span, location string, path categoryPath, visitor Visitor) VisitState {
	visitor.Enter(span)
	state := newVisitState()
	for _, child := range span.Children {
		state.push(child, path)
		childPath := append(path, child.Category)
		childState := walk(child, location, childPath, visitor)
		state.merge(childState, childPath)
	}
	visitor.Leave(span, newRecord(span, location, state))
	return state
}

type collector struct {
	records []Record
}

func (c *collector) Enter(*model.Span) {}

func (c *collector) Leave(_ *model.Span, record Record) {
	c.records = append(c.records, record)
}

// Flatten returns the records of every span under root in post-order.
func Flatten(root *model.Span, location string) []Record {
	c := &collector{}
	Walk(root, location, c)
	return c.records
}
