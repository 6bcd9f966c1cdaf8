package flatten

import (
	"slices"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
)

// VisitState holds the rollups of one span's subtree, keyed by category.
type VisitState struct {
	Counts    map[string]int
	Durations map[string]time.Duration
}

func newVisitState() VisitState {
	return VisitState{
		Counts:    make(map[string]int),
		Durations: make(map[string]time.Duration),
	}
}

// categoryPath is the chain of categories between the walked root and the
// span being visited. The root's own category is not part of it.
type categoryPath []string

func (p categoryPath) contains(category string) bool {
	return slices.Contains(p, category)
}

// push records a direct child. Its time only counts when no ancestor on the
// path already carries the same category.
func (v VisitState) push(child *model.Span, path categoryPath) {
	v.Counts[child.Category]++
	if !path.contains(child.Category) {
		v.Durations[child.Category] += child.Duration()
	}
}

// merge folds a child's rollups in. path must still include the child.
func (v VisitState) merge(child VisitState, path categoryPath) {
	for category, count := range child.Counts {
		v.Counts[category] += count
	}
	for category, duration := range child.Durations {
		if !path.contains(category) {
			v.Durations[category] += duration
		}
	}
}
