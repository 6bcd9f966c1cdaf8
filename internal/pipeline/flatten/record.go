package flatten

import (
	"strings"
	"time"

	"github.com/Avi18971911/Tally/internal/analytics/model"
)

// Record is the flat form of one span, ready for an exporter.
type Record struct {
	Category      string
	Name          string
	Location      string
	Start         time.Time
	End           time.Time
	Duration      time.Duration
	InnerDuration time.Duration // negative when children overrun the parent
	ChildCount    int
	Tags          map[string]string
	Metadata      map[string]string
	Measures      map[string]float64
	Counts        map[string]int
	Durations     map[string]time.Duration
}

func newRecord(span *model.Span, location string, state VisitState) Record {
	inner := span.Duration()
	for _, child := range span.Children {
		inner -= child.Duration()
	}
	return Record{
		Category:      span.Category,
		Name:          ProperString(span.Name),
		Location:      location,
		Start:         span.Start,
		End:           span.End,
		Duration:      span.Duration(),
		InnerDuration: inner,
		ChildCount:    len(span.Children),
		Tags:          properMap(span.Tags),
		Metadata:      properMap(span.Metadata),
		Measures:      span.Measures,
		Counts:        state.Counts,
		Durations:     state.Durations,
	}
}

// CountFields renders the count rollups as "<category>_count".
func (r Record) CountFields() map[string]int64 {
	fields := make(map[string]int64, len(r.Counts))
	for category, count := range r.Counts {
		fields[category+"_count"] = int64(count)
	}
	return fields
}

// DurationFields renders the duration rollups as "<category>_duration" in
// milliseconds.
func (r Record) DurationFields() map[string]int64 {
	fields := make(map[string]int64, len(r.Durations))
	for category, duration := range r.Durations {
		fields[category+"_duration"] = duration.Milliseconds()
	}
	return fields
}

// ProperString makes a value storable as a tag: newlines become spaces.
func ProperString(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

func properMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[ProperString(k)] = ProperString(v)
	}
	return out
}
