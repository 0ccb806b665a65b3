package triage

import (
	"sort"

	"github.com/hetulpatel/surveillance/internal/proposition"
)

// Stats summarizes a review queue.
type Stats struct {
	Total    int                       `json:"total"`
	ByStatus map[Status]int            `json:"by_status"`
	ByLevel  map[proposition.Level]int `json:"by_confidence_level"`
	ByKind   map[proposition.Kind]int  `json:"by_kind"`
	// MeanConfidence is zero for an empty queue.
	MeanConfidence float64 `json:"mean_confidence"`
	// TopReasons lists the most common reasons, most frequent first.
	TopReasons []ReasonCount `json:"top_reasons,omitempty"`
}

type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Summarize counts items by status, level, kind and reason. limit caps
// TopReasons; zero keeps all.
func Summarize(items []ReviewItem, limit int) Stats {
	st := Stats{
		Total:    len(items),
		ByStatus: make(map[Status]int),
		ByLevel:  make(map[proposition.Level]int),
		ByKind:   make(map[proposition.Kind]int),
	}
	reasons := make(map[string]int)
	var sum float64
	for _, it := range items {
		sum += it.Confidence
		st.ByStatus[it.Status]++
		st.ByLevel[it.Level]++
		st.ByKind[it.Kind]++
		reasons[it.Reason]++
	}
	if len(items) > 0 {
		st.MeanConfidence = sum / float64(len(items))
	}
	for r, n := range reasons {
		st.TopReasons = append(st.TopReasons, ReasonCount{Reason: r, Count: n})
	}
	sort.Slice(st.TopReasons, func(i, j int) bool {
		if st.TopReasons[i].Count != st.TopReasons[j].Count {
			return st.TopReasons[i].Count > st.TopReasons[j].Count
		}
		return st.TopReasons[i].Reason < st.TopReasons[j].Reason
	})
	if limit > 0 && len(st.TopReasons) > limit {
		st.TopReasons = st.TopReasons[:limit]
	}
	return st
}
