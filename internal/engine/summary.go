package engine

import (
	"time"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/detect"
	"github.com/hetulpatel/surveillance/internal/extraction"
	"github.com/hetulpatel/surveillance/internal/prices"
	"github.com/hetulpatel/surveillance/internal/proposition"
)

// Summary is the flat per-pass report written next to the outputs.
type Summary struct {
	Venue                string                        `json:"venue,omitempty"`
	Date                 string                        `json:"date,omitempty"`
	GeneratedAt          time.Time                     `json:"generated_at"`
	Propositions         int                           `json:"propositions"`
	Accepted             int                           `json:"accepted"`
	Reviewed             int                           `json:"review_queue"`
	ByKind               map[proposition.Kind]int      `json:"by_kind"`
	ByConfidence         map[proposition.Level]int     `json:"by_confidence_level"`
	Constraints          int                           `json:"constraints"`
	ConstraintsByType    map[constraint.Type]int       `json:"constraints_by_type"`
	PricesObserved       int                           `json:"prices_observed"`
	Evaluated            int                           `json:"evaluated"`
	Violations           int                           `json:"violations"`
	ViolationsByType     map[constraint.Type]int       `json:"violations_by_type"`
	ViolationsBySeverity map[detect.Severity]int       `json:"violations_by_severity"`
	Diagnostics          map[detect.DiagnosticKind]int `json:"diagnostics"`
	Extraction           *extraction.Stats             `json:"extraction,omitempty"`
}

func summarize(cfg Config, now time.Time, props, accepted []proposition.Proposition, cat *constraint.Catalog, surface prices.Surface, rep detect.Report) Summary {
	s := Summary{
		Venue:                cfg.Venue,
		Date:                 cfg.Date,
		GeneratedAt:          now,
		Propositions:         len(props),
		Accepted:             len(accepted),
		Reviewed:             len(props) - len(accepted),
		ByKind:               make(map[proposition.Kind]int),
		ByConfidence:         make(map[proposition.Level]int),
		Constraints:          cat.Len(),
		ConstraintsByType:    cat.CountByType(),
		PricesObserved:       surface.Len(),
		Evaluated:            rep.Evaluated,
		Violations:           len(rep.Violations),
		ViolationsByType:     rep.ViolationCounts(),
		ViolationsBySeverity: make(map[detect.Severity]int),
		Diagnostics:          rep.DiagnosticCounts(),
	}
	for _, p := range props {
		s.ByKind[p.Kind]++
		s.ByConfidence[proposition.LevelOf(p.Confidence)]++
	}
	for _, v := range rep.Violations {
		s.ViolationsBySeverity[v.Severity]++
	}
	return s
}
