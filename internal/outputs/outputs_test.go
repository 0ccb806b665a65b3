package outputs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/surveillance/internal/constraint"
	"github.com/hetulpatel/surveillance/internal/detect"
	"github.com/hetulpatel/surveillance/internal/engine"
	"github.com/hetulpatel/surveillance/internal/prices"
	"github.com/hetulpatel/surveillance/internal/proposition"
	"github.com/hetulpatel/surveillance/internal/triage"
)

func samplePass(t *testing.T) engine.PassResult {
	t.Helper()
	props := []proposition.Proposition{
		{MarketID: "low", Title: "Unclear", Confidence: 0.2},
	}
	supplied := constraint.FromCandidates([]constraint.Candidate{
		{Group: "fed", Type: "exhaustive_partition", MarketIDs: []string{"cut", "hold", "hike"}},
	}, nil, constraint.SourceSupplied)
	surface := prices.NewSurface(map[string]float64{"cut": 0.5, "hold": 0.5, "hike": 0.5})
	eng := engine.New(engine.Config{
		Venue:     "kalshi",
		Date:      "2025-03-01",
		Threshold: triage.DefaultThreshold,
		Now:       func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	return eng.RunPass(props, supplied, surface)
}

func TestEmitWritesPartitionedFiles(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "kalshi", "2025-03-01")
	res := samplePass(t)
	require.Len(t, res.Violations, 1)

	require.NoError(t, w.Emit(context.Background(), res))

	assert.Equal(t, filepath.Join(dir, "violations", "venue=kalshi", "date=2025-03-01", "violations.jsonl"), w.ViolationsPath())
	violations, err := ReadJSONL[detect.Violation](w.ViolationsPath())
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, constraint.ExhaustivePartition, violations[0].ConstraintType)
	assert.Equal(t, detect.SellAll, violations[0].ArbitrageDirection)

	review, err := ReadJSONL[triage.ReviewItem](w.ReviewQueuePath())
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "low", review[0].MarketID)

	raw, err := os.ReadFile(w.SummaryPath())
	require.NoError(t, err)
	var summary engine.Summary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.Violations)
	assert.Equal(t, "kalshi", summary.Venue)
}

func TestEmitReplacesViolationsAndAppendsReview(t *testing.T) {
	w := New(t.TempDir(), "kalshi", "2025-03-01")
	res := samplePass(t)
	ctx := context.Background()

	require.NoError(t, w.Emit(ctx, res))
	require.NoError(t, w.Emit(ctx, res))

	violations, err := ReadJSONL[detect.Violation](w.ViolationsPath())
	require.NoError(t, err)
	assert.Len(t, violations, 1)

	review, err := ReadJSONL[triage.ReviewItem](w.ReviewQueuePath())
	require.NoError(t, err)
	assert.Len(t, review, 2)
}

func TestReadJSONLMissingFile(t *testing.T) {
	recs, err := ReadJSONL[detect.Violation](filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadJSONLReportsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"market_id\":\"a\"}\n\nnot json\n"), 0o644))
	recs, err := ReadJSONL[triage.ReviewItem](path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":3:")
	assert.Len(t, recs, 1)
}

func TestWritePropositions(t *testing.T) {
	w := New(t.TempDir(), "polymarket", "2025-03-01")
	props := []proposition.Proposition{{MarketID: "a", Confidence: 0.9}, {MarketID: "b"}}
	require.NoError(t, w.WritePropositions(props))
	got, err := ReadJSONL[proposition.Proposition](w.PropositionsPath())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].MarketID)
}
