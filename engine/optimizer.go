package engine

import (
	"math"
	"sort"
	"time"

	metrics "github.com/hashicorp/go-metrics"
	"github.com/kochimetro/inductiond/structs"
)

const (
	// FallbackModelVersion and FallbackAlgorithm identify the local
	// rule-based optimizer in plan metadata, which is how callers can tell
	// a degraded run from an external one.
	FallbackModelVersion = "1.0-fallback"
	FallbackAlgorithm    = "Rule-Based Weighted Scoring"
)

// OptimizeResult is the packaged outcome of one optimizer run. It matches
// the external optimizer's wire shape so the two are interchangeable.
type OptimizeResult struct {
	RankedTrains []*structs.RankedTrain       `json:"rankedTrains"`
	Metrics      *structs.OptimizationMetrics `json:"optimizationMetrics"`
	ModelInfo    *structs.ModelInfo           `json:"aiModelInfo"`
}

// Optimize filters the fleet down to hard-eligible candidates, scores them
// against the candidate pool's mean mileage, and ranks them with a
// deterministic (score DESC, code ASC) total order. Empty input yields an
// empty ranking, never an error.
func Optimize(trains []*structs.Train, constraints structs.Constraints, now time.Time) *OptimizeResult {
	defer metrics.MeasureSince([]string{"engine", "optimize"}, time.Now())
	start := time.Now()

	type candidate struct {
		train *structs.Train
		ec    *EvaluatedConstraints
	}

	candidates := make([]*candidate, 0, len(trains))
	for _, t := range trains {
		ec := EvaluateConstraints(t, now)
		if ec.HardEligible {
			candidates = append(candidates, &candidate{train: t, ec: ec})
		}
	}

	result := &OptimizeResult{
		RankedTrains: []*structs.RankedTrain{},
		Metrics: &structs.OptimizationMetrics{
			TotalTrainsEvaluated: len(trains),
		},
		ModelInfo: &structs.ModelInfo{
			Version:    FallbackModelVersion,
			Algorithm:  FallbackAlgorithm,
			Parameters: constraints,
		},
	}
	if len(candidates) == 0 {
		result.Metrics.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result
	}

	var totalMileage int
	for _, c := range candidates {
		totalMileage += c.train.CurrentMileage
	}
	fc := &FleetContext{
		MeanMileage: float64(totalMileage) / float64(len(candidates)),
		Now:         now,
	}

	ranked := make([]*structs.RankedTrain, 0, len(candidates))
	var confidenceSum float64
	for _, c := range candidates {
		sr := ScoreTrain(c.train, c.ec, fc)
		ranked = append(ranked, &structs.RankedTrain{
			TrainID:         c.train.ID,
			TrainCode:       c.train.Code,
			Reasoning:       sr.Reasoning,
			ConfidenceScore: sr.Confidence,
			Score:           sr.Score,
			Constraints: structs.ConstraintFlags{
				FitnessValid:     c.ec.FitnessValid,
				MaintenanceReady: c.ec.MaintenanceReady,
				CleaningStatus:   c.train.CleaningStatus,
				BrandingPriority: brandingPriority(c.train),
				MileageBalance:   round2(sr.MileageBalance),
			},
		})
		confidenceSum += sr.Confidence
	}

	// Ties on score break by trainset code so the ranking is a total order
	// regardless of input or scoring concurrency.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].TrainCode < ranked[j].TrainCode
	})
	for i, rt := range ranked {
		rt.Rank = i + 1
	}

	result.RankedTrains = ranked
	result.Metrics.ConstraintsSatisfied = len(ranked)
	result.Metrics.AverageConfidence = round2(confidenceSum / float64(len(ranked)))
	result.Metrics.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}

func brandingPriority(t *structs.Train) int {
	if !t.Branding.HasBranding {
		return 0
	}
	return t.Branding.Priority
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
