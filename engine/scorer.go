package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kochimetro/inductiond/structs"
)

const (
	// Scoring weights for the rule-based fallback optimizer.
	weightFitness        = 30.0
	weightOperational    = 25.0
	weightNoMaintenance  = 10.0
	weightMileageCeiling = 15.0
	weightBrandingFactor = 2.0
	weightTelemetry      = 0.1
	weightClean          = 5.0

	// Confidence is the score compressed into a band users read as a
	// certainty percentage. Ordering is preserved within the band.
	confidenceFloor   = 60.0
	confidenceCeiling = 100.0
)

// FleetContext is the fleet-wide state a single trainset is scored against.
type FleetContext struct {
	MeanMileage float64
	Now         time.Time
}

// ScoreResult is the outcome of scoring one trainset: the raw score, the
// clamped confidence, and the reproducible reasoning trace.
type ScoreResult struct {
	Score          float64
	Confidence     float64
	Reasoning      string
	MileageBalance float64
}

// ScoreTrain computes the weighted score of an evaluated trainset. The
// reasoning string interpolates the concrete figures so the justification is
// reproducible from inputs alone.
func ScoreTrain(t *structs.Train, ec *EvaluatedConstraints, fc *FleetContext) *ScoreResult {
	var score float64
	var phrases []string

	if ec.FitnessValid {
		score += weightFitness
		phrases = append(phrases, "Valid fitness certificate")
	}
	if t.MaintenanceStatus == structs.MaintenanceStatusOperational {
		score += weightOperational
		phrases = append(phrases, "Operational status confirmed")
		if !ec.MaintenanceDue {
			score += weightNoMaintenance
			phrases = append(phrases, "No pending maintenance")
		}
	}

	mileageTerm := math.Max(0, weightMileageCeiling-math.Abs(float64(t.CurrentMileage)-fc.MeanMileage)/1000)
	if mileageTerm > 0 {
		score += mileageTerm
		phrases = append(phrases, fmt.Sprintf("Current mileage: %skm", humanize.Comma(int64(t.CurrentMileage))))
	}

	if t.Branding.HasBranding {
		score += weightBrandingFactor * float64(t.Branding.Priority)
		phrases = append(phrases, fmt.Sprintf("Branding priority: %d/%d", t.Branding.Priority, structs.BrandingPriorityMax))
	}

	if t.PerformanceScore > 0 {
		score += weightTelemetry * t.PerformanceScore
		phrases = append(phrases, fmt.Sprintf("Performance score: %.1f", t.PerformanceScore))
	}
	if t.ReliabilityScore > 0 {
		score += weightTelemetry * t.ReliabilityScore
		phrases = append(phrases, fmt.Sprintf("Reliability score: %.1f", t.ReliabilityScore))
	}

	if t.CleaningStatus == structs.CleaningStatusClean {
		score += weightClean
		phrases = append(phrases, "Cleaning status: CLEAN")
	}

	phrases = append(phrases, fmt.Sprintf("Overall optimization score: %d", int(math.Round(score))))

	return &ScoreResult{
		Score:          score,
		Confidence:     clampConfidence(score),
		Reasoning:      strings.Join(phrases, "; "),
		MileageBalance: mileageTerm,
	}
}

// clampConfidence compresses a score into the [60, 100] confidence band. A
// zero or negative score still yields the floor, distinguishing "ranked but
// weak" from "excluded".
func clampConfidence(score float64) float64 {
	c := math.Round(score)
	if c < confidenceFloor {
		return confidenceFloor
	}
	if c > confidenceCeiling {
		return confidenceCeiling
	}
	return c
}
