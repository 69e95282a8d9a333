// Package structs holds the domain types shared by the induction planning
// engine, the state store, and the HTTP agent.
package structs

import (
	"fmt"
	"regexp"
	"time"

	multierror "github.com/hashicorp/go-multierror"
)

const (
	MaintenanceStatusOperational   = "OPERATIONAL"
	MaintenanceStatusDue           = "MAINTENANCE_DUE"
	MaintenanceStatusInMaintenance = "IN_MAINTENANCE"

	CleaningStatusClean      = "CLEAN"
	CleaningStatusDue        = "CLEANING_DUE"
	CleaningStatusInCleaning = "IN_CLEANING"

	PlanStatusDraft      = "DRAFT"
	PlanStatusFinalized  = "FINALIZED"
	PlanStatusSimulation = "SIMULATION"

	AlertTypeCritical = "CRITICAL"
	AlertTypeWarning  = "WARNING"
	AlertTypeInfo     = "INFO"

	UrgencyLow      = "LOW"
	UrgencyMedium   = "MEDIUM"
	UrgencyHigh     = "HIGH"
	UrgencyCritical = "CRITICAL"
)

const (
	// BrandingPriorityMin and BrandingPriorityMax bound the contractual
	// priority of an exterior branding campaign.
	BrandingPriorityMin = 1
	BrandingPriorityMax = 5

	// PlanDateLayout is the wire and storage format for plan dates.
	PlanDateLayout = "2006-01-02"
)

// validTrainCode matches trainset codes such as TS-07.
var validTrainCode = regexp.MustCompile(`^TS-\d{2}$`)

// ValidTrainCode returns whether code is a well-formed trainset code.
func ValidTrainCode(code string) bool {
	return validTrainCode.MatchString(code)
}

// FitnessStatus is the regulatory fitness certificate state of a trainset.
type FitnessStatus struct {
	Valid          bool       `json:"valid"`
	Expiry         time.Time  `json:"expiry"`
	LastInspection *time.Time `json:"lastInspection,omitempty"`
}

func (f *FitnessStatus) Copy() *FitnessStatus {
	if f == nil {
		return nil
	}
	nf := new(FitnessStatus)
	*nf = *f
	if f.LastInspection != nil {
		li := *f.LastInspection
		nf.LastInspection = &li
	}
	return nf
}

// Branding captures an exterior advertising campaign obligation.
type Branding struct {
	HasBranding bool   `json:"hasBranding"`
	Campaign    string `json:"campaign,omitempty"`
	Priority    int    `json:"priority"`
}

// Train is one physical trainset. The ID is the opaque stable identifier
// assigned by the store; Code is the human-readable trainset number.
type Train struct {
	ID   string `json:"id"`
	Code string `json:"code"`

	Fitness FitnessStatus `json:"fitnessStatus"`

	MaintenanceStatus  string    `json:"maintenanceStatus"`
	LastMaintenance    time.Time `json:"lastMaintenance"`
	NextMaintenanceDue time.Time `json:"nextMaintenanceDue"`

	CleaningStatus string `json:"cleaningStatus"`

	CurrentMileage        int     `json:"currentMileage"`
	CurrentLocation       string  `json:"currentLocation"`
	AvailableForService   bool    `json:"availableForService"`
	TotalOperationalHours float64 `json:"totalOperationalHours"`

	Branding Branding `json:"branding"`

	// PerformanceScore and ReliabilityScore come from upstream telemetry
	// when present. Zero means "not provided".
	PerformanceScore float64 `json:"performanceScore,omitempty"`
	ReliabilityScore float64 `json:"reliabilityScore,omitempty"`
}

func (t *Train) Copy() *Train {
	if t == nil {
		return nil
	}
	nt := new(Train)
	*nt = *t
	if t.Fitness.LastInspection != nil {
		li := *t.Fitness.LastInspection
		nt.Fitness.LastInspection = &li
	}
	return nt
}

// Validate checks the structural invariants of a trainset record.
func (t *Train) Validate() error {
	var mErr multierror.Error

	if !ValidTrainCode(t.Code) {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("invalid trainset code %q", t.Code))
	}
	if t.CurrentMileage < 0 {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("mileage must be non-negative, got %d", t.CurrentMileage))
	}
	if t.TotalOperationalHours < 0 {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("operational hours must be non-negative, got %f", t.TotalOperationalHours))
	}
	switch t.MaintenanceStatus {
	case MaintenanceStatusOperational, MaintenanceStatusDue, MaintenanceStatusInMaintenance:
	default:
		mErr.Errors = append(mErr.Errors, fmt.Errorf("invalid maintenance status %q", t.MaintenanceStatus))
	}
	switch t.CleaningStatus {
	case CleaningStatusClean, CleaningStatusDue, CleaningStatusInCleaning:
	default:
		mErr.Errors = append(mErr.Errors, fmt.Errorf("invalid cleaning status %q", t.CleaningStatus))
	}
	if t.Branding.HasBranding {
		if p := t.Branding.Priority; p < BrandingPriorityMin || p > BrandingPriorityMax {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("branding priority must be in [%d, %d], got %d",
				BrandingPriorityMin, BrandingPriorityMax, p))
		}
	}

	return mErr.ErrorOrNil()
}

// Canonicalize fills documented defaults on optional fields.
func (t *Train) Canonicalize() {
	if t.Branding.HasBranding && t.Branding.Priority == 0 {
		t.Branding.Priority = BrandingPriorityMin
	}
}

// DaysSinceLastMaintenance is derived, never stored.
func (t *Train) DaysSinceLastMaintenance(now time.Time) int {
	if t.LastMaintenance.IsZero() {
		return 0
	}
	return int(now.Sub(t.LastMaintenance).Hours() / 24)
}

// ServiceReady reports whether the trainset could enter revenue service at
// the given instant without any planning judgement applied.
func (t *Train) ServiceReady(now time.Time) bool {
	return t.Fitness.Valid &&
		t.MaintenanceStatus == MaintenanceStatusOperational &&
		t.AvailableForService &&
		t.Fitness.Expiry.After(now)
}

// Constraints is the opaque caller-supplied weight bag. The fallback scorer
// records but does not interpret it; the field set is reserved.
type Constraints map[string]any

// ConstraintFlags is the per-entry constraint attribution stored with a
// ranked trainset.
type ConstraintFlags struct {
	FitnessValid     bool    `json:"fitnessValid"`
	MaintenanceReady bool    `json:"maintenanceReady"`
	CleaningStatus   string  `json:"cleaningStatus"`
	BrandingPriority int     `json:"brandingPriority"`
	MileageBalance   float64 `json:"mileageBalance"`
}

// RankedTrain is one entry of a plan's ranking. TrainID is a weak reference:
// resolution at read time tolerates a trainset that has since been deleted,
// with TrainCode preserved verbatim.
type RankedTrain struct {
	TrainID         string          `json:"trainId"`
	TrainCode       string          `json:"trainCode"`
	Rank            int             `json:"rank"`
	Reasoning       string          `json:"reasoning"`
	ConfidenceScore float64         `json:"confidenceScore"`
	Constraints     ConstraintFlags `json:"constraints"`

	// Score orders the ranking but is not part of the wire contract.
	Score float64 `json:"-"`
}

func (r *RankedTrain) Copy() *RankedTrain {
	if r == nil {
		return nil
	}
	nr := new(RankedTrain)
	*nr = *r
	return nr
}

// Alert is a severity-graded fleet condition, independent of ranking.
type Alert struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	TrainCode string `json:"trainCode"`
	Severity  int    `json:"severity"`
}

func (a *Alert) Copy() *Alert {
	if a == nil {
		return nil
	}
	na := new(Alert)
	*na = *a
	return na
}

// OptimizationMetrics summarizes one optimizer run.
type OptimizationMetrics struct {
	TotalTrainsEvaluated int     `json:"totalTrainsEvaluated"`
	ConstraintsSatisfied int     `json:"constraintsSatisfied"`
	AverageConfidence    float64 `json:"averageConfidence"`
	ProcessingTimeMs     int64   `json:"processingTimeMs"`
}

// ModelInfo identifies which optimizer produced a plan.
type ModelInfo struct {
	Version    string      `json:"version"`
	Algorithm  string      `json:"algorithm"`
	Parameters Constraints `json:"parameters,omitempty"`
}

// SimulationParams records the hypothetical a simulation applied.
type SimulationParams struct {
	TargetTrain   string         `json:"targetTrain"`
	Modifications map[string]any `json:"modifications"`
}

// ImpactAnalysis describes how a simulated modification moved the target.
type ImpactAnalysis struct {
	NewRank        *int   `json:"newRank"`
	RankChange     string `json:"rankChange"`
	AffectedTrains int    `json:"affectedTrains"`
}

// InductionPlan is one immutable planning decision. FINALIZED plans are
// unique per PlanDate unless regeneration is forced, in which case the
// superseded plan stays addressable in history.
type InductionPlan struct {
	ID          string    `json:"id"`
	PlanDate    string    `json:"planDate"`
	GeneratedAt time.Time `json:"generatedAt"`
	Status      string    `json:"status"`

	RankedTrains []*RankedTrain       `json:"rankedTrains"`
	Alerts       []*Alert             `json:"alerts"`
	Metrics      *OptimizationMetrics `json:"optimizationMetrics"`

	SimulationParams *SimulationParams `json:"simulationParams,omitempty"`

	GeneratedBy string     `json:"generatedBy"`
	ModelInfo   *ModelInfo `json:"aiModelInfo"`
}

func (p *InductionPlan) Copy() *InductionPlan {
	if p == nil {
		return nil
	}
	np := new(InductionPlan)
	*np = *p
	if p.RankedTrains != nil {
		np.RankedTrains = make([]*RankedTrain, len(p.RankedTrains))
		for i, rt := range p.RankedTrains {
			np.RankedTrains[i] = rt.Copy()
		}
	}
	if p.Alerts != nil {
		np.Alerts = make([]*Alert, len(p.Alerts))
		for i, a := range p.Alerts {
			np.Alerts[i] = a.Copy()
		}
	}
	if p.Metrics != nil {
		m := *p.Metrics
		np.Metrics = &m
	}
	if p.ModelInfo != nil {
		mi := *p.ModelInfo
		np.ModelInfo = &mi
	}
	if p.SimulationParams != nil {
		sp := *p.SimulationParams
		np.SimulationParams = &sp
	}
	return np
}

// Validate checks the structural invariants of a plan before insert.
func (p *InductionPlan) Validate() error {
	var mErr multierror.Error

	if p.ID == "" {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("missing plan ID"))
	}
	if _, err := time.Parse(PlanDateLayout, p.PlanDate); err != nil {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("invalid plan date %q", p.PlanDate))
	}
	switch p.Status {
	case PlanStatusDraft, PlanStatusFinalized, PlanStatusSimulation:
	default:
		mErr.Errors = append(mErr.Errors, fmt.Errorf("invalid plan status %q", p.Status))
	}
	seen := make(map[string]struct{}, len(p.RankedTrains))
	for i, rt := range p.RankedTrains {
		if rt.Rank != i+1 {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("rank %d at position %d breaks dense ordering", rt.Rank, i))
		}
		if _, ok := seen[rt.TrainID]; ok {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("train %s ranked more than once", rt.TrainCode))
		}
		seen[rt.TrainID] = struct{}{}
	}

	return mErr.ErrorOrNil()
}
