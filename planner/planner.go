// Package planner is the plan service: it loads the fleet, drives the
// optimizer (external with local fallback), attaches alerts, and enforces
// the persistence semantics of induction plans, idempotency per plan date
// included.
package planner

import (
	"context"
	"fmt"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kochimetro/inductiond/acl"
	"github.com/kochimetro/inductiond/engine"
	"github.com/kochimetro/inductiond/state"
	"github.com/kochimetro/inductiond/structs"
)

const (
	// topTrainCount bounds the ranking excerpt in latest/generate summaries.
	topTrainCount = 5

	// History pagination bounds.
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100

	// planCacheSize bounds the explain read cache. Plans are immutable, so
	// cached entries never go stale.
	planCacheSize = 64
)

// Planner implements the plan service operations.
type Planner struct {
	logger    hclog.Logger
	state     *state.StateStore
	optimizer *ExternalOptimizer
	planCache *lru.Cache[string, *structs.InductionPlan]

	// now is swapped by tests for deterministic clocks.
	now func() time.Time
}

// NewPlanner wires the plan service.
func NewPlanner(logger hclog.Logger, store *state.StateStore, optimizer *ExternalOptimizer) (*Planner, error) {
	cache, err := lru.New[string, *structs.InductionPlan](planCacheSize)
	if err != nil {
		return nil, err
	}
	return &Planner{
		logger:    logger.Named("planner"),
		state:     store,
		optimizer: optimizer,
		planCache: cache,
		now:       time.Now,
	}, nil
}

// GenerateRequest are the caller-supplied knobs for plan generation.
type GenerateRequest struct {
	PlanDate        string              `json:"planDate"`
	ForceRegenerate bool                `json:"forceRegenerate"`
	Constraints     structs.Constraints `json:"constraints"`
}

// PlanSummary is the at-a-glance digest returned with generate and latest.
type PlanSummary struct {
	TotalTrains       int     `json:"totalTrains"`
	CriticalAlerts    int     `json:"criticalAlerts"`
	AverageConfidence float64 `json:"averageConfidence"`
	Status            string  `json:"status"`
}

// GenerateResponse is the plan service's generate result.
type GenerateResponse struct {
	Plan           *structs.InductionPlan `json:"plan"`
	Summary        *PlanSummary           `json:"summary"`
	TopTrains      []*structs.RankedTrain `json:"topTrains"`
	ProcessingTime int64                  `json:"processingTime"`
}

// Generate produces and persists a FINALIZED plan for the given date.
// Without forceRegenerate an existing FINALIZED plan for the date is a
// conflict; with it, the old plan stays in history and a new one is
// appended.
func (p *Planner) Generate(ctx context.Context, identity *acl.Identity, req *GenerateRequest) (*GenerateResponse, error) {
	defer metrics.MeasureSince([]string{"planner", "generate"}, time.Now())

	if !identity.AllowsCapability(acl.CapabilityWritePlan) {
		return nil, structs.ErrPermissionDenied
	}

	now := p.now().UTC()
	planDate := req.PlanDate
	if planDate == "" {
		planDate = now.Format(structs.PlanDateLayout)
	} else if _, err := time.Parse(structs.PlanDateLayout, planDate); err != nil {
		return nil, fmt.Errorf("invalid plan date %q", planDate)
	}

	if !req.ForceRegenerate {
		existing, err := p.state.FinalizedPlanByDate(planDate)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			metrics.IncrCounter([]string{"planner", "generate", "conflict"}, 1)
			return nil, &structs.PlanConflictError{PlanDate: planDate, ExistingPlanID: existing.ID}
		}
	}

	trains, err := p.state.Trains()
	if err != nil {
		return nil, err
	}
	if len(trains) == 0 {
		return nil, structs.ErrNoTrainsAvailable
	}

	opt := p.optimizer.Optimize(ctx, trains, req.Constraints, now)
	alerts := engine.GenerateAlerts(trains, now)
	metrics.IncrCounter([]string{"planner", "alerts"}, float32(len(alerts)))

	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, err
	}
	plan := &structs.InductionPlan{
		ID:           id,
		PlanDate:     planDate,
		GeneratedAt:  now,
		Status:       structs.PlanStatusFinalized,
		RankedTrains: opt.RankedTrains,
		Alerts:       alerts,
		Metrics:      opt.Metrics,
		GeneratedBy:  identity.Subject,
		ModelInfo:    opt.ModelInfo,
	}

	// The insert rechecks date uniqueness atomically; a racing generate
	// that slipped past the pre-check loses here.
	if err := p.state.InsertPlan(plan, req.ForceRegenerate); err != nil {
		return nil, err
	}

	p.logger.Info("generated induction plan", "plan_id", plan.ID, "plan_date", planDate,
		"ranked", len(plan.RankedTrains), "alerts", len(alerts), "algorithm", plan.ModelInfo.Algorithm)

	return &GenerateResponse{
		Plan:           plan,
		Summary:        summarize(plan),
		TopTrains:      topTrains(plan),
		ProcessingTime: plan.Metrics.ProcessingTimeMs,
	}, nil
}

// LatestResponse is the read model for the most recent FINALIZED plan.
type LatestResponse struct {
	Plan           *structs.InductionPlan `json:"plan"`
	Summary        *PlanSummary           `json:"summary"`
	TopTrains      []*structs.RankedTrain `json:"topTrains"`
	CriticalAlerts []*structs.Alert       `json:"criticalAlerts"`
}

// Latest returns the most recent FINALIZED plan.
func (p *Planner) Latest(identity *acl.Identity) (*LatestResponse, error) {
	if !identity.AllowsCapability(acl.CapabilityReadPlan) {
		return nil, structs.ErrPermissionDenied
	}

	plan, err := p.state.LatestFinalizedPlan()
	if err != nil {
		return nil, err
	}

	var critical []*structs.Alert
	for _, a := range plan.Alerts {
		if a.Type == structs.AlertTypeCritical {
			critical = append(critical, a)
		}
	}

	return &LatestResponse{
		Plan:           plan,
		Summary:        summarize(plan),
		TopTrains:      topTrains(plan),
		CriticalAlerts: critical,
	}, nil
}

// HistoryPlan is the lightweight projection history returns: counts and
// alerts, no rankings.
type HistoryPlan struct {
	ID                string           `json:"id"`
	PlanDate          string           `json:"planDate"`
	GeneratedAt       time.Time        `json:"generatedAt"`
	Status            string           `json:"status"`
	GeneratedBy       string           `json:"generatedBy"`
	TotalTrains       int              `json:"totalTrains"`
	AverageConfidence float64          `json:"averageConfidence"`
	Alerts            []*structs.Alert `json:"alerts"`
}

// Pagination echoes the page window and the total FINALIZED plan count.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// HistoryResponse is one page of plan history, newest first.
type HistoryResponse struct {
	Plans      []*HistoryPlan `json:"plans"`
	Pagination *Pagination    `json:"pagination"`
}

// History lists FINALIZED plans newest first.
func (p *Planner) History(identity *acl.Identity, limit, page int) (*HistoryResponse, error) {
	if !identity.AllowsCapability(acl.CapabilityReadPlan) {
		return nil, structs.ErrPermissionDenied
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if page < 1 {
		page = 1
	}

	plans, total, err := p.state.FinalizedPlans(limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	out := make([]*HistoryPlan, 0, len(plans))
	for _, plan := range plans {
		out = append(out, &HistoryPlan{
			ID:                plan.ID,
			PlanDate:          plan.PlanDate,
			GeneratedAt:       plan.GeneratedAt,
			Status:            plan.Status,
			GeneratedBy:       plan.GeneratedBy,
			TotalTrains:       len(plan.RankedTrains),
			AverageConfidence: plan.Metrics.AverageConfidence,
			Alerts:            plan.Alerts,
		})
	}

	return &HistoryResponse{
		Plans:      out,
		Pagination: &Pagination{Page: page, Limit: limit, Total: total},
	}, nil
}

// DetailedAnalysis is derived on read from the current trainset state; nil
// when the trainset has been deleted since the plan was generated.
type DetailedAnalysis struct {
	Fitness            *structs.FitnessStatus `json:"fitness"`
	MaintenanceStatus  string                 `json:"maintenanceStatus"`
	MaintenanceUrgency string                 `json:"maintenanceUrgency"`
	CurrentMileage     int                    `json:"currentMileage"`
	CurrentLocation    string                 `json:"currentLocation"`
	Branding           *structs.Branding      `json:"branding"`
	ServiceReady       bool                   `json:"serviceReady"`
}

// Explanation pairs a stored ranking entry with its read-time analysis. The
// stored reasoning stays authoritative either way.
type Explanation struct {
	Rank             int                     `json:"rank"`
	Train            string                  `json:"train"`
	Reasoning        string                  `json:"reasoning"`
	ConfidenceScore  float64                 `json:"confidenceScore"`
	Constraints      structs.ConstraintFlags `json:"constraints"`
	DetailedAnalysis *DetailedAnalysis       `json:"detailedAnalysis"`
}

// ExplainResponse is the full plan plus per-entry explanations.
type ExplainResponse struct {
	Plan                *structs.InductionPlan       `json:"plan"`
	Explanations        []*Explanation               `json:"explanations"`
	OptimizationMetrics *structs.OptimizationMetrics `json:"optimizationMetrics"`
	AIModelInfo         *structs.ModelInfo           `json:"aiModelInfo"`
	Alerts              []*structs.Alert             `json:"alerts"`
}

// Explain returns a stored plan with its reasoning and a fresh analysis of
// each ranked trainset.
func (p *Planner) Explain(identity *acl.Identity, planID string) (*ExplainResponse, error) {
	if !identity.AllowsCapability(acl.CapabilityReadPlan) {
		return nil, structs.ErrPermissionDenied
	}

	plan, err := p.lookupPlan(planID)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	explanations := make([]*Explanation, 0, len(plan.RankedTrains))
	for _, rt := range plan.RankedTrains {
		ex := &Explanation{
			Rank:            rt.Rank,
			Train:           rt.TrainCode,
			Reasoning:       rt.Reasoning,
			ConfidenceScore: rt.ConfidenceScore,
			Constraints:     rt.Constraints,
		}
		if ex.Train == "" {
			ex.Train = "unknown"
		}

		train, err := p.state.TrainByID(rt.TrainID)
		if err != nil {
			return nil, err
		}
		if train != nil {
			ec := engine.EvaluateConstraints(train, now)
			fitness := train.Fitness
			branding := train.Branding
			ex.DetailedAnalysis = &DetailedAnalysis{
				Fitness:            &fitness,
				MaintenanceStatus:  train.MaintenanceStatus,
				MaintenanceUrgency: ec.MaintenanceUrgency,
				CurrentMileage:     train.CurrentMileage,
				CurrentLocation:    train.CurrentLocation,
				Branding:           &branding,
				ServiceReady:       train.ServiceReady(now),
			}
		}
		explanations = append(explanations, ex)
	}

	return &ExplainResponse{
		Plan:                plan,
		Explanations:        explanations,
		OptimizationMetrics: plan.Metrics,
		AIModelInfo:         plan.ModelInfo,
		Alerts:              plan.Alerts,
	}, nil
}

// SimulateRequest describes one what-if run.
type SimulateRequest struct {
	TrainID       string              `json:"trainId"`
	Modifications map[string]any      `json:"modifications"`
	BaseDate      string              `json:"baseDate"`
	Constraints   structs.Constraints `json:"constraints"`
}

// SimulateResponse wraps the transient simulation plan shape.
type SimulateResponse struct {
	Simulation *SimulationPlan `json:"simulation"`
}

// SimulationPlan is the plan-shaped simulation result. It carries status
// SIMULATION and is never persisted.
type SimulationPlan struct {
	Status           string                       `json:"status"`
	PlanDate         string                       `json:"planDate"`
	GeneratedAt      time.Time                    `json:"generatedAt"`
	RankedTrains     []*structs.RankedTrain       `json:"rankedTrains"`
	Alerts           []*structs.Alert             `json:"alerts"`
	Metrics          *structs.OptimizationMetrics `json:"optimizationMetrics"`
	ModelInfo        *structs.ModelInfo           `json:"aiModelInfo"`
	SimulationParams *structs.SimulationParams    `json:"simulationParams"`
	ImpactAnalysis   *structs.ImpactAnalysis      `json:"impactAnalysis"`
}

// Simulate reruns the optimizer with a hypothetical modification applied to
// one trainset. Nothing is written to the store.
func (p *Planner) Simulate(identity *acl.Identity, req *SimulateRequest) (*SimulateResponse, error) {
	defer metrics.MeasureSince([]string{"planner", "simulate"}, time.Now())

	if !identity.AllowsCapability(acl.CapabilityWritePlan) {
		return nil, structs.ErrPermissionDenied
	}
	if req.TrainID == "" {
		return nil, fmt.Errorf("missing trainId")
	}

	now := p.now().UTC()
	planDate := req.BaseDate
	if planDate == "" {
		planDate = now.Format(structs.PlanDateLayout)
	}

	trains, err := p.state.Trains()
	if err != nil {
		return nil, err
	}

	sim, err := engine.Simulate(trains, req.TrainID, req.Modifications, req.Constraints, now)
	if err != nil {
		return nil, err
	}

	return &SimulateResponse{
		Simulation: &SimulationPlan{
			Status:           structs.PlanStatusSimulation,
			PlanDate:         planDate,
			GeneratedAt:      now,
			RankedTrains:     sim.RankedTrains,
			Alerts:           sim.Alerts,
			Metrics:          sim.Metrics,
			ModelInfo:        sim.ModelInfo,
			SimulationParams: sim.SimulationParams,
			ImpactAnalysis:   sim.ImpactAnalysis,
		},
	}, nil
}

// lookupPlan serves immutable plans through the LRU in front of the store.
func (p *Planner) lookupPlan(planID string) (*structs.InductionPlan, error) {
	if plan, ok := p.planCache.Get(planID); ok {
		return plan, nil
	}
	plan, err := p.state.PlanByID(planID)
	if err != nil {
		return nil, err
	}
	p.planCache.Add(planID, plan)
	return plan, nil
}

func summarize(plan *structs.InductionPlan) *PlanSummary {
	critical := 0
	for _, a := range plan.Alerts {
		if a.Type == structs.AlertTypeCritical {
			critical++
		}
	}
	return &PlanSummary{
		TotalTrains:       len(plan.RankedTrains),
		CriticalAlerts:    critical,
		AverageConfidence: plan.Metrics.AverageConfidence,
		Status:            plan.Status,
	}
}

func topTrains(plan *structs.InductionPlan) []*structs.RankedTrain {
	if len(plan.RankedTrains) <= topTrainCount {
		return plan.RankedTrains
	}
	return plan.RankedTrains[:topTrainCount]
}
