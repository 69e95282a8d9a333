package planner

import (
	"context"
	"testing"
	"time"

	"github.com/shoenig/test/must"

	"github.com/kochimetro/inductiond/acl"
	"github.com/kochimetro/inductiond/engine"
	"github.com/kochimetro/inductiond/helper/testlog"
	"github.com/kochimetro/inductiond/mock"
	"github.com/kochimetro/inductiond/state"
	"github.com/kochimetro/inductiond/structs"
)

var (
	supervisor = &acl.Identity{Subject: "user:asha", Role: acl.RoleSupervisor}
	reader     = &acl.Identity{Subject: "user:ravi", Role: acl.RoleReader}
)

func testPlanner(t *testing.T, trains []*structs.Train) (*Planner, *state.StateStore) {
	t.Helper()

	logger := testlog.HCLogger(t)
	store, err := state.NewStateStore(logger)
	must.NoError(t, err)
	for _, tr := range trains {
		must.NoError(t, store.UpsertTrain(tr))
	}

	p, err := NewPlanner(logger, store, NewExternalOptimizer("", 0, logger))
	must.NoError(t, err)
	return p, store
}

func TestPlanner_Generate(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	out, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-10"})
	must.NoError(t, err)

	must.Eq(t, "2026-03-10", out.Plan.PlanDate)
	must.Eq(t, structs.PlanStatusFinalized, out.Plan.Status)
	must.Eq(t, "user:asha", out.Plan.GeneratedBy)
	must.Len(t, 3, out.Plan.RankedTrains)
	must.Eq(t, "TS-03", out.Plan.RankedTrains[0].TrainCode)
	must.Eq(t, 3, out.Summary.TotalTrains)
	must.Eq(t, 0, out.Summary.CriticalAlerts)
	must.Len(t, 3, out.TopTrains)
}

func TestPlanner_Generate_Conflict(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	first, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-10"})
	must.NoError(t, err)

	// Same date without force is a strict conflict naming the first plan.
	_, err = p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-10"})
	conflict, ok := structs.IsErrPlanConflict(err)
	must.True(t, ok)
	must.Eq(t, first.Plan.ID, conflict.ExistingPlanID)

	// Force appends a new plan; the old one stays in history.
	forced, err := p.Generate(context.Background(), supervisor,
		&GenerateRequest{PlanDate: "2026-03-10", ForceRegenerate: true})
	must.NoError(t, err)
	must.NotEq(t, first.Plan.ID, forced.Plan.ID)

	history, err := p.History(reader, 10, 1)
	must.NoError(t, err)
	must.Len(t, 2, history.Plans)
	must.Eq(t, 2, history.Pagination.Total)
	must.Eq(t, forced.Plan.ID, history.Plans[0].ID)
	must.Eq(t, first.Plan.ID, history.Plans[1].ID)
}

func TestPlanner_Generate_EmptyFleet(t *testing.T) {
	p, _ := testPlanner(t, nil)

	_, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-10"})
	must.True(t, structs.IsErrNoTrainsAvailable(err))
}

func TestPlanner_Generate_PermissionDenied(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	_, err := p.Generate(context.Background(), reader, &GenerateRequest{PlanDate: "2026-03-10"})
	must.True(t, structs.IsErrPermissionDenied(err))
}

func TestPlanner_Generate_InvalidDate(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	_, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "10/03/2026"})
	must.Error(t, err)
}

func TestPlanner_Generate_DefaultsToToday(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	out, err := p.Generate(context.Background(), supervisor, &GenerateRequest{})
	must.NoError(t, err)
	must.Eq(t, time.Now().UTC().Format(structs.PlanDateLayout), out.Plan.PlanDate)
}

func TestPlanner_Latest(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	_, err := p.Latest(reader)
	must.True(t, structs.IsErrPlanNotFound(err))

	_, err = p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-09"})
	must.NoError(t, err)
	second, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-10"})
	must.NoError(t, err)

	latest, err := p.Latest(reader)
	must.NoError(t, err)
	must.Eq(t, second.Plan.ID, latest.Plan.ID)
	must.Len(t, 3, latest.TopTrains)
	must.Eq(t, structs.PlanStatusFinalized, latest.Summary.Status)
}

func TestPlanner_History_Pagination(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())
	for _, date := range []string{"2026-03-08", "2026-03-09", "2026-03-10"} {
		_, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: date})
		must.NoError(t, err)
	}

	page, err := p.History(reader, 2, 1)
	must.NoError(t, err)
	must.Len(t, 2, page.Plans)
	must.Eq(t, "2026-03-10", page.Plans[0].PlanDate)
	must.Eq(t, 3, page.Pagination.Total)
	must.Eq(t, 2, page.Pagination.Limit)

	// The projection carries no rankings, just counts and alerts.
	must.Eq(t, 3, page.Plans[0].TotalTrains)

	page2, err := p.History(reader, 2, 2)
	must.NoError(t, err)
	must.Len(t, 1, page2.Plans)
	must.Eq(t, "2026-03-08", page2.Plans[0].PlanDate)

	// Defaults: limit 10, page 1.
	all, err := p.History(reader, 0, 0)
	must.NoError(t, err)
	must.Len(t, 3, all.Plans)
	must.Eq(t, 10, all.Pagination.Limit)
	must.Eq(t, 1, all.Pagination.Page)
}

func TestPlanner_Explain(t *testing.T) {
	fleet := mock.OptimalFleet()
	p, store := testPlanner(t, fleet)

	out, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-10"})
	must.NoError(t, err)

	ex, err := p.Explain(reader, out.Plan.ID)
	must.NoError(t, err)
	must.Len(t, 3, ex.Explanations)
	must.Eq(t, 1, ex.Explanations[0].Rank)
	must.Eq(t, "TS-03", ex.Explanations[0].Train)
	must.StrContains(t, ex.Explanations[0].Reasoning, "Branding priority: 5/5")
	must.NotNil(t, ex.Explanations[0].DetailedAnalysis)
	must.True(t, ex.Explanations[0].DetailedAnalysis.ServiceReady)
	must.Eq(t, engine.FallbackAlgorithm, ex.AIModelInfo.Algorithm)

	// Deleting the top trainset leaves the stored reasoning authoritative
	// and nulls the read-time analysis.
	top, err := store.TrainByCode("TS-03")
	must.NoError(t, err)
	must.NoError(t, store.DeleteTrain(top.ID))

	ex, err = p.Explain(reader, out.Plan.ID)
	must.NoError(t, err)
	must.Eq(t, "TS-03", ex.Explanations[0].Train)
	must.StrContains(t, ex.Explanations[0].Reasoning, "Branding priority: 5/5")
	must.Nil(t, ex.Explanations[0].DetailedAnalysis)
}

func TestPlanner_Explain_NotFound(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	_, err := p.Explain(reader, "no-such-plan")
	must.True(t, structs.IsErrPlanNotFound(err))
}

func TestPlanner_Simulate_DoesNotPersist(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	base, err := p.Generate(context.Background(), supervisor, &GenerateRequest{PlanDate: "2026-03-10"})
	must.NoError(t, err)

	sim, err := p.Simulate(supervisor, &SimulateRequest{
		TrainID: "TS-02",
		Modifications: map[string]any{
			"branding": map[string]any{"hasBranding": true, "priority": 5},
		},
	})
	must.NoError(t, err)
	must.Eq(t, structs.PlanStatusSimulation, sim.Simulation.Status)
	must.NotNil(t, sim.Simulation.ImpactAnalysis.NewRank)
	must.Eq(t, 1, *sim.Simulation.ImpactAnalysis.NewRank)
	must.Eq(t, "TS-02", sim.Simulation.RankedTrains[0].TrainCode)

	// Neither latest nor history observed the simulation.
	latest, err := p.Latest(reader)
	must.NoError(t, err)
	must.Eq(t, base.Plan.ID, latest.Plan.ID)
	must.Eq(t, "TS-03", latest.Plan.RankedTrains[0].TrainCode)

	history, err := p.History(reader, 10, 1)
	must.NoError(t, err)
	must.Len(t, 1, history.Plans)
}

func TestPlanner_Simulate_Validation(t *testing.T) {
	p, _ := testPlanner(t, mock.OptimalFleet())

	_, err := p.Simulate(supervisor, &SimulateRequest{})
	must.Error(t, err)

	_, err = p.Simulate(supervisor, &SimulateRequest{TrainID: "TS-99"})
	must.True(t, structs.IsErrTrainNotFound(err))

	_, err = p.Simulate(reader, &SimulateRequest{TrainID: "TS-01"})
	must.True(t, structs.IsErrPermissionDenied(err))
}

func TestPlanner_Analytics(t *testing.T) {
	fleet := mock.OptimalFleet()
	fleet[1].AvailableForService = false
	p, _ := testPlanner(t, fleet)

	got, err := p.Analytics(reader)
	must.NoError(t, err)
	must.Eq(t, 3, got.TotalTrains)
	must.Eq(t, 2, got.Available)
	must.Eq(t, 2, got.Branded)
	must.Eq(t, 2, got.ServiceReady)
	must.Eq(t, 3, got.MaintenanceStatus[structs.MaintenanceStatusOperational])
	must.Eq(t, 5000.0, got.AverageMileage)
}
