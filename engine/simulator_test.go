package engine

import (
	"testing"
	"time"

	"github.com/shoenig/test/must"

	"github.com/kochimetro/inductiond/mock"
	"github.com/kochimetro/inductiond/structs"
)

func TestSimulate_BrandingPromotion(t *testing.T) {
	now := time.Now().UTC()
	fleet := mock.OptimalFleet()

	// Granting TS-02 priority-5 branding ties it with TS-03; the code
	// tie-break promotes TS-02 to rank 1.
	result, err := Simulate(fleet, "TS-02", map[string]any{
		"branding": map[string]any{"hasBranding": true, "priority": 5},
	}, nil, now)
	must.NoError(t, err)

	must.NotNil(t, result.ImpactAnalysis.NewRank)
	must.Eq(t, 1, *result.ImpactAnalysis.NewRank)
	must.Eq(t, "Moved to rank 1", result.ImpactAnalysis.RankChange)
	must.Eq(t, 3, result.ImpactAnalysis.AffectedTrains)
	must.Eq(t, "TS-02", result.RankedTrains[0].TrainCode)
	must.Eq(t, "TS-03", result.RankedTrains[1].TrainCode)

	// The input fleet is untouched.
	must.False(t, fleet[1].Branding.HasBranding)
}

func TestSimulate_TargetByID(t *testing.T) {
	now := time.Now().UTC()
	fleet := mock.OptimalFleet()

	result, err := Simulate(fleet, fleet[1].ID, map[string]any{
		"currentMileage": 4800,
	}, nil, now)
	must.NoError(t, err)
	must.NotNil(t, result.ImpactAnalysis.NewRank)
	must.Eq(t, fleet[1].ID, result.SimulationParams.TargetTrain)
}

func TestSimulate_TargetNotFound(t *testing.T) {
	now := time.Now().UTC()

	_, err := Simulate(mock.OptimalFleet(), "TS-99", nil, nil, now)
	must.Error(t, err)
	must.True(t, structs.IsErrTrainNotFound(err))
}

func TestSimulate_FilteredOutTarget(t *testing.T) {
	now := time.Now().UTC()

	result, err := Simulate(mock.OptimalFleet(), "TS-01", map[string]any{
		"availableForService": false,
	}, nil, now)
	must.NoError(t, err)

	must.Nil(t, result.ImpactAnalysis.NewRank)
	must.Eq(t, "Not in top rankings", result.ImpactAnalysis.RankChange)
	must.Eq(t, 2, result.ImpactAnalysis.AffectedTrains)

	// The modified fleet also feeds the alert generator.
	found := false
	for _, a := range result.Alerts {
		if a.TrainCode == "TS-01" && a.Type == structs.AlertTypeInfo {
			found = true
		}
	}
	must.True(t, found)
}

func TestSimulate_NestedMergeKeepsSiblingFields(t *testing.T) {
	now := time.Now().UTC()
	fleet := mock.OptimalFleet()
	expiry := fleet[0].Fitness.Expiry

	// Merging one nested field leaves the rest of the record alone.
	result, err := Simulate(fleet, "TS-01", map[string]any{
		"fitnessStatus": map[string]any{"valid": false},
	}, nil, now)
	must.NoError(t, err)
	must.Nil(t, result.ImpactAnalysis.NewRank)

	must.Eq(t, expiry, fleet[0].Fitness.Expiry)
	must.True(t, fleet[0].Fitness.Valid)
}
