package engine

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kochimetro/inductiond/helper/pointer"
	"github.com/kochimetro/inductiond/structs"
)

// SimulationResult is a transient plan-shaped result; it is never persisted.
type SimulationResult struct {
	RankedTrains     []*structs.RankedTrain       `json:"rankedTrains"`
	Alerts           []*structs.Alert             `json:"alerts"`
	Metrics          *structs.OptimizationMetrics `json:"optimizationMetrics"`
	ModelInfo        *structs.ModelInfo           `json:"aiModelInfo"`
	SimulationParams *structs.SimulationParams    `json:"simulationParams"`
	ImpactAnalysis   *structs.ImpactAnalysis      `json:"impactAnalysis"`
}

// Simulate applies a hypothetical modification to one trainset and reruns
// the optimizer over the modified fleet. The target may be referenced by
// trainset code or by stable ID.
func Simulate(trains []*structs.Train, target string, modifications map[string]any,
	constraints structs.Constraints, now time.Time) (*SimulationResult, error) {

	idx := -1
	for i, t := range trains {
		if t.Code == target || t.ID == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", structs.ErrTrainNotFound, target)
	}

	modified := make([]*structs.Train, len(trains))
	copy(modified, trains)
	mt, err := applyModifications(trains[idx], modifications)
	if err != nil {
		return nil, err
	}
	modified[idx] = mt

	opt := Optimize(modified, constraints, now)

	impact := &structs.ImpactAnalysis{
		RankChange:     "Not in top rankings",
		AffectedTrains: len(opt.RankedTrains),
	}
	for _, rt := range opt.RankedTrains {
		if rt.TrainCode == mt.Code {
			impact.NewRank = pointer.Of(rt.Rank)
			impact.RankChange = fmt.Sprintf("Moved to rank %d", rt.Rank)
			break
		}
	}

	return &SimulationResult{
		RankedTrains: opt.RankedTrains,
		Alerts:       GenerateAlerts(modified, now),
		Metrics:      opt.Metrics,
		ModelInfo:    opt.ModelInfo,
		SimulationParams: &structs.SimulationParams{
			TargetTrain:   target,
			Modifications: modifications,
		},
		ImpactAnalysis: impact,
	}, nil
}

// applyModifications overlays the partial modification map onto a copy of
// the trainset. Keys follow the wire field names; nested records such as
// fitnessStatus merge field-wise rather than replacing wholesale.
func applyModifications(t *structs.Train, modifications map[string]any) (*structs.Train, error) {
	mt := t.Copy()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           mt,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(modifications); err != nil {
		return nil, fmt.Errorf("invalid modifications: %v", err)
	}
	return mt, nil
}
