package planner

import (
	"math"

	"github.com/kochimetro/inductiond/acl"
	"github.com/kochimetro/inductiond/structs"
)

// FleetAnalytics is an aggregate snapshot of the fleet, independent of any
// plan.
type FleetAnalytics struct {
	TotalTrains       int            `json:"totalTrains"`
	ServiceReady      int            `json:"serviceReady"`
	Available         int            `json:"available"`
	Branded           int            `json:"branded"`
	AverageMileage    float64        `json:"averageMileage"`
	MaintenanceStatus map[string]int `json:"maintenanceStatus"`
	CleaningStatus    map[string]int `json:"cleaningStatus"`
}

// Analytics aggregates the current fleet state for dashboards.
func (p *Planner) Analytics(identity *acl.Identity) (*FleetAnalytics, error) {
	if !identity.AllowsCapability(acl.CapabilityReadPlan) {
		return nil, structs.ErrPermissionDenied
	}

	trains, err := p.state.Trains()
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	out := &FleetAnalytics{
		TotalTrains:       len(trains),
		MaintenanceStatus: map[string]int{},
		CleaningStatus:    map[string]int{},
	}

	var mileage int
	for _, t := range trains {
		out.MaintenanceStatus[t.MaintenanceStatus]++
		out.CleaningStatus[t.CleaningStatus]++
		if t.AvailableForService {
			out.Available++
		}
		if t.Branding.HasBranding {
			out.Branded++
		}
		if t.ServiceReady(now) {
			out.ServiceReady++
		}
		mileage += t.CurrentMileage
	}
	if len(trains) > 0 {
		out.AverageMileage = math.Round(float64(mileage)/float64(len(trains))*100) / 100
	}
	return out, nil
}
