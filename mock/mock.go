// Package mock provides fleet fixtures for testing.
package mock

import (
	"fmt"
	"time"

	"github.com/kochimetro/inductiond/structs"
)

// Train returns a healthy, service-ready trainset: valid fitness for 30
// days, operational, clean, available, no branding.
func Train(code string) *structs.Train {
	now := time.Now().UTC()
	return &structs.Train{
		ID:                  fmt.Sprintf("id-%s", code),
		Code:                code,
		Fitness:             structs.FitnessStatus{Valid: true, Expiry: now.AddDate(0, 0, 30)},
		MaintenanceStatus:   structs.MaintenanceStatusOperational,
		LastMaintenance:     now.AddDate(0, 0, -20),
		NextMaintenanceDue:  now.AddDate(0, 0, 40),
		CleaningStatus:      structs.CleaningStatusClean,
		CurrentMileage:      5000,
		CurrentLocation:     "Aluva",
		AvailableForService: true,
	}
}

// OptimalFleet is the three-train fleet used throughout: TS-01 at mileage
// 5000 with branding priority 3, TS-02 at 5200 without branding, TS-03 at
// 4800 with branding priority 5. Mean mileage is exactly 5000.
func OptimalFleet() []*structs.Train {
	ts01 := Train("TS-01")
	ts01.Branding = structs.Branding{HasBranding: true, Campaign: "Kerala Tourism", Priority: 3}

	ts02 := Train("TS-02")
	ts02.CurrentMileage = 5200

	ts03 := Train("TS-03")
	ts03.CurrentMileage = 4800
	ts03.Branding = structs.Branding{HasBranding: true, Campaign: "Kochi Biennale", Priority: 5}

	return []*structs.Train{ts01, ts02, ts03}
}
