package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-set/v3"
	"github.com/kochimetro/inductiond/structs"
)

// Alert severities per category.
const (
	severityFitnessCritical = 5
	severityMaintenanceDue  = 4
	severityFitnessWarning  = 3
	severityUnavailable     = 2
)

// GenerateAlerts inspects the whole fleet, including trainsets the ranking
// excluded, and emits at most one alert per trainset per category. The
// result is sorted by severity descending and is stable within a severity.
func GenerateAlerts(trains []*structs.Train, now time.Time) []*structs.Alert {
	alerts := []*structs.Alert{}
	emitted := set.New[string](len(trains))

	emit := func(t *structs.Train, category string, a *structs.Alert) {
		if emitted.Insert(t.Code + "/" + category) {
			alerts = append(alerts, a)
		}
	}

	for _, t := range trains {
		ec := EvaluateConstraints(t, now)

		switch {
		case ec.DaysToExpiry < 0:
			emit(t, "fitness", &structs.Alert{
				Type:      structs.AlertTypeCritical,
				Message:   fmt.Sprintf("%s fitness certificate has expired", t.Code),
				TrainCode: t.Code,
				Severity:  severityFitnessCritical,
			})
		case ec.DaysToExpiry <= 3:
			emit(t, "fitness", &structs.Alert{
				Type:      structs.AlertTypeCritical,
				Message:   fmt.Sprintf("%s fitness certificate expires in %d days", t.Code, ec.DaysToExpiry),
				TrainCode: t.Code,
				Severity:  severityFitnessCritical,
			})
		case ec.DaysToExpiry <= 7:
			emit(t, "fitness", &structs.Alert{
				Type:      structs.AlertTypeWarning,
				Message:   fmt.Sprintf("%s fitness certificate expires in %d days", t.Code, ec.DaysToExpiry),
				TrainCode: t.Code,
				Severity:  severityFitnessWarning,
			})
		}

		if ec.MaintenanceDue {
			emit(t, "maintenance", &structs.Alert{
				Type:      structs.AlertTypeWarning,
				Message:   fmt.Sprintf("%s maintenance is due", t.Code),
				TrainCode: t.Code,
				Severity:  severityMaintenanceDue,
			})
		}

		if !t.AvailableForService {
			emit(t, "availability", &structs.Alert{
				Type:      structs.AlertTypeInfo,
				Message:   fmt.Sprintf("%s is not available for service", t.Code),
				TrainCode: t.Code,
				Severity:  severityUnavailable,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity > alerts[j].Severity
	})
	return alerts
}
