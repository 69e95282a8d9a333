// Package engine implements the induction planning core: constraint
// evaluation, weighted scoring, ranking, alert generation, and what-if
// simulation. Everything in this package is pure; callers own all I/O.
package engine

import (
	"math"
	"time"

	"github.com/kochimetro/inductiond/structs"
)

// EvaluatedConstraints carries the derived per-trainset facts the optimizer
// and the explain view are built from.
type EvaluatedConstraints struct {
	FitnessValid       bool
	DaysToExpiry       int
	MaintenanceDue     bool
	MaintenanceReady   bool
	MaintenanceUrgency string
	CleaningReady      bool

	// HardEligible gates entry into the ranking. Trainsets failing it are
	// still visible to the alert generator.
	HardEligible bool
}

// EvaluateConstraints derives the constraint state of a single trainset at
// the reference instant.
func EvaluateConstraints(t *structs.Train, now time.Time) *EvaluatedConstraints {
	ec := &EvaluatedConstraints{
		FitnessValid: t.Fitness.Valid && t.Fitness.Expiry.After(now),
		DaysToExpiry: daysUntil(now, t.Fitness.Expiry),
	}

	ec.MaintenanceDue = t.MaintenanceStatus == structs.MaintenanceStatusDue ||
		(!t.NextMaintenanceDue.IsZero() && !t.NextMaintenanceDue.After(now))
	ec.MaintenanceReady = t.MaintenanceStatus == structs.MaintenanceStatusOperational && !ec.MaintenanceDue
	ec.MaintenanceUrgency = maintenanceUrgency(t, now)
	ec.CleaningReady = t.CleaningStatus == structs.CleaningStatusClean

	ec.HardEligible = ec.FitnessValid &&
		t.MaintenanceStatus == structs.MaintenanceStatusOperational &&
		t.AvailableForService

	return ec
}

// daysUntil is the floor of the whole days between now and ts; negative once
// ts is in the past.
func daysUntil(now, ts time.Time) int {
	return int(math.Floor(ts.Sub(now).Hours() / 24))
}

// maintenanceUrgency buckets days-until-due into LOW/MEDIUM/HIGH/CRITICAL.
// An unscheduled trainset is LOW.
func maintenanceUrgency(t *structs.Train, now time.Time) string {
	if t.NextMaintenanceDue.IsZero() {
		return structs.UrgencyLow
	}
	days := daysUntil(now, t.NextMaintenanceDue)
	switch {
	case days <= 0:
		return structs.UrgencyCritical
	case days <= 3:
		return structs.UrgencyHigh
	case days <= 7:
		return structs.UrgencyMedium
	default:
		return structs.UrgencyLow
	}
}
