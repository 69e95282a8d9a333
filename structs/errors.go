package structs

import (
	"errors"
	"fmt"
	"strings"
)

const (
	errUnauthenticated   = "Authentication required"
	errPermissionDenied  = "Permission denied"
	errPlanNotFound      = "plan not found"
	errTrainNotFound     = "train not found"
	errNoTrainsAvailable = "no trains available for planning"
)

var (
	ErrUnauthenticated   = errors.New(errUnauthenticated)
	ErrPermissionDenied  = errors.New(errPermissionDenied)
	ErrPlanNotFound      = errors.New(errPlanNotFound)
	ErrTrainNotFound     = errors.New(errTrainNotFound)
	ErrNoTrainsAvailable = errors.New(errNoTrainsAvailable)
)

// IsErrUnauthenticated returns whether the error carries an authentication
// failure, including wrapped forms.
func IsErrUnauthenticated(err error) bool {
	return err != nil && strings.Contains(err.Error(), errUnauthenticated)
}

func IsErrPermissionDenied(err error) bool {
	return err != nil && strings.Contains(err.Error(), errPermissionDenied)
}

func IsErrPlanNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), errPlanNotFound)
}

func IsErrTrainNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), errTrainNotFound)
}

func IsErrNoTrainsAvailable(err error) bool {
	return err != nil && strings.Contains(err.Error(), errNoTrainsAvailable)
}

// PlanConflictError is returned when a FINALIZED plan already exists for the
// requested date and regeneration was not forced. It carries the existing
// plan's ID so callers can surface it.
type PlanConflictError struct {
	PlanDate       string
	ExistingPlanID string
}

func (e *PlanConflictError) Error() string {
	return fmt.Sprintf("finalized plan already exists for %s (plan %s)", e.PlanDate, e.ExistingPlanID)
}

// IsErrPlanConflict unwraps err looking for a PlanConflictError.
func IsErrPlanConflict(err error) (*PlanConflictError, bool) {
	var conflict *PlanConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
