// Package agent wires the induction planning engine into a long-running
// process: configuration, state store, plan service, HTTP API, and the
// optional nightly planning schedule.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/cronexpr"
	hclog "github.com/hashicorp/go-hclog"

	"github.com/kochimetro/inductiond/acl"
	"github.com/kochimetro/inductiond/planner"
	"github.com/kochimetro/inductiond/state"
	"github.com/kochimetro/inductiond/structs"
)

// schedulerIdentity is the system caller the nightly schedule generates
// plans as.
var schedulerIdentity = &acl.Identity{Subject: "system:scheduler", Role: acl.RoleAdmin}

// Agent owns the running subsystems.
type Agent struct {
	config  *Config
	logger  hclog.Logger
	state   *state.StateStore
	planLog *state.PlanLog
	planner *planner.Planner

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewAgent boots the store, restores the plan log, loads the fleet fixture,
// and starts the plan schedule when one is configured.
func NewAgent(config *Config, logger hclog.Logger) (*Agent, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		config:     config,
		logger:     logger.Named("agent"),
		shutdownCh: make(chan struct{}),
	}

	store, err := state.NewStateStore(logger)
	if err != nil {
		return nil, err
	}
	a.state = store

	if config.DBPath != "" {
		pl, err := state.OpenPlanLog(config.DBPath)
		if err != nil {
			return nil, err
		}
		if err := store.AttachPlanLog(pl); err != nil {
			pl.Close()
			return nil, err
		}
		a.planLog = pl
	}

	if config.FleetPath != "" {
		if err := a.loadFleet(config.FleetPath); err != nil {
			return nil, err
		}
	}

	optimizer := planner.NewExternalOptimizer(config.ExternalOptimizerURL, config.OptimizerTimeout, logger)
	p, err := planner.NewPlanner(logger, store, optimizer)
	if err != nil {
		return nil, err
	}
	a.planner = p

	if config.PlanSchedule != "" {
		expr, err := cronexpr.Parse(config.PlanSchedule)
		if err != nil {
			return nil, fmt.Errorf("invalid plan schedule: %v", err)
		}
		go a.runPlanSchedule(expr)
	}

	return a, nil
}

// State exposes the store to the HTTP layer.
func (a *Agent) State() *state.StateStore {
	return a.state
}

// Planner exposes the plan service to the HTTP layer.
func (a *Agent) Planner() *planner.Planner {
	return a.planner
}

// Shutdown stops background work and closes the plan log.
func (a *Agent) Shutdown() error {
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()

	if a.shutdown {
		return nil
	}
	a.logger.Info("requesting shutdown")
	a.shutdown = true
	close(a.shutdownCh)

	if a.planLog != nil {
		if err := a.planLog.Close(); err != nil {
			return err
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}

// loadFleet upserts the trainsets from a JSON fixture file.
func (a *Agent) loadFleet(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("fleet fixture read failed: %v", err)
	}
	var trains []*structs.Train
	if err := json.Unmarshal(buf, &trains); err != nil {
		return fmt.Errorf("fleet fixture parse failed: %v", err)
	}
	for _, t := range trains {
		if err := a.state.UpsertTrain(t); err != nil {
			return fmt.Errorf("fleet fixture train %s: %v", t.Code, err)
		}
	}
	a.logger.Info("loaded fleet fixture", "path", path, "trains", len(trains))
	return nil
}

// runPlanSchedule generates a plan for the next service date at every tick
// of the configured cron expression. An existing plan for that date is
// expected once the schedule has run before; conflicts are not errors.
func (a *Agent) runPlanSchedule(expr *cronexpr.Expression) {
	a.logger.Info("plan schedule active", "schedule", a.config.PlanSchedule)
	for {
		now := time.Now()
		next := expr.Next(now)
		if next.IsZero() {
			a.logger.Warn("plan schedule has no future ticks, stopping")
			return
		}
		select {
		case <-time.After(next.Sub(now)):
			a.scheduledGenerate(next)
		case <-a.shutdownCh:
			return
		}
	}
}

func (a *Agent) scheduledGenerate(tick time.Time) {
	planDate := tick.UTC().AddDate(0, 0, 1).Format(structs.PlanDateLayout)
	_, err := a.planner.Generate(context.Background(), schedulerIdentity,
		&planner.GenerateRequest{PlanDate: planDate})
	switch {
	case err == nil:
		a.logger.Info("scheduled plan generated", "plan_date", planDate)
	case isConflict(err):
		a.logger.Debug("scheduled plan already exists", "plan_date", planDate)
	case structs.IsErrNoTrainsAvailable(err):
		a.logger.Warn("scheduled plan skipped, fleet is empty", "plan_date", planDate)
	default:
		a.logger.Error("scheduled plan generation failed", "plan_date", planDate, "error", err)
	}
}

func isConflict(err error) bool {
	_, ok := structs.IsErrPlanConflict(err)
	return ok
}
