// Package state implements the persistence layer: a transactional in-memory
// document store over go-memdb fronting an optional append-only bolt plan
// log, so plan history survives agent restarts.
package state

import (
	"fmt"
	"sort"

	hclog "github.com/hashicorp/go-hclog"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/hashicorp/go-uuid"

	"github.com/kochimetro/inductiond/structs"
)

// StateStore provides the TrainRepository and PlanRepository contracts. All
// methods are safe for concurrent use; writes serialize on memdb write
// transactions, which is what makes the plan-date uniqueness check atomic
// with the insert.
type StateStore struct {
	logger  hclog.Logger
	db      *memdb.MemDB
	planLog *PlanLog
}

// NewStateStore constructs an empty store.
func NewStateStore(logger hclog.Logger) (*StateStore, error) {
	db, err := memdb.NewMemDB(stateStoreSchema())
	if err != nil {
		return nil, fmt.Errorf("state store setup failed: %v", err)
	}
	return &StateStore{
		logger: logger.Named("state"),
		db:     db,
	}, nil
}

// AttachPlanLog wires a durable plan log and restores its contents into the
// store. Restore bypasses the uniqueness check: the log is the authority on
// what was persisted, forced duplicates included.
func (s *StateStore) AttachPlanLog(pl *PlanLog) error {
	plans, err := pl.All()
	if err != nil {
		return fmt.Errorf("plan log restore failed: %v", err)
	}

	txn := s.db.Txn(true)
	defer txn.Abort()
	for _, p := range plans {
		if err := txn.Insert(TablePlans, p); err != nil {
			return fmt.Errorf("plan restore failed: %v", err)
		}
	}
	txn.Commit()

	s.planLog = pl
	s.logger.Info("restored plans from log", "count", len(plans))
	return nil
}

// UpsertTrain validates and inserts or replaces a trainset record, assigning
// a stable ID on first insert. Replacement is keyed by code so fixture
// reloads do not duplicate the fleet.
func (s *StateStore) UpsertTrain(t *structs.Train) error {
	t = t.Copy()
	t.Canonicalize()
	if err := t.Validate(); err != nil {
		return err
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(TableTrains, "code", t.Code)
	if err != nil {
		return fmt.Errorf("train lookup failed: %v", err)
	}
	if existing != nil {
		t.ID = existing.(*structs.Train).ID
	} else if t.ID == "" {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return err
		}
		t.ID = id
	}

	if err := txn.Insert(TableTrains, t); err != nil {
		return fmt.Errorf("train insert failed: %v", err)
	}
	txn.Commit()
	return nil
}

// DeleteTrain removes a trainset by stable ID. Historical plans referencing
// it stay valid; their train references resolve to unknown afterwards.
func (s *StateStore) DeleteTrain(id string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(TableTrains, "id", id)
	if err != nil {
		return fmt.Errorf("train lookup failed: %v", err)
	}
	if existing == nil {
		return structs.ErrTrainNotFound
	}
	if err := txn.Delete(TableTrains, existing); err != nil {
		return fmt.Errorf("train delete failed: %v", err)
	}
	txn.Commit()
	return nil
}

// Trains returns the whole fleet ordered by code.
func (s *StateStore) Trains() ([]*structs.Train, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(TableTrains, "code")
	if err != nil {
		return nil, fmt.Errorf("train iteration failed: %v", err)
	}

	var out []*structs.Train
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		out = append(out, raw.(*structs.Train))
	}
	return out, nil
}

// TrainByCode looks up a trainset by its human-readable code.
func (s *StateStore) TrainByCode(code string) (*structs.Train, error) {
	return s.trainBy("code", code)
}

// TrainByID looks up a trainset by stable identifier.
func (s *StateStore) TrainByID(id string) (*structs.Train, error) {
	return s.trainBy("id", id)
}

func (s *StateStore) trainBy(index, key string) (*structs.Train, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(TableTrains, index, key)
	if err != nil {
		return nil, fmt.Errorf("train lookup failed: %v", err)
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*structs.Train), nil
}

// InsertPlan persists a plan. For FINALIZED plans the per-date uniqueness
// check and the insert happen inside one write transaction, so of two racing
// generates exactly one wins and the loser observes the winner's plan in the
// returned conflict error.
func (s *StateStore) InsertPlan(plan *structs.InductionPlan, force bool) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	plan = plan.Copy()

	txn := s.db.Txn(true)
	defer txn.Abort()

	if plan.Status == structs.PlanStatusFinalized && !force {
		raw, err := txn.First(TablePlans, "date_status", plan.PlanDate, structs.PlanStatusFinalized)
		if err != nil {
			return fmt.Errorf("plan lookup failed: %v", err)
		}
		if raw != nil {
			return &structs.PlanConflictError{
				PlanDate:       plan.PlanDate,
				ExistingPlanID: raw.(*structs.InductionPlan).ID,
			}
		}
	}

	// Durability first: a plan that reached the log but missed memdb is
	// recovered at next boot, the reverse would lose it silently.
	if s.planLog != nil {
		if err := s.planLog.Append(plan); err != nil {
			return fmt.Errorf("plan log append failed: %v", err)
		}
	}
	if err := txn.Insert(TablePlans, plan); err != nil {
		return fmt.Errorf("plan insert failed: %v", err)
	}
	txn.Commit()
	return nil
}

// PlanByID returns a stored plan, or ErrPlanNotFound.
func (s *StateStore) PlanByID(id string) (*structs.InductionPlan, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(TablePlans, "id", id)
	if err != nil {
		return nil, fmt.Errorf("plan lookup failed: %v", err)
	}
	if raw == nil {
		return nil, structs.ErrPlanNotFound
	}
	return raw.(*structs.InductionPlan), nil
}

// LatestFinalizedPlan returns the most recent FINALIZED plan ordered by
// (planDate DESC, generatedAt DESC), or ErrPlanNotFound if none exists.
func (s *StateStore) LatestFinalizedPlan() (*structs.InductionPlan, error) {
	plans, err := s.finalizedPlans()
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, structs.ErrPlanNotFound
	}
	return plans[0], nil
}

// FinalizedPlans returns one page of FINALIZED plans, newest first, plus the
// total number of FINALIZED plans.
func (s *StateStore) FinalizedPlans(limit, offset int) ([]*structs.InductionPlan, int, error) {
	plans, err := s.finalizedPlans()
	if err != nil {
		return nil, 0, err
	}
	total := len(plans)
	if offset >= total {
		return []*structs.InductionPlan{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return plans[offset:end], total, nil
}

// FinalizedPlanByDate returns the newest FINALIZED plan for the date, or nil.
func (s *StateStore) FinalizedPlanByDate(date string) (*structs.InductionPlan, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(TablePlans, "date_status", date, structs.PlanStatusFinalized)
	if err != nil {
		return nil, fmt.Errorf("plan lookup failed: %v", err)
	}

	var newest *structs.InductionPlan
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		p := raw.(*structs.InductionPlan)
		if newest == nil || p.GeneratedAt.After(newest.GeneratedAt) {
			newest = p
		}
	}
	return newest, nil
}

// finalizedPlans collects and orders all FINALIZED plans. The fleet-scale
// plan history is small enough that sorting on read is cheaper than keeping
// a bespoke ordered index.
func (s *StateStore) finalizedPlans() ([]*structs.InductionPlan, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(TablePlans, "status", structs.PlanStatusFinalized)
	if err != nil {
		return nil, fmt.Errorf("plan iteration failed: %v", err)
	}

	var plans []*structs.InductionPlan
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		plans = append(plans, raw.(*structs.InductionPlan))
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].PlanDate != plans[j].PlanDate {
			return plans[i].PlanDate > plans[j].PlanDate
		}
		return plans[i].GeneratedAt.After(plans[j].GeneratedAt)
	})
	return plans, nil
}
