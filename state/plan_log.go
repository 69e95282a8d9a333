package state

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kochimetro/inductiond/structs"
)

var planBucket = []byte("plans")

// PlanLog is the durable side of the plan store: an append-only bolt file
// keyed by plan ID. Plans are immutable, so the log never updates or
// deletes entries.
type PlanLog struct {
	db *bolt.DB
}

// OpenPlanLog opens or creates the plan log at path.
func OpenPlanLog(path string) (*PlanLog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("plan log open failed: %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(planBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("plan log setup failed: %v", err)
	}
	return &PlanLog{db: db}, nil
}

// Append writes one plan to the log.
func (l *PlanLog) Append(plan *structs.InductionPlan) error {
	buf, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(planBucket).Put([]byte(plan.ID), buf)
	})
}

// All returns every logged plan in unspecified order.
func (l *PlanLog) All() ([]*structs.InductionPlan, error) {
	var plans []*structs.InductionPlan
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(planBucket).ForEach(func(_, v []byte) error {
			var p structs.InductionPlan
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			plans = append(plans, &p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// Close releases the underlying bolt file.
func (l *PlanLog) Close() error {
	return l.db.Close()
}
