package state

import (
	memdb "github.com/hashicorp/go-memdb"
)

const (
	TableTrains = "trains"
	TablePlans  = "plans"
)

// stateStoreSchema returns the MemDB schema for the induction store.
func stateStoreSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			TableTrains: trainTableSchema(),
			TablePlans:  planTableSchema(),
		},
	}
}

// trainTableSchema returns the MemDB schema for the trains table. Trainsets
// are addressable by stable ID and by their unique human-readable code.
func trainTableSchema() *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: TableTrains,
		Indexes: map[string]*memdb.IndexSchema{
			"id": {
				Name:         "id",
				AllowMissing: false,
				Unique:       true,
				Indexer: &memdb.StringFieldIndex{
					Field: "ID",
				},
			},
			"code": {
				Name:         "code",
				AllowMissing: false,
				Unique:       true,
				Indexer: &memdb.StringFieldIndex{
					Field: "Code",
				},
			},
		},
	}
}

// planTableSchema returns the MemDB schema for the plans table. The
// date_status index backs both the FINALIZED-per-date uniqueness check and
// date lookups; it is deliberately non-unique because forced regeneration
// appends a second FINALIZED plan for the same date.
func planTableSchema() *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: TablePlans,
		Indexes: map[string]*memdb.IndexSchema{
			"id": {
				Name:         "id",
				AllowMissing: false,
				Unique:       true,
				Indexer: &memdb.StringFieldIndex{
					Field: "ID",
				},
			},
			"date_status": {
				Name:         "date_status",
				AllowMissing: false,
				Unique:       false,
				Indexer: &memdb.CompoundIndex{
					Indexes: []memdb.Indexer{
						&memdb.StringFieldIndex{
							Field: "PlanDate",
						},
						&memdb.StringFieldIndex{
							Field: "Status",
						},
					},
				},
			},
			"status": {
				Name:         "status",
				AllowMissing: false,
				Unique:       false,
				Indexer: &memdb.StringFieldIndex{
					Field: "Status",
				},
			},
		},
	}
}
