package features

import (
	"fmt"
	"sort"

	memdb "github.com/hashicorp/go-memdb"
)

const entityTable = "entities"

type entityRecord struct {
	ID     string
	Type   string
	Name   string
	Seq    uint64
	Entity *Entity
}

var directorySchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		entityTable: {
			Name: entityTable,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"type": {
					Name:    "type",
					Indexer: &memdb.StringFieldIndex{Field: "Type"},
				},
			},
		},
	},
}

// directory remembers every entity a session has handed out, so hydration
// and dumps can find them again in first-seen order.
type directory struct {
	db  *memdb.MemDB
	seq uint64
}

func newDirectory() *directory {
	db, err := memdb.NewMemDB(directorySchema)
	if err != nil {
		panic(fmt.Sprintf("entity directory schema: %v", err))
	}
	return &directory{db: db}
}

func entityID(et *EntityType, name string) string {
	return et.Name() + "\x00" + name
}

func (d *directory) lookupOrCreate(s *Session, et *EntityType, name string) (*Entity, error) {
	id := entityID(et, name)

	txn := d.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(entityTable, "id", id)
	if err != nil {
		return nil, fmt.Errorf("looking up entity %s %q: %w", et.Name(), name, err)
	}
	if raw != nil {
		return raw.(*entityRecord).Entity, nil
	}

	d.seq++
	rec := &entityRecord{
		ID:     id,
		Type:   et.Name(),
		Name:   name,
		Seq:    d.seq,
		Entity: &Entity{typ: et, name: name, session: s},
	}
	if err := txn.Insert(entityTable, rec); err != nil {
		return nil, fmt.Errorf("recording entity %s %q: %w", et.Name(), name, err)
	}
	txn.Commit()
	return rec.Entity, nil
}

func (d *directory) list(et *EntityType) []*Entity {
	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(entityTable, "type", et.Name())
	if err != nil {
		return nil
	}

	var recs []*entityRecord
	for obj := it.Next(); obj != nil; obj = it.Next() {
		recs = append(recs, obj.(*entityRecord))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })

	out := make([]*Entity, len(recs))
	for i, rec := range recs {
		out[i] = rec.Entity
	}
	return out
}
