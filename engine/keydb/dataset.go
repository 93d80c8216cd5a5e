package keydb

import (
	"errors"
	"fmt"

	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/pkg/fn"
)

// ErrMakeMissing is returned by Parse when the file has no entry for the make.
var ErrMakeMissing = errors.New("dataset has no entry for make")

// Dataset is one manufacturer's models.
type Dataset struct {
	Make    domain.Make
	models  map[string]*Model
	order   []string
	skipped []Issue
}

// NewDataset returns an empty dataset for m.
func NewDataset(m domain.Make) *Dataset {
	return &Dataset{Make: m, models: make(map[string]*Model)}
}

// Parse decodes a manufacturer file of the shape
// {"<make>": {"<model>": {"START-END": {...record...}}}}.
// Models whose value is not an object are skipped and reported by Check.
func Parse(m domain.Make, data []byte) (*Dataset, error) {
	ds := NewDataset(m)

	top, err := members(data)
	if err != nil {
		return ds, fmt.Errorf("decode %s dataset: %w", m, err)
	}
	var brand *member
	for i := range top {
		if top[i].Key == string(m) {
			brand = &top[i]
		}
	}
	if brand == nil {
		return ds, fmt.Errorf("%w %q", ErrMakeMissing, m)
	}

	models, err := members(brand.Value)
	if err != nil {
		return ds, fmt.Errorf("decode %s models: %w", m, err)
	}
	for _, mm := range models {
		raw, err := members(mm.Value)
		if err != nil {
			ds.skipped = append(ds.skipped, Issue{
				Make: m, Model: mm.Key, Kind: IssueMalformedModel, Detail: err.Error(),
			})
			continue
		}
		ds.Add(&Model{
			Name: mm.Key,
			Buckets: fn.Map(raw, func(b member) Bucket {
				return decodeBucket(b.Key, b.Value)
			}),
		})
	}
	return ds, nil
}

// Add inserts or replaces a model.
func (ds *Dataset) Add(m *Model) {
	if _, ok := ds.models[m.Name]; !ok {
		ds.order = append(ds.order, m.Name)
	}
	ds.models[m.Name] = m
}

// Model looks up a model by exact name.
func (ds *Dataset) Model(name string) (*Model, bool) {
	if ds == nil {
		return nil, false
	}
	m, ok := ds.models[name]
	return m, ok
}

// Models returns model names sorted lexicographically.
func (ds *Dataset) Models() []string {
	if ds == nil {
		return []string{}
	}
	return fn.SortedKeys(ds.models)
}

// Len returns the number of models.
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.models)
}

// each visits models in file order.
func (ds *Dataset) each(f func(*Model)) {
	for _, name := range ds.order {
		f(ds.models[name])
	}
}

// Database maps every supported make to its dataset.
type Database struct {
	sets map[domain.Make]*Dataset
}

// NewDatabase builds a database from already parsed datasets. Supported
// makes without a dataset get an empty one.
func NewDatabase(sets ...*Dataset) *Database {
	db := &Database{sets: make(map[domain.Make]*Dataset, len(domain.SupportedMakes))}
	for _, m := range domain.SupportedMakes {
		db.sets[m] = NewDataset(m)
	}
	for _, ds := range sets {
		db.sets[ds.Make] = ds
	}
	return db
}

// Dataset returns the dataset for m.
func (db *Database) Dataset(m domain.Make) (*Dataset, bool) {
	ds, ok := db.sets[m]
	return ds, ok
}

// Models returns the sorted model names known for m; empty for an unknown
// make or an empty dataset.
func (db *Database) Models(m domain.Make) []string {
	ds, _ := db.Dataset(m)
	return ds.Models()
}

// MakeStats summarises one make's dataset.
type MakeStats struct {
	Make    domain.Make `json:"make"`
	Models  int         `json:"models"`
	Buckets int         `json:"buckets"`
}

// Stats returns per-make counts in presentation order.
func (db *Database) Stats() []MakeStats {
	return fn.Map(domain.SupportedMakes, func(m domain.Make) MakeStats {
		st := MakeStats{Make: m}
		if ds, ok := db.sets[m]; ok {
			st.Models = ds.Len()
			ds.each(func(mod *Model) { st.Buckets += len(mod.Buckets) })
		}
		return st
	})
}
