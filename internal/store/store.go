// Package store keeps generated records per contract and answers one-hop
// correlated lookups following a correlation.Graph.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/correlation"
)

// Record is one registered record. Records are immutable once registered.
type Record struct {
	ID             string         `json:"id"`
	Contract       string         `json:"contract"`
	Schema         string         `json:"schema"`
	Data           map[string]any `json:"data"`
	CorrelationIDs map[string]any `json:"correlation_ids"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Result is the answer to FindCorrelated. Every target contract of an outgoing
// rule has an entry in Related, possibly empty.
type Result struct {
	Primary *Record              `json:"primary"`
	Related map[string][]*Record `json:"related"`
}

// Store is the collection of per-contract data stores for one session.
type Store struct {
	graph *correlation.Graph
	now   func() time.Time

	mu     sync.RWMutex
	stores map[string]*dataStore
}

// New creates an empty store indexing the fields named by graph.
func New(graph *correlation.Graph) *Store {
	return &Store{
		graph:  graph,
		now:    time.Now,
		stores: make(map[string]*dataStore),
	}
}

// Graph returns the graph the store follows.
func (s *Store) Graph() *correlation.Graph { return s.graph }

func (s *Store) lookup(contract string) *dataStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stores[contract]
}

func (s *Store) getOrCreate(contract string) *dataStore {
	if ds := s.lookup(contract); ds != nil {
		return ds
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ds, ok := s.stores[contract]; ok {
		return ds
	}
	ds := newDataStore(s.graph.FieldsFor(contract))
	s.stores[contract] = ds
	return ds
}

// Register appends a record to the contract's data store. Identical records are
// stored again; nothing is deduplicated. The data is copied.
func (s *Store) Register(contract, schemaName string, data map[string]any) (*Record, error) {
	if contract == "" {
		return nil, fmt.Errorf("%w: contract is required", apperr.ErrInvalidArgument)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: record data is required", apperr.ErrInvalidArgument)
	}

	ds := s.getOrCreate(contract)
	rec := &Record{
		ID:             uuid.NewString(),
		Contract:       contract,
		Schema:         schemaName,
		Data:           cloneMap(data),
		CorrelationIDs: make(map[string]any),
		CreatedAt:      s.now().UTC(),
	}
	for _, field := range ds.fields {
		if v, ok := Lookup(rec.Data, field); ok {
			rec.CorrelationIDs[field] = v
		}
	}
	ds.add(rec)
	return rec, nil
}

// FindCorrelated finds the first record of primaryContract whose primaryField
// equals value and, for each outgoing rule, the target records whose target
// field equals the primary's source field. One hop only.
func (s *Store) FindCorrelated(primaryContract, primaryField string, value any) (*Result, error) {
	key, ok := Key(value)
	if !ok {
		return nil, fmt.Errorf("%w: value of %s.%s is not a scalar", apperr.ErrInvalidArgument, primaryContract, primaryField)
	}

	var primary *Record
	if ds := s.lookup(primaryContract); ds != nil {
		primary = ds.first(primaryField, key)
	}
	if primary == nil {
		return nil, fmt.Errorf("%w: %s.%s = %v", apperr.ErrRecordNotFound, primaryContract, primaryField, value)
	}

	return &Result{Primary: primary, Related: s.Related(primary)}, nil
}

// Related follows every outgoing rule of rec's contract one hop. Each target
// contract has an entry, possibly empty.
func (s *Store) Related(rec *Record) map[string][]*Record {
	related := make(map[string][]*Record)
	for _, rule := range s.graph.EdgesFrom(rec.Contract) {
		if _, ok := related[rule.TargetContract]; !ok {
			related[rule.TargetContract] = []*Record{}
		}
		v, ok := Lookup(rec.Data, rule.SourceField)
		if !ok {
			continue
		}
		k, ok := Key(v)
		if !ok {
			continue
		}
		target := s.lookup(rule.TargetContract)
		if target == nil {
			continue
		}
		matches := target.find(rule.TargetField, k)
		if rule.Relationship == correlation.OneToOne && len(matches) > 1 {
			matches = matches[:1]
		}
		related[rule.TargetContract] = appendDistinct(related[rule.TargetContract], matches)
	}
	return related
}

func appendDistinct(dst, src []*Record) []*Record {
	for _, r := range src {
		dup := false
		for _, d := range dst {
			if d == r {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, r)
		}
	}
	return dst
}

// Records returns the contract's records in insertion order.
func (s *Store) Records(contract string) []*Record {
	ds := s.lookup(contract)
	if ds == nil {
		return []*Record{}
	}
	return ds.all()
}

// Len returns the number of records registered for contract.
func (s *Store) Len(contract string) int {
	ds := s.lookup(contract)
	if ds == nil {
		return 0
	}
	return ds.len()
}

// Stats returns the record count per contract.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.stores))
	for name, ds := range s.stores {
		out[name] = ds.len()
	}
	return out
}

// Contracts returns the names of contracts holding records, sorted.
func (s *Store) Contracts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.stores))
	for name := range s.stores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset drops the records of contract, or of every contract when contract is empty.
func (s *Store) Reset(contract string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contract == "" {
		s.stores = make(map[string]*dataStore)
		return
	}
	delete(s.stores, contract)
}

// dataStore holds one contract's records and a secondary index
// field -> value key -> record positions.
type dataStore struct {
	fields []string

	mu      sync.RWMutex
	records []*Record
	index   map[string]map[string][]int
}

func newDataStore(fields []string) *dataStore {
	ds := &dataStore{fields: fields, index: make(map[string]map[string][]int, len(fields))}
	for _, f := range fields {
		ds.index[f] = make(map[string][]int)
	}
	return ds
}

func (ds *dataStore) add(rec *Record) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	pos := len(ds.records)
	ds.records = append(ds.records, rec)
	for _, f := range ds.fields {
		v, ok := rec.CorrelationIDs[f]
		if !ok {
			continue
		}
		if k, ok := Key(v); ok {
			ds.index[f][k] = append(ds.index[f][k], pos)
		}
	}
}

func (ds *dataStore) find(field, key string) []*Record {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if idx, ok := ds.index[field]; ok {
		positions := idx[key]
		out := make([]*Record, 0, len(positions))
		for _, p := range positions {
			out = append(out, ds.records[p])
		}
		return out
	}
	var out []*Record
	for _, rec := range ds.records {
		if v, ok := Lookup(rec.Data, field); ok {
			if k, ok := Key(v); ok && k == key {
				out = append(out, rec)
			}
		}
	}
	return out
}

func (ds *dataStore) first(field, key string) *Record {
	matches := ds.find(field, key)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func (ds *dataStore) all() []*Record {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return append([]*Record(nil), ds.records...)
}

func (ds *dataStore) len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.records)
}
