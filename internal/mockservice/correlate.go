package mockservice

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/correlation"
	"github.com/starford/ofmock/internal/store"
)

// FindCorrelated returns the first record of contract whose field equals value
// together with the records reachable from it. depth 1 (or 0) is a single hop;
// larger depths follow the rules of related contracts too, up to MaxDepth.
func (s *Service) FindCorrelated(_ context.Context, contractName, field string, value any, depth int) (*store.Result, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: field is required", apperr.ErrInvalidArgument)
	}
	if depth > s.limits.MaxDepth {
		return nil, fmt.Errorf("%w: depth %d exceeds the limit of %d", apperr.ErrInvalidArgument, depth, s.limits.MaxDepth)
	}
	res, err := s.store.FindCorrelated(s.storeKey(contractName), field, value)
	if err != nil {
		return nil, err
	}
	return s.Expand(res, depth), nil
}

// Expand follows outgoing rules from every related record of res until depth
// hops have been made. Each record appears once; res is not modified.
func (s *Service) Expand(res *store.Result, depth int) *store.Result {
	out := &store.Result{Primary: res.Primary, Related: make(map[string][]*store.Record, len(res.Related))}
	seen := map[*store.Record]bool{res.Primary: true}
	var frontier []*store.Record
	for _, contract := range sortedKeys(res.Related) {
		recs := res.Related[contract]
		out.Related[contract] = append([]*store.Record{}, recs...)
		for _, r := range recs {
			if !seen[r] {
				seen[r] = true
				frontier = append(frontier, r)
			}
		}
	}

	for hop := 1; hop < depth && len(frontier) > 0; hop++ {
		var next []*store.Record
		for _, rec := range frontier {
			related := s.store.Related(rec)
			for _, contract := range sortedKeys(related) {
				if _, ok := out.Related[contract]; !ok {
					out.Related[contract] = []*store.Record{}
				}
				for _, r := range related[contract] {
					if seen[r] {
						continue
					}
					seen[r] = true
					out.Related[contract] = append(out.Related[contract], r)
					next = append(next, r)
				}
			}
		}
		frontier = next
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CorrelationGraph returns every rule with the adjacency view.
func (s *Service) CorrelationGraph(_ context.Context) correlation.Listing {
	return s.graph.Listing()
}

// RulesFor returns the rules touching a contract, on either side.
func (s *Service) RulesFor(_ context.Context, contractName string) []correlation.Rule {
	rules := s.graph.RulesFor(s.storeKey(contractName))
	if rules == nil {
		return []correlation.Rule{}
	}
	return rules
}

// Chain returns the shortest rule chain from one contract to another.
func (s *Service) Chain(_ context.Context, from, to string) ([]correlation.Rule, error) {
	return s.graph.Chain(s.storeKey(from), s.storeKey(to))
}

// Records returns the registered records of a contract in insertion order.
func (s *Service) Records(_ context.Context, contractName string) []*store.Record {
	return s.store.Records(s.storeKey(contractName))
}

// Stats returns the record count per store key.
func (s *Service) Stats(_ context.Context) map[string]int {
	return s.store.Stats()
}

// Reset drops the records of a contract, or all records when contractName is empty.
func (s *Service) Reset(_ context.Context, contractName string) {
	key := ""
	if contractName != "" {
		key = s.storeKey(contractName)
	}
	s.store.Reset(key)
	s.notify(Change{Kind: ChangeReset, Contract: key})
}
