// Package correlation holds the static rules linking fields across contracts and
// the graph queries derived from them.
package correlation

import (
	"fmt"
	"sort"

	"github.com/starford/ofmock/internal/apperr"
)

// Relationship is the cardinality of a rule from source to target.
type Relationship string

const (
	OneToOne  Relationship = "one-to-one"
	OneToMany Relationship = "one-to-many"
)

// Valid reports whether r is a known relationship.
func (r Relationship) Valid() bool {
	return r == OneToOne || r == OneToMany
}

// Rule links SourceField of SourceContract records to TargetField of
// TargetContract records.
type Rule struct {
	SourceContract string       `json:"source_contract" yaml:"source_contract"`
	TargetContract string       `json:"target_contract" yaml:"target_contract"`
	SourceField    string       `json:"source_field" yaml:"source_field"`
	TargetField    string       `json:"target_field" yaml:"target_field"`
	Relationship   Relationship `json:"relationship" yaml:"relationship"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s (%s)", r.SourceContract, r.SourceField, r.TargetContract, r.TargetField, r.Relationship)
}

// Validate checks that every part of the rule is set.
func (r Rule) Validate() error {
	switch {
	case r.SourceContract == "" || r.TargetContract == "":
		return fmt.Errorf("%w: rule %s: contract names are required", apperr.ErrInvalidArgument, r)
	case r.SourceField == "" || r.TargetField == "":
		return fmt.Errorf("%w: rule %s: field names are required", apperr.ErrInvalidArgument, r)
	case !r.Relationship.Valid():
		return fmt.Errorf("%w: rule %s: unknown relationship %q", apperr.ErrInvalidArgument, r, r.Relationship)
	}
	return nil
}

// DefaultRules are the Open Finance relationships between consents, resources,
// customers, accounts, credit card accounts and their transactions.
func DefaultRules() []Rule {
	return []Rule{
		{SourceContract: "consents", TargetContract: "resources", SourceField: "consentId", TargetField: "consentId", Relationship: OneToMany},
		{SourceContract: "resources", TargetContract: "accounts", SourceField: "accountId", TargetField: "accountId", Relationship: OneToOne},
		{SourceContract: "accounts", TargetContract: "transactions", SourceField: "accountId", TargetField: "accountId", Relationship: OneToMany},
		{SourceContract: "customers", TargetContract: "accounts", SourceField: "customerId", TargetField: "customerId", Relationship: OneToMany},
		{SourceContract: "credit-cards-accounts", TargetContract: "transactions", SourceField: "creditCardAccountId", TargetField: "creditCardAccountId", Relationship: OneToMany},
	}
}

// Graph is an immutable index over a rule arena. Indexes hold positions into the
// arena, keyed by contract name.
type Graph struct {
	rules    []Rule
	outgoing map[string][]int
	touching map[string][]int
	fields   map[string][]string
}

// New validates rules and builds the graph. Rule order is preserved.
func New(rules []Rule) (*Graph, error) {
	g := &Graph{
		rules:    append([]Rule(nil), rules...),
		outgoing: make(map[string][]int),
		touching: make(map[string][]int),
		fields:   make(map[string][]string),
	}

	fieldSets := make(map[string]map[string]struct{})
	addField := func(contract, field string) {
		if fieldSets[contract] == nil {
			fieldSets[contract] = make(map[string]struct{})
		}
		fieldSets[contract][field] = struct{}{}
	}

	for i, r := range g.rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		g.outgoing[r.SourceContract] = append(g.outgoing[r.SourceContract], i)
		g.touching[r.SourceContract] = append(g.touching[r.SourceContract], i)
		if r.TargetContract != r.SourceContract {
			g.touching[r.TargetContract] = append(g.touching[r.TargetContract], i)
		}
		addField(r.SourceContract, r.SourceField)
		addField(r.TargetContract, r.TargetField)
	}

	for contract, set := range fieldSets {
		names := make([]string, 0, len(set))
		for f := range set {
			names = append(names, f)
		}
		sort.Strings(names)
		g.fields[contract] = names
	}
	return g, nil
}

// MustNew is New that panics on invalid rules.
func MustNew(rules []Rule) *Graph {
	g, err := New(rules)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) pick(idx []int) []Rule {
	out := make([]Rule, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.rules[i])
	}
	return out
}

// Rules returns every rule in declaration order.
func (g *Graph) Rules() []Rule {
	return append([]Rule(nil), g.rules...)
}

// EdgesFrom returns the rules whose source is contract, in declaration order.
func (g *Graph) EdgesFrom(contract string) []Rule {
	return g.pick(g.outgoing[contract])
}

// RulesFor returns the rules where contract is the source or the target.
func (g *Graph) RulesFor(contract string) []Rule {
	return g.pick(g.touching[contract])
}

// FieldsFor returns the sorted field names of contract referenced by any rule.
func (g *Graph) FieldsFor(contract string) []string {
	return append([]string(nil), g.fields[contract]...)
}

// Contracts returns every contract named by a rule, sorted.
func (g *Graph) Contracts() []string {
	out := make([]string, 0, len(g.touching))
	for c := range g.touching {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Adjacency maps each source contract to its distinct targets in rule order.
func (g *Graph) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(g.outgoing))
	for source, idx := range g.outgoing {
		seen := make(map[string]bool)
		for _, i := range idx {
			target := g.rules[i].TargetContract
			if !seen[target] {
				seen[target] = true
				adj[source] = append(adj[source], target)
			}
		}
	}
	return adj
}

// Chain returns the shortest sequence of rules leading from one contract to
// another, following rule direction.
func (g *Graph) Chain(from, to string) ([]Rule, error) {
	if from == to {
		return []Rule{}, nil
	}
	prev := map[string]int{from: -1}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, i := range g.outgoing[cur] {
			next := g.rules[i].TargetContract
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = i
			if next == to {
				return g.path(prev, to), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, fmt.Errorf("%w: no correlation chain from %s to %s", apperr.ErrNotFound, from, to)
}

func (g *Graph) path(prev map[string]int, to string) []Rule {
	var out []Rule
	for cur := to; prev[cur] >= 0; {
		r := g.rules[prev[cur]]
		out = append(out, r)
		cur = r.SourceContract
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Listing is the serializable form of the graph.
type Listing struct {
	Rules     []Rule              `json:"rules"`
	Adjacency map[string][]string `json:"adjacency"`
	Contracts []string            `json:"contracts"`
}

// Listing returns every rule with the adjacency view.
func (g *Graph) Listing() Listing {
	return Listing{Rules: g.Rules(), Adjacency: g.Adjacency(), Contracts: g.Contracts()}
}
