// Package generator produces values and records that satisfy the constraints of
// schema fields.
//
// Each call runs inside a Session holding its own random source and diagnostics,
// so a Generator can be shared across goroutines. Resolution order for a field:
// enum, example lookup, strong domain category, identifier category, pattern,
// then kind and format.
package generator

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/regexgen"
	"github.com/starford/ofmock/internal/schema"
)

const (
	defaultMinLength = 1
	defaultMaxLength = 20
	defaultMinItems  = 1
	defaultMaxItems  = 5
	defaultIntRange  = 1_000_000
	maxObjectDepth   = 8
	dateWindow       = 3 * 365 * 24 * time.Hour
)

// ExampleLookup supplies preferred values for a field, such as the example
// declared in the contract or entries of a data dictionary. Candidates that
// violate any constraint of the field are skipped.
type ExampleLookup interface {
	EnumOrExample(field *schema.Field, fc FieldContext) []any
}

// DeclaredExamples returns the example declared on the field itself.
type DeclaredExamples struct{}

func (DeclaredExamples) EnumOrExample(field *schema.Field, _ FieldContext) []any {
	if field.Example == nil {
		return nil
	}
	return []any{field.Example}
}

// Option configures a Generator.
type Option func(*Generator)

// WithRepetitionCap bounds unbounded regex quantifiers.
func WithRepetitionCap(n int) Option {
	return func(g *Generator) { g.repetitionCap = n }
}

// WithPopulateOptional controls whether non-required object fields are generated.
func WithPopulateOptional(v bool) Option {
	return func(g *Generator) { g.populateOptional = v }
}

// WithExampleLookup enables example values. Lookups are consulted in order
// and the first one offering an acceptable candidate wins.
func WithExampleLookup(l ...ExampleLookup) Option {
	return func(g *Generator) { g.examples = append(g.examples, l...) }
}

// WithSeed makes the sequence of sessions opened by Session reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.master = rand.New(rand.NewPCG(seed, seed)) }
}

// WithReferenceTime anchors generated dates, which fall in the three years before t.
func WithReferenceTime(t time.Time) Option {
	return func(g *Generator) { g.reference = t.UTC() }
}

// Generator produces constraint-satisfying values.
type Generator struct {
	repetitionCap    int
	populateOptional bool
	examples         []ExampleLookup
	reference        time.Time
	patterns         *regexgen.Cache

	mu     sync.Mutex
	master *rand.Rand
}

// New creates a Generator. Optional fields are populated by default.
func New(opts ...Option) *Generator {
	g := &Generator{
		repetitionCap:    regexgen.DefaultRepetitionCap,
		populateOptional: true,
		reference:        time.Now().UTC().Truncate(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.master == nil {
		g.master = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	g.patterns = regexgen.NewCache(g.repetitionCap)
	return g
}

// Session opens a session seeded from the generator's master source.
func (g *Generator) Session() *Session {
	g.mu.Lock()
	a, b := g.master.Uint64(), g.master.Uint64()
	g.mu.Unlock()
	return &Session{g: g, rng: rand.New(rand.NewPCG(a, b))}
}

// SessionWithSeed opens a session whose output depends only on seed.
func (g *Generator) SessionWithSeed(seed uint64) *Session {
	return &Session{g: g, rng: rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))}
}

// Generate produces one value for field.
func (g *Generator) Generate(field *schema.Field, fc FieldContext) (any, []Diagnostic) {
	s := g.Session()
	v := s.Generate(field, fc)
	return v, s.Diagnostics()
}

// GenerateRecords produces count records for the named schema of contract.
func (g *Generator) GenerateRecords(contract *schema.Contract, schemaName string, count int) ([]map[string]any, []Diagnostic, error) {
	return g.Session().Records(contract, schemaName, count)
}

// FieldContext describes where a field is being generated.
type FieldContext struct {
	// Contract is the category (or name) of the contract being generated,
	// used to scope example lookups.
	Contract   string
	FieldName  string
	SchemaName string
	// Category overrides the field's resolved category when set.
	Category schema.Category
	Required bool
	// Path is the dotted location used in diagnostics.
	Path string
}

// Session is one generation run with private randomness and diagnostics.
// A Session is not safe for concurrent use.
type Session struct {
	g        *Generator
	rng      *rand.Rand
	diags    []Diagnostic
	depth    int
	contract string
}

// ForContract scopes the example lookups of later calls to contract, a
// category or contract name.
func (s *Session) ForContract(contract string) *Session {
	s.contract = contract
	return s
}

// Rand exposes the session's random source.
func (s *Session) Rand() *rand.Rand { return s.rng }

// Diagnostics returns the conditions recorded so far.
func (s *Session) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), s.diags...)
}

// Records produces count records for the named schema of contract.
func (s *Session) Records(contract *schema.Contract, schemaName string, count int) ([]map[string]any, []Diagnostic, error) {
	if count < 1 {
		return nil, nil, fmt.Errorf("%w: count must be at least 1, got %d", apperr.ErrInvalidArgument, count)
	}
	obj, err := contract.Schema(schemaName)
	if err != nil {
		return nil, nil, err
	}
	if s.contract = contract.Category(); s.contract == "" {
		s.contract = contract.Name()
	}
	start := len(s.diags)
	out := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.Object(obj, obj.Name))
	}
	return out, append([]Diagnostic(nil), s.diags[start:]...), nil
}

// Object generates every field of obj. Optional fields are skipped when the
// generator does not populate them.
func (s *Session) Object(obj *schema.Object, path string) map[string]any {
	out := make(map[string]any, len(obj.Fields))
	if s.depth >= maxObjectDepth {
		return out
	}
	s.depth++
	defer func() { s.depth-- }()

	for _, f := range obj.Fields {
		required := obj.IsRequired(f.Name)
		if !required && !s.g.populateOptional {
			continue
		}
		out[f.Name] = s.Generate(f, FieldContext{
			Contract:   s.contract,
			FieldName:  f.Name,
			SchemaName: obj.Name,
			Required:   required,
			Path:       path + "." + f.Name,
		})
	}
	return out
}
