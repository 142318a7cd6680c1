package mockservice

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/correlation"
	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/schema"
	"github.com/starford/ofmock/internal/store"
)

const (
	defaultTreeDepth = 2
	maxTreeNodes     = 5000
)

// TreeRequest describes a correlated tree to build. Schema may be empty, in
// which case the first schema declaring Field is used. Depth 0 means 2 levels
// below the root; FanOut 0 means the configured fan-out.
type TreeRequest struct {
	Contract string `json:"contract"`
	Schema   string `json:"schema,omitempty"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
	Depth    int    `json:"depth,omitempty"`
	FanOut   int    `json:"fan_out,omitempty"`
}

// TreeNode is one registered record and the records generated from its outgoing rules.
type TreeNode struct {
	Record   *store.Record     `json:"record"`
	Rule     *correlation.Rule `json:"rule,omitempty"` // rule that produced this node
	Children []*TreeNode       `json:"children"`
}

// Tree is the result of BuildTree.
type Tree struct {
	Root     *TreeNode `json:"root"`
	Size     int       `json:"size"`
	Seed     uint64    `json:"seed"`
	Warnings []string  `json:"warnings"`
}

// Records returns every record of the tree in depth-first order.
func (t *Tree) Records() []*store.Record {
	var out []*store.Record
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		out = append(out, n.Record)
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
	return out
}

// TreeSeed derives the generation seed of a tree from its root key. Equal
// (contract, field, value) triples always produce equal trees.
func TreeSeed(storeKey, field string, value any) uint64 {
	k, _ := store.Key(value)
	h := fnv.New64a()
	h.Write([]byte(storeKey))
	h.Write([]byte{0})
	h.Write([]byte(field))
	h.Write([]byte{0})
	h.Write([]byte(k))
	return h.Sum64()
}

type treeBuilder struct {
	svc      *Service
	sess     *generator.Session
	fanOut   int
	size     int
	full     bool
	warnings []string
}

// BuildTree generates a root record with req.Value forced into req.Field, then
// follows outgoing correlation rules generating linked records: one per
// one-to-one rule and FanOut per one-to-many rule, each with the rule's target
// field set to the parent's source value. Every record is registered.
func (s *Service) BuildTree(ctx context.Context, req TreeRequest) (*Tree, error) {
	if req.Field == "" {
		return nil, fmt.Errorf("%w: field is required", apperr.ErrInvalidArgument)
	}
	if _, ok := store.Key(req.Value); !ok {
		return nil, fmt.Errorf("%w: value must be a scalar", apperr.ErrInvalidArgument)
	}
	depth := req.Depth
	switch {
	case depth == 0:
		depth = min(defaultTreeDepth, s.limits.MaxDepth)
	case depth < 0 || depth > s.limits.MaxDepth:
		return nil, fmt.Errorf("%w: depth must be between 1 and %d", apperr.ErrInvalidArgument, s.limits.MaxDepth)
	}
	fanOut := req.FanOut
	switch {
	case fanOut == 0:
		fanOut = s.limits.FanOut
	case fanOut < 0 || fanOut > s.limits.MaxFanOut:
		return nil, fmt.Errorf("%w: fan_out must be between 1 and %d", apperr.ErrInvalidArgument, s.limits.MaxFanOut)
	}

	c, err := s.contract(req.Contract)
	if err != nil {
		return nil, err
	}
	obj, err := rootSchema(c, req.Schema, req.Field)
	if err != nil {
		return nil, err
	}

	key := StoreKey(c)
	seed := TreeSeed(key, req.Field, req.Value)
	b := &treeBuilder{svc: s, sess: s.gen.SessionWithSeed(seed), fanOut: fanOut}
	root, err := b.node(ctx, key, obj, req.Field, req.Value, nil)
	if err != nil {
		return nil, err
	}
	if err := b.expand(ctx, root, depth, map[string]bool{key: true}); err != nil {
		return nil, err
	}

	generator.LogDiagnostics(s.logger, b.sess.Diagnostics())
	s.notify(Change{Kind: ChangeRegistered, Count: b.size})
	return &Tree{Root: root, Size: b.size, Seed: seed, Warnings: nonNilSlice(b.warnings)}, nil
}

func rootSchema(c *schema.Contract, name, field string) (*schema.Object, error) {
	if name != "" {
		return c.Schema(name)
	}
	obj, ok := c.SchemaWithField(field)
	if !ok {
		return nil, fmt.Errorf("%w: no schema of contract %s declares %s", apperr.ErrSchemaNotFound, c.Name(), field)
	}
	return obj, nil
}

func (b *treeBuilder) node(ctx context.Context, key string, obj *schema.Object, field string, value any, rule *correlation.Rule) (*TreeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := b.sess.ForContract(key).Object(obj, obj.Name)
	store.SetPath(data, field, value)
	rec, err := b.svc.store.Register(key, obj.Name, data)
	if err != nil {
		return nil, err
	}
	b.size++
	return &TreeNode{Record: rec, Rule: rule, Children: []*TreeNode{}}, nil
}

// expand adds children to n for depth more levels. Contracts already on the
// path from the root are not revisited.
func (b *treeBuilder) expand(ctx context.Context, n *TreeNode, depth int, onPath map[string]bool) error {
	if depth == 0 {
		return nil
	}
	for _, rule := range b.svc.graph.EdgesFrom(n.Record.Contract) {
		if onPath[rule.TargetContract] {
			continue
		}
		value, ok := store.Lookup(n.Record.Data, rule.SourceField)
		if !ok {
			b.warn("%s: record has no %s", rule, rule.SourceField)
			continue
		}
		target, err := b.svc.contract(rule.TargetContract)
		if err != nil {
			b.warn("%s: contract %s is not loaded", rule, rule.TargetContract)
			continue
		}
		if key := StoreKey(target); key != rule.TargetContract {
			b.warn("%s: contract %s is stored as %s", rule, rule.TargetContract, key)
			continue
		}
		obj, ok := target.SchemaWithField(rule.TargetField)
		if !ok {
			b.warn("%s: no schema of %s declares %s", rule, target.Name(), rule.TargetField)
			continue
		}

		count := 1
		if rule.Relationship == correlation.OneToMany {
			count = b.fanOut
		}
		onPath[rule.TargetContract] = true
		for i := 0; i < count; i++ {
			if b.size >= maxTreeNodes {
				if !b.full {
					b.full = true
					b.warn("tree truncated at %d records", maxTreeNodes)
				}
				delete(onPath, rule.TargetContract)
				return nil
			}
			r := rule
			child, err := b.node(ctx, rule.TargetContract, obj, rule.TargetField, value, &r)
			if err != nil {
				return err
			}
			n.Children = append(n.Children, child)
			if err := b.expand(ctx, child, depth-1, onPath); err != nil {
				return err
			}
		}
		delete(onPath, rule.TargetContract)
	}
	return nil
}

func (b *treeBuilder) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}
