// Package schema holds the constraint-annotated model of API contracts that the
// generator consumes. Values are built once by the loader and never mutated after
// NewContract returns.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/ofmock/internal/apperr"
)

// Field is one typed, constrained property of a schema.
type Field struct {
	Name        string
	Kind        Kind
	Format      Format
	FormatName  string // declared format, kept for FormatOther
	Pattern     string
	Description string

	MinLength *int
	MaxLength *int

	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum bool
	ExclusiveMaximum bool

	Enum []any

	Items    *Field  // KindArray
	MinItems *int    // KindArray
	MaxItems *int    // KindArray
	Object   *Object // KindObject

	Nullable bool
	Example  any

	// Category is filled by NewContract from Name and Format.
	Category Category
}

// Object is a named object type with ordered fields.
type Object struct {
	Name     string
	Fields   []*Field
	Required map[string]bool
}

// IsRequired reports whether the named field is required.
func (o *Object) IsRequired(name string) bool {
	return o.Required[name]
}

// Field returns the field with the given name.
func (o *Object) Field(name string) (*Field, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Endpoint is one operation exposed by a contract.
type Endpoint struct {
	Path           string `json:"path"`
	Method         string `json:"method"`
	OperationID    string `json:"operation_id,omitempty"`
	Summary        string `json:"summary,omitempty"`
	Description    string `json:"description,omitempty"`
	RequestSchema  string `json:"request_schema,omitempty"`
	ResponseSchema string `json:"response_schema,omitempty"`
}

// ContractSpec is the input to NewContract.
type ContractSpec struct {
	Name        string
	Version     string
	Category    string
	Description string
	BasePath    string
	Source      string
	Endpoints   []Endpoint
	Schemas     map[string]*Object
}

// Contract is an immutable, validated API contract.
type Contract struct {
	name        string
	version     string
	category    string
	description string
	basePath    string
	source      string
	endpoints   []Endpoint
	schemas     map[string]*Object
	schemaNames []string
}

// NewContract validates the schema trees of spec and resolves field categories.
// The contract takes ownership of the objects in spec.Schemas.
func NewContract(spec ContractSpec) (*Contract, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: contract name is empty", apperr.ErrMalformedSchema)
	}

	names := make([]string, 0, len(spec.Schemas))
	for name := range spec.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		obj := spec.Schemas[name]
		if obj == nil {
			return nil, fmt.Errorf("%w: %s: schema %q is nil", apperr.ErrMalformedSchema, spec.Name, name)
		}
		if obj.Name == "" {
			obj.Name = name
		}
		if err := prepareObject(obj, name, map[*Object]bool{}); err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
	}

	return &Contract{
		name:        spec.Name,
		version:     spec.Version,
		category:    spec.Category,
		description: spec.Description,
		basePath:    spec.BasePath,
		source:      spec.Source,
		endpoints:   append([]Endpoint(nil), spec.Endpoints...),
		schemas:     spec.Schemas,
		schemaNames: names,
	}, nil
}

func prepareObject(obj *Object, path string, seen map[*Object]bool) error {
	if seen[obj] {
		return nil
	}
	seen[obj] = true
	if obj.Required == nil {
		obj.Required = map[string]bool{}
	}
	for _, f := range obj.Fields {
		if err := prepareField(f, path+"."+f.Name, seen); err != nil {
			return err
		}
	}
	return nil
}

func prepareField(f *Field, path string, seen map[*Object]bool) error {
	if f == nil {
		return fmt.Errorf("%w: %s: nil field", apperr.ErrMalformedSchema, path)
	}
	if f.Category == CategoryNone {
		f.Category = Classify(f.Name, f.Format)
	}
	switch f.Kind {
	case KindArray:
		if f.Items == nil {
			return fmt.Errorf("%w: %s: array without items", apperr.ErrMalformedSchema, path)
		}
		if f.Items.Name == "" {
			f.Items.Name = f.Name
		}
		return prepareField(f.Items, path+"[]", seen)
	case KindObject:
		if f.Object == nil {
			return fmt.Errorf("%w: %s: object without properties", apperr.ErrMalformedSchema, path)
		}
		return prepareObject(f.Object, path, seen)
	}
	return nil
}

func (c *Contract) Name() string        { return c.name }
func (c *Contract) Version() string     { return c.version }
func (c *Contract) Category() string    { return c.category }
func (c *Contract) Description() string { return c.description }
func (c *Contract) BasePath() string    { return c.basePath }
func (c *Contract) Source() string      { return c.source }

// Endpoints returns a copy of the contract's endpoints in declaration order.
func (c *Contract) Endpoints() []Endpoint {
	return append([]Endpoint(nil), c.endpoints...)
}

// SchemaNames returns schema names in lexical order.
func (c *Contract) SchemaNames() []string {
	return append([]string(nil), c.schemaNames...)
}

// Schema returns the named schema object.
func (c *Contract) Schema(name string) (*Object, error) {
	obj, ok := c.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s in contract %s", apperr.ErrSchemaNotFound, name, c.name)
	}
	return obj, nil
}

// Schemas returns a copy of the name to schema mapping.
func (c *Contract) Schemas() map[string]*Object {
	out := make(map[string]*Object, len(c.schemas))
	for k, v := range c.schemas {
		out[k] = v
	}
	return out
}

// Endpoint finds the endpoint matching method and path. Path parameters in the
// contract ({id}) match any single segment.
func (c *Contract) Endpoint(method, path string) (Endpoint, bool) {
	for _, ep := range c.endpoints {
		if !strings.EqualFold(ep.Method, method) {
			continue
		}
		if matchPath(ep.Path, path) || matchPath(c.basePath+ep.Path, path) {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// SchemaWithField returns the first schema, in lexical order, that declares a
// top-level field with the given name.
func (c *Contract) SchemaWithField(field string) (*Object, bool) {
	for _, name := range c.schemaNames {
		obj := c.schemas[name]
		if _, ok := obj.Field(field); ok {
			return obj, true
		}
	}
	for _, name := range c.schemaNames {
		if LookupPath(c.schemas[name], field) != nil {
			return c.schemas[name], true
		}
	}
	return nil, false
}
