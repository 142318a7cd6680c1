package mockservice

import (
	"sort"

	"github.com/starford/ofmock/internal/schema"
)

// ContractSummary is a lightweight item in a contract listing.
type ContractSummary struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Category      string `json:"category"`
	StoreKey      string `json:"store_key"`
	Description   string `json:"description,omitempty"`
	Source        string `json:"source,omitempty"`
	EndpointCount int    `json:"endpoint_count"`
	SchemaCount   int    `json:"schema_count"`
}

// ContractDetail is the full representation of a contract.
type ContractDetail struct {
	ContractSummary
	BasePath  string                `json:"base_path,omitempty"`
	Endpoints []schema.Endpoint     `json:"endpoints"`
	Schemas   map[string]SchemaView `json:"schemas"`
}

// SchemaView describes one schema object.
type SchemaView struct {
	Required   []string       `json:"required"`
	Properties []PropertyView `json:"properties"`
}

// PropertyView describes one field and its constraints.
type PropertyView struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Format      string   `json:"format,omitempty"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Nullable    bool     `json:"nullable,omitempty"`
	Pattern     string   `json:"pattern,omitempty"`
	MinLength   *int     `json:"min_length,omitempty"`
	MaxLength   *int     `json:"max_length,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Enum        []any    `json:"enum,omitempty"`
	Items       string   `json:"items,omitempty"`  // item type of arrays
	Object      string   `json:"object,omitempty"` // nested object name
}

func summarize(c *schema.Contract) ContractSummary {
	return ContractSummary{
		Name:          c.Name(),
		Version:       c.Version(),
		Category:      c.Category(),
		StoreKey:      StoreKey(c),
		Description:   c.Description(),
		Source:        c.Source(),
		EndpointCount: len(c.Endpoints()),
		SchemaCount:   len(c.SchemaNames()),
	}
}

func detail(c *schema.Contract) *ContractDetail {
	d := &ContractDetail{
		ContractSummary: summarize(c),
		BasePath:        c.BasePath(),
		Endpoints:       c.Endpoints(),
		Schemas:         make(map[string]SchemaView),
	}
	if d.Endpoints == nil {
		d.Endpoints = []schema.Endpoint{}
	}
	for name, obj := range c.Schemas() {
		d.Schemas[name] = viewSchema(obj)
	}
	return d
}

func viewSchema(obj *schema.Object) SchemaView {
	v := SchemaView{Required: []string{}, Properties: make([]PropertyView, 0, len(obj.Fields))}
	for name, req := range obj.Required {
		if req {
			v.Required = append(v.Required, name)
		}
	}
	sort.Strings(v.Required)
	for _, f := range obj.Fields {
		p := PropertyView{
			Name:        f.Name,
			Type:        f.Kind.String(),
			Format:      f.FormatName,
			Description: f.Description,
			Required:    obj.IsRequired(f.Name),
			Nullable:    f.Nullable,
			Pattern:     f.Pattern,
			MinLength:   f.MinLength,
			MaxLength:   f.MaxLength,
			Minimum:     f.Minimum,
			Maximum:     f.Maximum,
			Enum:        f.Enum,
		}
		if f.Category != schema.CategoryNone {
			p.Category = f.Category.String()
		}
		if f.Items != nil {
			p.Items = f.Items.Kind.String()
			if f.Items.Object != nil {
				p.Object = f.Items.Object.Name
			}
		}
		if f.Object != nil {
			p.Object = f.Object.Name
		}
		v.Properties = append(v.Properties, p)
	}
	return v
}
