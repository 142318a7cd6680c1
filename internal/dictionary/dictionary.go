// Package dictionary serves field examples and enum values from per-category
// data dictionaries. Each .json, .yaml or .yml file under the dictionary
// directory holds one category, named after the file: accounts.yaml feeds the
// contracts whose category is "accounts".
package dictionary

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/schema"
	"github.com/starford/ofmock/internal/storage"
)

// Summary counts the keys and enum declarations of one category.
type Summary struct {
	Fields int `json:"fields"`
	Enums  int `json:"enums"`
}

// Dictionary holds the decoded documents keyed by category. It is read-only
// after Load and safe for concurrent use.
type Dictionary struct {
	categories map[string]map[string]any
}

// Load decodes every dictionary document of src. Documents that fail to
// decode, or whose top level is not a mapping, are skipped with a warning.
func Load(src storage.Provider, logger *slog.Logger) (*Dictionary, error) {
	files, err := src.List("")
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	d := &Dictionary{categories: make(map[string]map[string]any, len(files))}
	for _, f := range files {
		data, err := src.Read(f.Path)
		if err != nil {
			return nil, fmt.Errorf("dictionary: %w", err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			logger.Warn("dictionary: skipping document", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if doc == nil {
			continue
		}
		category := categoryOf(f.Path)
		if _, dup := d.categories[category]; dup {
			logger.Warn("dictionary: category redefined", slog.String("category", category), slog.String("path", f.Path))
		}
		d.categories[category] = doc
	}
	return d, nil
}

func categoryOf(p string) string {
	base := path.Base(p)
	return strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
}

// Categories returns the loaded category names, sorted.
func (d *Dictionary) Categories() []string {
	out := make([]string, 0, len(d.categories))
	for c := range d.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Summary returns the key and enum counts of every category.
func (d *Dictionary) Summary() map[string]Summary {
	out := make(map[string]Summary, len(d.categories))
	for c, doc := range d.categories {
		out[c] = Summary{Fields: countKeys(doc), Enums: countEnums(doc)}
	}
	return out
}

// FieldExamples returns the values recorded for field in category. A scalar
// entry yields a single example. Nested mappings and lists of mappings are
// searched depth first.
func (d *Dictionary) FieldExamples(category, field string) []any {
	doc, ok := d.categories[strings.ToLower(category)]
	if !ok {
		return nil
	}
	return findField(doc, field)
}

// EnumValues returns the values of the enum called name in category. Enums are
// read from the top-level "enums" mapping first, then from any nested entry
// named name holding a list or a mapping with "values" or "enum".
func (d *Dictionary) EnumValues(category, name string) []any {
	doc, ok := d.categories[strings.ToLower(category)]
	if !ok {
		return nil
	}
	if enums, ok := doc["enums"].(map[string]any); ok {
		if vals, ok := enums[name].([]any); ok {
			return vals
		}
	}
	return findEnum(doc, name)
}

// EnumOrExample offers the dictionary entries of the field's contract
// category: its examples, or else the enum of the same name.
func (d *Dictionary) EnumOrExample(_ *schema.Field, fc generator.FieldContext) []any {
	if fc.Contract == "" || fc.FieldName == "" {
		return nil
	}
	if vals := d.FieldExamples(fc.Contract, fc.FieldName); len(vals) > 0 {
		return vals
	}
	return d.EnumValues(fc.Contract, fc.FieldName)
}

func findField(m map[string]any, field string) []any {
	if v, ok := m[field]; ok {
		if list, ok := v.([]any); ok {
			return list
		}
		return []any{v}
	}
	for _, k := range sortedKeys(m) {
		switch v := m[k].(type) {
		case map[string]any:
			if found := findField(v, field); len(found) > 0 {
				return found
			}
		case []any:
			for _, item := range v {
				if nested, ok := item.(map[string]any); ok {
					if found := findField(nested, field); len(found) > 0 {
						return found
					}
				}
			}
		}
	}
	return nil
}

func findEnum(m map[string]any, name string) []any {
	switch v := m[name].(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range []string{"values", "enum"} {
			if vals, ok := v[key].([]any); ok {
				return vals
			}
		}
	}
	for _, k := range sortedKeys(m) {
		if nested, ok := m[k].(map[string]any); ok {
			if found := findEnum(nested, name); len(found) > 0 {
				return found
			}
		}
	}
	return nil
}

func countKeys(v any) int {
	n := 0
	switch v := v.(type) {
	case map[string]any:
		n += len(v)
		for _, child := range v {
			n += countKeys(child)
		}
	case []any:
		for _, item := range v {
			n += countKeys(item)
		}
	}
	return n
}

func countEnums(v any) int {
	n := 0
	switch v := v.(type) {
	case map[string]any:
		if _, ok := v["enum"]; ok {
			n++
		} else if _, ok := v["enums"]; ok {
			n++
		}
		for _, child := range v {
			n += countEnums(child)
		}
	case []any:
		for _, item := range v {
			n += countEnums(item)
		}
	}
	return n
}

// sortedKeys fixes the search order of nested entries.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
