package mockservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/catalog"
	"github.com/starford/ofmock/internal/schema"
)

const defaultSearchLimit = 20

// Search finds fields and schemas by name or description. The catalog answers
// when configured; otherwise the loaded contracts are scanned.
func (s *Service) Search(_ context.Context, query string, limit int) ([]catalog.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if s.db != nil {
		return s.db.Search(query, limit)
	}
	return s.scan(query, limit), nil
}

func (s *Service) scan(query string, limit int) []catalog.SearchResult {
	q := strings.ToLower(query)
	out := []catalog.SearchResult{}
	for _, c := range s.snapshot() {
		for _, name := range c.SchemaNames() {
			obj, _ := c.Schema(name)
			schemaHit := strings.Contains(strings.ToLower(name), q)
			for _, f := range obj.Fields {
				if !schemaHit &&
					!strings.Contains(strings.ToLower(f.Name), q) &&
					!strings.Contains(strings.ToLower(f.Description), q) {
					continue
				}
				r := catalog.SearchResult{
					Contract: c.Name(),
					Schema:   name,
					Field:    f.Name,
					Kind:     f.Kind.String(),
					Snippet:  f.Description,
				}
				if f.Category != schema.CategoryNone {
					r.Category = f.Category.String()
				}
				out = append(out, r)
				if len(out) == limit {
					return out
				}
			}
		}
	}
	return out
}
