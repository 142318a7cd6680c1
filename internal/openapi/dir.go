package openapi

import (
	"log/slog"
	"sort"

	"github.com/starford/ofmock/internal/schema"
	"github.com/starford/ofmock/internal/storage"
)

// LoadDir parses every contract document the provider lists. Documents that
// fail to read or parse are logged and skipped; a later document whose title
// repeats an earlier one is skipped too. Contracts are returned sorted by name.
func LoadDir(src storage.Provider, logger *slog.Logger) ([]*schema.Contract, error) {
	files, err := src.List("")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(files))
	var out []*schema.Contract
	for _, f := range files {
		data, err := src.Read(f.Path)
		if err != nil {
			logger.Warn("contracts: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		c, err := Parse(f.Path, data)
		if err != nil {
			logger.Warn("contracts: skipped", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if prev, dup := seen[c.Name()]; dup {
			logger.Warn("contracts: duplicate title",
				slog.String("path", f.Path),
				slog.String("name", c.Name()),
				slog.String("kept", prev))
			continue
		}
		seen[c.Name()] = f.Path
		out = append(out, c)
		logger.Debug("contracts: loaded",
			slog.String("path", f.Path),
			slog.String("name", c.Name()),
			slog.String("category", c.Category()),
			slog.Int("schemas", len(c.SchemaNames())))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}
