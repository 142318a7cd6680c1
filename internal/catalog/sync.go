package catalog

import (
	"log/slog"

	"github.com/starford/ofmock/internal/openapi"
	"github.com/starford/ofmock/internal/storage"
)

// Sync walks the contracts directory and brings the catalog up to date:
//   - new/changed documents are parsed and upserted
//   - documents that no longer parse or were removed from disk are dropped
func Sync(db *DB, src storage.Provider, logger *slog.Logger) error {
	files, err := src.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Path] = struct{}{}

		if checksums[f.Path] == f.Checksum {
			continue
		}

		data, err := src.Read(f.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, f.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", f.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteSource(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it. A document that no longer parses has
// its previous entries removed before the error is returned.
func indexFile(db *DB, path string, data []byte) error {
	c, err := openapi.Parse(path, data)
	if err != nil {
		_ = db.DeleteSource(path)
		return err
	}
	return db.UpsertContract(c, storage.Checksum(data))
}
