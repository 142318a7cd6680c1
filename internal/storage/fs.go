package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/ofmock/internal/apperr"
)

// FS implements Provider over a local directory.
type FS struct {
	root string
}

// NewFS returns a provider for dir, which must be an existing directory.
func NewFS(dir string) (*FS, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	switch info, err := os.Stat(root); {
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", root)
	}
	return &FS{root: root}, nil
}

// Root returns the absolute contracts directory.
func (f *FS) Root() string { return f.root }

// IsContractFile reports whether name has a contract document extension.
// Dot files are never contracts.
func IsContractFile(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// resolve maps rel onto an absolute path inside the root. Absolute inputs and
// paths climbing out of the root are invalid arguments.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute paths not allowed: %s", apperr.ErrInvalidArgument, rel)
	}
	abs := filepath.Join(f.root, filepath.Clean(rel))
	inside, err := filepath.Rel(f.root, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: path escapes contracts root: %s", apperr.ErrInvalidArgument, rel)
	}
	return abs, nil
}

// List returns every contract document under dir, sorted by path. Hidden
// directories are skipped.
func (f *FS) List(dir string) ([]ContractFile, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []ContractFile
	if err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsContractFile(d.Name()) {
			return nil
		}
		cf, err := f.describe(p, d)
		if err != nil {
			return err
		}
		out = append(out, cf)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FS) describe(p string, d fs.DirEntry) (ContractFile, error) {
	info, err := d.Info()
	if err != nil {
		return ContractFile{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return ContractFile{}, err
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil {
		return ContractFile{}, err
	}
	return ContractFile{
		Path:      filepath.ToSlash(rel),
		Checksum:  Checksum(data),
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a contract document.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, opError("read", path, err)
	}
	return data, nil
}

// Write replaces path with content atomically. Only contract documents may be
// written.
func (f *FS) Write(path string, content []byte) error {
	if !IsContractFile(path) {
		return fmt.Errorf("%w: %s is not a .json, .yaml or .yml document", apperr.ErrInvalidArgument, path)
	}
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	return writeAtomic(abs, content)
}

// writeAtomic writes a sibling temp file, syncs it and renames it over dst.
// The temp file is removed on any failure.
func writeAtomic(dst string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".ofmock-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Delete removes a contract document.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return opError("delete", path, err)
	}
	return nil
}

// opError wraps a file system error, mapping a missing file to ErrNotFound.
func opError(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: %s %s: %w", op, path, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s %s: %w", op, path, err)
}
