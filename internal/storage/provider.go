// Package storage reads and writes contract documents in the contracts directory.
package storage

import "time"

// ContractFile is the listing entry for one contract document.
type ContractFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for contract file operations. Paths are relative to
// the contracts directory.
type Provider interface {
	// List returns every contract document (.json, .yaml, .yml) under dir.
	List(dir string) ([]ContractFile, error)
	// Read returns the raw bytes of the document at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the document at path.
	Delete(path string) error
	// Root returns the absolute contracts directory.
	Root() string
}
