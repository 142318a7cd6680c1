// Package mockservice owns one mock session: the loaded contracts, the value
// generator, the correlation graph and the record store. Every transport calls
// into a Service.
package mockservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/catalog"
	"github.com/starford/ofmock/internal/correlation"
	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/openapi"
	"github.com/starford/ofmock/internal/schema"
	"github.com/starford/ofmock/internal/storage"
	"github.com/starford/ofmock/internal/store"
)

// Limits bounds the work a single call may request.
type Limits struct {
	DefaultCount int // records generated when a caller passes 0
	MaxCount     int
	FanOut       int // one-to-many children per node in correlated trees
	MaxFanOut    int
	MaxDepth     int // tree and expansion depth
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{DefaultCount: 1, MaxCount: 100, FanOut: 3, MaxFanOut: 20, MaxDepth: 5}
}

// Change describes a mutation of the record store or of the contract registry.
type Change struct {
	Kind     string `json:"kind"`
	Contract string `json:"contract,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// Change kinds.
const (
	ChangeRegistered = "registered"
	ChangeReset      = "reset"
	ChangeReloaded   = "reloaded"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for diagnostics and reload reports.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSource sets where contracts are loaded from and uploads are written to.
func WithSource(src storage.Provider) Option {
	return func(s *Service) { s.src = src }
}

// WithCatalog enables catalog-backed search and keeps the catalog in step with uploads.
func WithCatalog(db *catalog.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithLimits overrides DefaultLimits. Zero fields keep their default.
func WithLimits(l Limits) Option {
	return func(s *Service) {
		d := DefaultLimits()
		if l.DefaultCount > 0 {
			d.DefaultCount = l.DefaultCount
		}
		if l.MaxCount > 0 {
			d.MaxCount = l.MaxCount
		}
		if l.FanOut > 0 {
			d.FanOut = l.FanOut
		}
		if l.MaxFanOut > 0 {
			d.MaxFanOut = l.MaxFanOut
		}
		if l.MaxDepth > 0 {
			d.MaxDepth = l.MaxDepth
		}
		s.limits = d
	}
}

// WithListener registers a callback invoked after each Change.
func WithListener(fn func(Change)) Option {
	return func(s *Service) { s.listeners = append(s.listeners, fn) }
}

// Service coordinates contracts, generation and correlation for one session.
type Service struct {
	gen       *generator.Generator
	graph     *correlation.Graph
	store     *store.Store
	src       storage.Provider
	db        *catalog.DB
	logger    *slog.Logger
	limits    Limits
	listeners []func(Change)

	mu        sync.RWMutex
	contracts map[string]*schema.Contract
	names     []string
}

// New creates a service with an empty contract registry and an empty store.
func New(gen *generator.Generator, graph *correlation.Graph, opts ...Option) *Service {
	s := &Service{
		gen:       gen,
		graph:     graph,
		store:     store.New(graph),
		logger:    slog.Default(),
		limits:    DefaultLimits(),
		contracts: make(map[string]*schema.Contract),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generator returns the service's value generator.
func (s *Service) Generator() *generator.Generator { return s.gen }

// Store returns the service's record store.
func (s *Service) Store() *store.Store { return s.store }

// Limits returns the effective limits.
func (s *Service) Limits() Limits { return s.limits }

func (s *Service) notify(c Change) {
	for _, fn := range s.listeners {
		fn(c)
	}
}

// SetContracts replaces the contract registry.
func (s *Service) SetContracts(contracts []*schema.Contract) {
	m := make(map[string]*schema.Contract, len(contracts))
	names := make([]string, 0, len(contracts))
	for _, c := range contracts {
		if _, dup := m[c.Name()]; dup {
			continue
		}
		m[c.Name()] = c
		names = append(names, c.Name())
	}
	sort.Strings(names)

	s.mu.Lock()
	s.contracts = m
	s.names = names
	s.mu.Unlock()
}

// Reload parses the contracts directory again and swaps the registry.
// Records already in the store are kept.
func (s *Service) Reload(_ context.Context) error {
	if s.src == nil {
		return fmt.Errorf("%w: no contracts source configured", apperr.ErrInvalidArgument)
	}
	contracts, err := openapi.LoadDir(s.src, s.logger)
	if err != nil {
		return err
	}
	s.SetContracts(contracts)
	s.logger.Info("contracts loaded", slog.Int("count", len(contracts)))
	s.notify(Change{Kind: ChangeReloaded, Count: len(contracts)})
	return nil
}

// contract finds a contract by exact name, then by case-insensitive name, then
// by store key (category).
func (s *Service) contract(name string) (*schema.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.contracts[name]; ok {
		return c, nil
	}
	for _, n := range s.names {
		if strings.EqualFold(n, name) {
			return s.contracts[n], nil
		}
	}
	for _, n := range s.names {
		if StoreKey(s.contracts[n]) == name {
			return s.contracts[n], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", apperr.ErrContractNotFound, name)
}

func (s *Service) snapshot() []*schema.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*schema.Contract, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.contracts[n])
	}
	return out
}

// StoreKey is the name records of c are stored under and correlation rules
// refer to: the category when known, the contract name otherwise.
func StoreKey(c *schema.Contract) string {
	if cat := c.Category(); cat != "" && cat != openapi.UnknownCategory {
		return cat
	}
	return c.Name()
}

// storeKey maps a caller-supplied contract reference to a store key. Names that
// are not loaded contracts are used verbatim, so records may be kept for
// contracts known only to the correlation rules.
func (s *Service) storeKey(name string) string {
	if c, err := s.contract(name); err == nil {
		return StoreKey(c)
	}
	return name
}

// ListContracts returns loaded contracts ordered by name, optionally filtered by category.
func (s *Service) ListContracts(_ context.Context, category string) []ContractSummary {
	out := []ContractSummary{}
	for _, c := range s.snapshot() {
		if category != "" && c.Category() != category {
			continue
		}
		out = append(out, summarize(c))
	}
	return out
}

// Contract returns the full description of a contract.
func (s *Service) Contract(_ context.Context, name string) (*ContractDetail, error) {
	c, err := s.contract(name)
	if err != nil {
		return nil, err
	}
	return detail(c), nil
}

// Categories returns the distinct categories of loaded contracts, sorted.
func (s *Service) Categories(_ context.Context) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range s.snapshot() {
		if c.Category() != "" && !seen[c.Category()] {
			seen[c.Category()] = true
			out = append(out, c.Category())
		}
	}
	sort.Strings(out)
	return out
}

// UploadContract validates a contract document, writes it into the contracts
// directory and registers it.
func (s *Service) UploadContract(_ context.Context, filename string, data []byte) (*ContractSummary, error) {
	if s.src == nil {
		return nil, fmt.Errorf("%w: no contracts source configured", apperr.ErrInvalidArgument)
	}
	if !storage.IsContractFile(filename) {
		return nil, fmt.Errorf("%w: %s is not a .json, .yaml or .yml document", apperr.ErrInvalidArgument, filename)
	}
	c, err := openapi.Parse(filename, data)
	if err != nil {
		return nil, err
	}
	if _, err := s.src.Read(filename); err == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, filename)
	} else if !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if existing, err := s.contract(c.Name()); err == nil && existing.Name() == c.Name() {
		return nil, fmt.Errorf("%w: contract %q", apperr.ErrAlreadyExists, c.Name())
	}
	if err := s.src.Write(filename, data); err != nil {
		return nil, err
	}
	if s.db != nil {
		if err := s.db.UpsertContract(c, storage.Checksum(data)); err != nil {
			s.logger.Warn("catalog: upsert failed", slog.String("path", filename), slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	if _, dup := s.contracts[c.Name()]; !dup {
		s.contracts[c.Name()] = c
		s.names = append(s.names, c.Name())
		sort.Strings(s.names)
	}
	s.mu.Unlock()

	sum := summarize(c)
	return &sum, nil
}

// DeleteContract removes a contract document from the contracts directory, the
// catalog and the registry. Records already registered under its store key are kept.
func (s *Service) DeleteContract(_ context.Context, name string) error {
	if s.src == nil {
		return fmt.Errorf("%w: no contracts source configured", apperr.ErrInvalidArgument)
	}
	c, err := s.contract(name)
	if err != nil {
		return err
	}
	if err := s.src.Delete(c.Source()); err != nil {
		return err
	}
	if s.db != nil {
		if err := s.db.DeleteSource(c.Source()); err != nil {
			s.logger.Warn("catalog: delete failed", slog.String("path", c.Source()), slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	delete(s.contracts, c.Name())
	names := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if n != c.Name() {
			names = append(names, n)
		}
	}
	s.names = names
	s.mu.Unlock()

	s.logger.Info("contract deleted", slog.String("name", c.Name()), slog.String("path", c.Source()))
	return nil
}
