package mockservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/schema"
	"github.com/starford/ofmock/internal/store"
)

// GenerateResult holds generated records and the diagnostics met on the way.
type GenerateResult struct {
	Contract   string                 `json:"contract"`
	Schema     string                 `json:"schema"`
	Registered bool                   `json:"registered"`
	Records    []*store.Record        `json:"records"`
	Warnings   []generator.Diagnostic `json:"warnings"`
}

// EndpointMock is a generated response for one contract endpoint.
type EndpointMock struct {
	Endpoint schema.Endpoint        `json:"endpoint"`
	Response map[string]any         `json:"response"`
	Warnings []generator.Diagnostic `json:"warnings"`
}

func (s *Service) resolveCount(count int) (int, error) {
	switch {
	case count == 0:
		return s.limits.DefaultCount, nil
	case count < 0:
		return 0, fmt.Errorf("%w: count must be at least 1, got %d", apperr.ErrInvalidArgument, count)
	case count > s.limits.MaxCount:
		return 0, fmt.Errorf("%w: count %d exceeds the limit of %d", apperr.ErrInvalidArgument, count, s.limits.MaxCount)
	}
	return count, nil
}

// GenerateRecords produces count records for a schema of a contract. A count of
// 0 means the configured default. With register set the records are appended
// to the store.
func (s *Service) GenerateRecords(_ context.Context, contractName, schemaName string, count int, register bool) (*GenerateResult, error) {
	c, err := s.contract(contractName)
	if err != nil {
		return nil, err
	}
	n, err := s.resolveCount(count)
	if err != nil {
		return nil, err
	}
	data, diags, err := s.gen.GenerateRecords(c, schemaName, n)
	if err != nil {
		return nil, err
	}
	generator.LogDiagnostics(s.logger, diags)

	key := StoreKey(c)
	res := &GenerateResult{
		Contract:   c.Name(),
		Schema:     schemaName,
		Registered: register,
		Records:    make([]*store.Record, 0, len(data)),
		Warnings:   nonNilSlice(diags),
	}
	for _, d := range data {
		if !register {
			res.Records = append(res.Records, &store.Record{
				Contract:  key,
				Schema:    schemaName,
				Data:      d,
				CreatedAt: time.Now().UTC(),
			})
			continue
		}
		rec, err := s.store.Register(key, schemaName, d)
		if err != nil {
			return nil, err
		}
		res.Records = append(res.Records, rec)
	}
	if register {
		s.notify(Change{Kind: ChangeRegistered, Contract: key, Count: len(res.Records)})
	}
	return res, nil
}

// Register appends one externally supplied record. Identical records are stored
// again. When contractName is a loaded contract and schemaName is set, the
// schema must exist.
func (s *Service) Register(_ context.Context, contractName, schemaName string, data map[string]any) (*store.Record, error) {
	if c, err := s.contract(contractName); err == nil && schemaName != "" {
		if _, err := c.Schema(schemaName); err != nil {
			return nil, err
		}
	}
	key := s.storeKey(contractName)
	rec, err := s.store.Register(key, schemaName, data)
	if err != nil {
		return nil, err
	}
	s.notify(Change{Kind: ChangeRegistered, Contract: key, Count: 1})
	return rec, nil
}

// MockEndpoint generates the response body of the endpoint matching method and
// path. Endpoints without a response schema answer with an empty object.
func (s *Service) MockEndpoint(_ context.Context, contractName, method, path string) (*EndpointMock, error) {
	c, err := s.contract(contractName)
	if err != nil {
		return nil, err
	}
	ep, ok := c.Endpoint(method, path)
	if !ok {
		return nil, fmt.Errorf("%w: endpoint %s %s in contract %s", apperr.ErrNotFound, method, path, c.Name())
	}
	out := &EndpointMock{Endpoint: ep, Response: map[string]any{}, Warnings: []generator.Diagnostic{}}
	if ep.ResponseSchema == "" {
		return out, nil
	}
	obj, err := c.Schema(ep.ResponseSchema)
	if err != nil {
		return nil, err
	}
	sess := s.gen.Session().ForContract(StoreKey(c))
	out.Response = sess.Object(obj, obj.Name)
	out.Warnings = nonNilSlice(sess.Diagnostics())
	generator.LogDiagnostics(s.logger, out.Warnings)
	return out, nil
}

// Seed registers count records for every schema that declares at least one
// field used by a correlation rule of its contract. It returns the number of
// records registered.
func (s *Service) Seed(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	total := 0
	for _, c := range s.snapshot() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		key := StoreKey(c)
		fields := s.graph.FieldsFor(key)
		if len(fields) == 0 {
			continue
		}
		for _, name := range c.SchemaNames() {
			obj, _ := c.Schema(name)
			if !declaresAny(obj, fields) {
				continue
			}
			data, diags, err := s.gen.GenerateRecords(c, name, count)
			if err != nil {
				return total, err
			}
			for _, d := range data {
				if _, err := s.store.Register(key, name, d); err != nil {
					return total, err
				}
			}
			total += len(data)
			generator.LogDiagnostics(s.logger, diags)
			s.logger.Debug("seeded",
				slog.String("contract", c.Name()),
				slog.String("schema", name),
				slog.Int("records", len(data)))
		}
	}
	if total > 0 {
		s.notify(Change{Kind: ChangeRegistered, Count: total})
	}
	return total, nil
}

func declaresAny(obj *schema.Object, fields []string) bool {
	for _, f := range fields {
		if schema.LookupPath(obj, f) != nil {
			return true
		}
	}
	return false
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
