package api

import (
	"github.com/starford/ofmock/internal/catalog"
	"github.com/starford/ofmock/internal/correlation"
	"github.com/starford/ofmock/internal/mockservice"
	"github.com/starford/ofmock/internal/store"
)

// RegisterRecordRequest is the request body for registering a record.
type RegisterRecordRequest struct {
	Schema string         `json:"schema" example:"Consent"`
	Data   map[string]any `json:"data"`
}

// TreeRequest is the request body for building a correlated tree.
type TreeRequest = mockservice.TreeRequest

// ContractSummary is a lightweight item in a contract listing (aliased from the domain layer).
type ContractSummary = mockservice.ContractSummary

// ContractDetail is the full contract response type (aliased from the domain layer).
type ContractDetail = mockservice.ContractDetail

// Record is one registered record (aliased from the store).
type Record = store.Record

// ContractListResponse wraps contract listings.
type ContractListResponse struct {
	Contracts []ContractSummary `json:"contracts"`
	Total     int               `json:"total" example:"5"`
}

// RecordsResponse wraps a list of records.
type RecordsResponse struct {
	Contract string    `json:"contract" example:"consents"`
	Records  []*Record `json:"records"`
	Total    int       `json:"total" example:"3"`
}

// RulesResponse wraps a list of correlation rules.
type RulesResponse struct {
	Rules []correlation.Rule `json:"rules"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []catalog.SearchResult `json:"results"`
}

// UploadResponse is returned after a successful contract upload.
type UploadResponse struct {
	Path     string          `json:"path" example:"consents/consents.yaml"`
	Size     int64           `json:"size" example:"12345"`
	Contract ContractSummary `json:"contract"`
}
