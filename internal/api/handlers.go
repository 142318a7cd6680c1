package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/mockservice"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *mockservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *mockservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded path parameter. Contract names may carry
// encoded spaces ("Consents%20API").
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func queryInt(q url.Values, key string) (int, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", apperr.ErrInvalidArgument, key)
	}
	return n, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	s := q.Get(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", apperr.ErrInvalidArgument, key)
	}
	return b, nil
}

// ListContracts handles GET /api/contracts.
//
//	@Summary		List loaded contracts
//	@Tags			contracts
//	@Produce		json
//	@Param			category	query		string	false	"Filter by category"
//	@Success		200			{object}	ContractListResponse
//	@Security		BearerAuth
//	@Router			/contracts [get]
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	items := h.svc.ListContracts(r.Context(), r.URL.Query().Get("category"))
	respond(w, r, http.StatusOK, ContractListResponse{Contracts: items, Total: len(items)})
}

// GetContract handles GET /api/contracts/{name}.
//
//	@Summary		Get a contract with its schemas and endpoints
//	@Tags			contracts
//	@Produce		json
//	@Param			name	path		string	true	"Contract name or category"
//	@Success		200		{object}	ContractDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contracts/{name} [get]
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Contract(r.Context(), urlParam(r, "name"))
	if err != nil {
		writeError(w, r, "get contract", err)
		return
	}
	respond(w, r, http.StatusOK, d)
}

// DeleteContract handles DELETE /api/contracts/{name}.
//
//	@Summary		Delete a contract document
//	@Tags			contracts
//	@Param			name	path	string	true	"Contract name or category"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contracts/{name} [delete]
func (h *Handler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteContract(r.Context(), urlParam(r, "name")); err != nil {
		writeError(w, r, "delete contract", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories handles GET /api/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{
		"categories": h.svc.Categories(r.Context()),
	})
}

// MockEndpoint handles GET /api/contracts/{name}/endpoints/mock.
//
//	@Summary		Generate a response body for a contract endpoint
//	@Tags			generation
//	@Produce		json
//	@Param			name	path		string	true	"Contract name or category"
//	@Param			method	query		string	false	"HTTP method"	default(GET)
//	@Param			path	query		string	true	"Request path"
//	@Success		200		{object}	mockservice.EndpointMock
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contracts/{name}/endpoints/mock [get]
func (h *Handler) MockEndpoint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		respond(w, r, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	method := q.Get("method")
	if method == "" {
		method = http.MethodGet
	}
	m, err := h.svc.MockEndpoint(r.Context(), urlParam(r, "name"), method, path)
	if err != nil {
		writeError(w, r, "mock endpoint", err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

// GenerateRecords handles POST /api/contracts/{name}/schemas/{schema}/records.
//
//	@Summary		Generate records for a schema
//	@Tags			generation
//	@Produce		json
//	@Param			name		path		string	true	"Contract name or category"
//	@Param			schema		path		string	true	"Schema name"
//	@Param			count		query		int		false	"Number of records"
//	@Param			register	query		bool	false	"Register the records in the store"
//	@Success		200			{object}	mockservice.GenerateResult
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		429			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/contracts/{name}/schemas/{schema}/records [post]
func (h *Handler) GenerateRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, err := queryInt(q, "count")
	if err != nil {
		writeError(w, r, "generate", err)
		return
	}
	register, err := queryBool(q, "register")
	if err != nil {
		writeError(w, r, "generate", err)
		return
	}
	res, err := h.svc.GenerateRecords(r.Context(), urlParam(r, "name"), urlParam(r, "schema"), count, register)
	if err != nil {
		writeError(w, r, "generate", err)
		return
	}
	status := http.StatusOK
	if register {
		status = http.StatusCreated
	}
	respond(w, r, status, res)
}

// BuildTree handles POST /api/data/tree.
//
//	@Summary		Generate and register a tree of correlated records
//	@Tags			generation
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TreeRequest	true	"Root of the tree"
//	@Success		201		{object}	mockservice.Tree
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data/tree [post]
func (h *Handler) BuildTree(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req TreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, r, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	tree, err := h.svc.BuildTree(r.Context(), req)
	if err != nil {
		writeError(w, r, "build tree", err)
		return
	}
	respond(w, r, http.StatusCreated, tree)
}

// Stats handles GET /api/records.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{"contracts": h.svc.Stats(r.Context())})
}

// ListRecords handles GET /api/records/{contract}.
//
//	@Summary		List registered records of a contract
//	@Tags			records
//	@Produce		json
//	@Param			contract	path		string	true	"Contract name or category"
//	@Success		200			{object}	RecordsResponse
//	@Security		BearerAuth
//	@Router			/records/{contract} [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	contract := urlParam(r, "contract")
	recs := h.svc.Records(r.Context(), contract)
	if recs == nil {
		recs = []*Record{}
	}
	respond(w, r, http.StatusOK, RecordsResponse{Contract: contract, Records: recs, Total: len(recs)})
}

// RegisterRecord handles POST /api/records/{contract}.
//
//	@Summary		Register a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			contract	path		string					true	"Contract name or category"
//	@Param			body		body		RegisterRecordRequest	true	"Record to register"
//	@Success		201			{object}	Record
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{contract} [post]
func (h *Handler) RegisterRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RegisterRecordRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respond(w, r, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Data == nil {
		respond(w, r, http.StatusBadRequest, errorBody("data is required"))
		return
	}
	rec, err := h.svc.Register(r.Context(), urlParam(r, "contract"), req.Schema, req.Data)
	if err != nil {
		writeError(w, r, "register record", err)
		return
	}
	respond(w, r, http.StatusCreated, rec)
}

// ResetRecords handles DELETE /api/records.
//
//	@Summary		Drop registered records
//	@Tags			records
//	@Param			contract	query	string	false	"Only this contract"
//	@Success		204			"Records dropped"
//	@Security		BearerAuth
//	@Router			/records [delete]
func (h *Handler) ResetRecords(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context(), r.URL.Query().Get("contract"))
	w.WriteHeader(http.StatusNoContent)
}

// CorrelationGraph handles GET /api/correlations.
func (h *Handler) CorrelationGraph(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.svc.CorrelationGraph(r.Context()))
}

// RulesFor handles GET /api/correlations/{contract}.
func (h *Handler) RulesFor(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, RulesResponse{Rules: h.svc.RulesFor(r.Context(), urlParam(r, "contract"))})
}

// Chain handles GET /api/correlations/chain.
func (h *Handler) Chain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		respond(w, r, http.StatusBadRequest, errorBody("query parameters 'from' and 'to' are required"))
		return
	}
	rules, err := h.svc.Chain(r.Context(), from, to)
	if err != nil {
		writeError(w, r, "chain", err)
		return
	}
	respond(w, r, http.StatusOK, RulesResponse{Rules: rules})
}

// FindCorrelated handles GET /api/data/correlated.
//
//	@Summary		Find a record and the records correlated with it
//	@Tags			correlations
//	@Produce		json
//	@Param			contract	query		string	true	"Contract name or category"
//	@Param			field		query		string	true	"Field to match"
//	@Param			value		query		string	true	"Value to match"
//	@Param			depth		query		int		false	"Hops to follow"
//	@Success		200			{object}	store.Result
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/data/correlated [get]
func (h *Handler) FindCorrelated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contract, field := q.Get("contract"), q.Get("field")
	if contract == "" || field == "" || !q.Has("value") {
		respond(w, r, http.StatusBadRequest, errorBody("query parameters 'contract', 'field' and 'value' are required"))
		return
	}
	depth, err := queryInt(q, "depth")
	if err != nil {
		writeError(w, r, "find correlated", err)
		return
	}
	res, err := h.svc.FindCorrelated(r.Context(), contract, field, q.Get("value"), depth)
	if err != nil {
		writeError(w, r, "find correlated", err)
		return
	}
	respond(w, r, http.StatusOK, res)
}

// Search handles GET /api/search.
//
//	@Summary		Search schemas and fields by name
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respond(w, r, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, r, "search", err)
		return
	}
	respond(w, r, http.StatusOK, SearchResponse{Results: results})
}
