package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"

	"github.com/starford/ofmock/internal/correlation"
	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/mockservice"
	"github.com/starford/ofmock/internal/storage"
	"github.com/starford/ofmock/internal/testutil"
)

// testEnv sets up a temp contracts dir, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*mockservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithSource(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithSource(t *testing.T, authEnabled bool, authToken string, limiter *rate.Limiter) (*mockservice.Service, http.Handler, storage.Provider) {
	t.Helper()
	_, src := testutil.TestContracts(t, nil)
	gen := generator.New(generator.WithSeed(1), generator.WithReferenceTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	svc := mockservice.New(gen, correlation.MustNew(correlation.DefaultRules()),
		mockservice.WithSource(src),
		mockservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	router := NewRouter(svc, authEnabled, authToken, nil, limiter)
	return svc, router, src
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestListContracts(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/contracts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ContractListResponse
	decode(t, w, &resp)
	if resp.Total != 5 {
		t.Errorf("total = %d, want 5", resp.Total)
	}

	w = do(t, router, http.MethodGet, "/contracts?category=accounts", nil)
	decode(t, w, &resp)
	if resp.Total != 1 || resp.Contracts[0].Name != "Accounts API" {
		t.Errorf("filtered = %+v", resp.Contracts)
	}
}

func TestGetContract(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/contracts/Consents%20API", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var d ContractDetail
	decode(t, w, &d)
	if d.Name != "Consents API" || len(d.Endpoints) != 2 {
		t.Errorf("detail = %+v", d.ContractSummary)
	}
	if _, ok := d.Schemas["Consent"]; !ok {
		t.Error("Consent schema missing")
	}

	w = do(t, router, http.MethodGet, "/contracts/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing contract = %d, want 404", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if msg, _ := body["error"].(string); msg == "" || len(body) != 1 {
		t.Errorf("error body = %v, want only a non-empty error", body)
	}
}

func TestCategories(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/categories", nil)
	var resp struct {
		Categories []string `json:"categories"`
	}
	decode(t, w, &resp)
	if len(resp.Categories) != 5 {
		t.Errorf("categories = %v", resp.Categories)
	}
}

func TestGenerateRecords(t *testing.T) {
	svc, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/contracts/consents/schemas/Consent/records?count=3&register=true", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res mockservice.GenerateResult
	decode(t, w, &res)
	if len(res.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(res.Records))
	}
	if n := svc.Store().Len("consents"); n != 3 {
		t.Errorf("store len = %d, want 3", n)
	}

	w = do(t, router, http.MethodPost, "/contracts/consents/schemas/Consent/records", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unregistered status = %d", w.Code)
	}
	if n := svc.Store().Len("consents"); n != 3 {
		t.Errorf("store len after dry run = %d, want 3", n)
	}
}

func TestGenerateRecords_Errors(t *testing.T) {
	_, router := testEnv(t, "")

	tests := []struct {
		target string
		want   int
	}{
		{"/contracts/consents/schemas/Consent/records?count=abc", http.StatusBadRequest},
		{"/contracts/consents/schemas/Consent/records?count=1000", http.StatusBadRequest},
		{"/contracts/consents/schemas/Consent/records?register=maybe", http.StatusBadRequest},
		{"/contracts/consents/schemas/Nope/records", http.StatusNotFound},
		{"/contracts/nope/schemas/Consent/records", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := do(t, router, http.MethodPost, tt.target, nil)
		if w.Code != tt.want {
			t.Errorf("%s = %d, want %d (%s)", tt.target, w.Code, tt.want, w.Body.String())
		}
	}
}

func TestGenerateRecords_Msgpack(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/contracts/accounts/schemas/Account/records?count=2", nil)
	req.Header.Set("Accept", "application/msgpack")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/msgpack" {
		t.Fatalf("content type = %q", ct)
	}
	var res map[string]any
	if err := msgpack.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	recs, ok := res["records"].([]any)
	if !ok || len(recs) != 2 {
		t.Fatalf("records = %#v", res["records"])
	}
	first, ok := recs[0].(map[string]any)
	if !ok {
		t.Fatalf("record = %T", recs[0])
	}
	if _, ok := first["data"]; !ok {
		t.Error("record has no data key")
	}
}

func TestRegisterAndFindCorrelated(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/records/consents", map[string]any{
		"schema": "Consent",
		"data":   map[string]any{"consentId": "c-1"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d, body = %s", w.Code, w.Body.String())
	}
	for _, acc := range []string{"a-1", "a-2"} {
		w = do(t, router, http.MethodPost, "/records/resources", map[string]any{
			"data": map[string]any{"consentId": "c-1", "accountId": acc},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("register resource = %d", w.Code)
		}
	}

	w = do(t, router, http.MethodGet, "/data/correlated?contract=consents&field=consentId&value=c-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("find = %d, body = %s", w.Code, w.Body.String())
	}
	var res struct {
		Primary Record               `json:"primary"`
		Related map[string][]*Record `json:"related"`
	}
	decode(t, w, &res)
	if res.Primary.Data["consentId"] != "c-1" {
		t.Errorf("primary = %+v", res.Primary)
	}
	if len(res.Related["resources"]) != 2 {
		t.Errorf("related resources = %d, want 2", len(res.Related["resources"]))
	}

	w = do(t, router, http.MethodGet, "/records/consents", nil)
	var list RecordsResponse
	decode(t, w, &list)
	if list.Total != 1 {
		t.Errorf("records total = %d, want 1", list.Total)
	}

	w = do(t, router, http.MethodGet, "/data/correlated?contract=consents&field=consentId&value=missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing value = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodGet, "/data/correlated?contract=consents&field=consentId", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no value = %d, want 400", w.Code)
	}
}

func TestRegisterRecord_InvalidBody(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/records/consents", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/records/consents", map[string]any{"schema": "Consent"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("no data = %d, want 400", w.Code)
	}
}

func TestResetRecords(t *testing.T) {
	svc, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/contracts/consents/schemas/Consent/records?count=2&register=true", nil)

	w := do(t, router, http.MethodDelete, "/records?contract=consents", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset = %d", w.Code)
	}
	if n := svc.Store().Len("consents"); n != 0 {
		t.Errorf("store len = %d, want 0", n)
	}
}

func TestBuildTree(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/data/tree", map[string]any{
		"contract": "consents",
		"field":    "consentId",
		"value":    "urn:bank:t-1",
		"depth":    1,
		"fan_out":  2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("tree = %d, body = %s", w.Code, w.Body.String())
	}
	var tree mockservice.Tree
	decode(t, w, &tree)
	if tree.Size != 3 {
		t.Errorf("size = %d, want 3", tree.Size)
	}

	w = do(t, router, http.MethodPost, "/data/tree", map[string]any{"contract": "consents", "value": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestCorrelations(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/correlations", nil)
	var listing correlation.Listing
	decode(t, w, &listing)
	if len(listing.Rules) != 5 {
		t.Errorf("rules = %d, want 5", len(listing.Rules))
	}

	w = do(t, router, http.MethodGet, "/correlations/chain?from=consents&to=transactions", nil)
	var chain RulesResponse
	decode(t, w, &chain)
	if len(chain.Rules) != 3 {
		t.Errorf("chain = %v", chain.Rules)
	}

	w = do(t, router, http.MethodGet, "/correlations/chain?from=transactions&to=consents", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("reverse chain = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodGet, "/correlations/consents", nil)
	var rules RulesResponse
	decode(t, w, &rules)
	if len(rules.Rules) != 1 {
		t.Errorf("consents rules = %v", rules.Rules)
	}
}

func TestMockEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/contracts/consents/endpoints/mock?method=GET&path=/consents/abc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mock = %d, body = %s", w.Code, w.Body.String())
	}
	var m mockservice.EndpointMock
	decode(t, w, &m)
	if _, ok := m.Response["data"]; !ok {
		t.Errorf("response = %v", m.Response)
	}

	w = do(t, router, http.MethodGet, "/contracts/consents/endpoints/mock", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no path = %d, want 400", w.Code)
	}
}

func TestSearch(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=consentId", nil)
	var resp SearchResponse
	decode(t, w, &resp)
	if len(resp.Results) == 0 {
		t.Error("expected search results")
	}

	w = do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no query = %d, want 400", w.Code)
	}
}

// Auth tests.

func TestAuth_TokenMode(t *testing.T) {
	_, router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/contracts", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/contracts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/contracts", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestSSE_AuthProtected(t *testing.T) {
	_, src := testutil.TestContracts(t, nil)
	svc := mockservice.New(generator.New(), correlation.MustNew(nil), mockservice.WithSource(src))
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	})
	router := NewRouter(svc, true, "tok", sseHandler, nil)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE without token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with token = %d, want 200", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	_, router, _ := testEnvWithSource(t, false, "", NewLimiter(0.001, 1))

	w := do(t, router, http.MethodPost, "/contracts/consents/schemas/Consent/records", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/contracts/consents/schemas/Consent/records", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second = %d, want 429", w.Code)
	}

	// Listing is not throttled.
	w = do(t, router, http.MethodGet, "/contracts", nil)
	if w.Code != http.StatusOK {
		t.Errorf("list = %d, want 200", w.Code)
	}
}

func TestNewLimiter_Disabled(t *testing.T) {
	if NewLimiter(0, 5) != nil {
		t.Error("zero rate should disable limiting")
	}
}

// Upload tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/contracts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const loansYAML = `openapi: 3.0.0
info:
  title: Loans API
  version: 1.0.0
components:
  schemas:
    Loan:
      type: object
      properties:
        contractId:
          type: string
`

func TestUploadContract(t *testing.T) {
	_, router, src := testEnvWithSource(t, false, "", nil)

	w := uploadFile(t, router, "loans.yaml", []byte(loansYAML), map[string]string{"path": "loans/loans.yaml"})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	decode(t, w, &resp)
	if resp.Contract.Name != "Loans API" || resp.Contract.Category != "loans" {
		t.Errorf("contract = %+v", resp.Contract)
	}
	if _, err := src.Read("loans/loans.yaml"); err != nil {
		t.Fatalf("file not stored: %v", err)
	}

	w = do(t, router, http.MethodGet, "/contracts/loans", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get uploaded = %d", w.Code)
	}

	w = uploadFile(t, router, "loans.yaml", []byte(loansYAML), map[string]string{"path": "loans/loans.yaml"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", w.Code)
	}
}

func TestDeleteContract(t *testing.T) {
	_, router, src := testEnvWithSource(t, false, "", nil)

	w := do(t, router, http.MethodDelete, "/contracts/consents", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, body = %s", w.Code, w.Body.String())
	}
	if _, err := src.Read("consents/consents.yaml"); err == nil {
		t.Error("contract file still present")
	}

	for _, target := range []string{"/contracts/consents", "/contracts/nope"} {
		if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", target, w.Code)
		}
	}
	if w := do(t, router, http.MethodDelete, "/contracts/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete unknown = %d, want 404", w.Code)
	}
}

func TestUploadContract_Rejected(t *testing.T) {
	_, router, _ := testEnvWithSource(t, false, "", nil)

	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
	}{
		{"bad extension", "notes.txt", loansYAML, nil},
		{"malformed", "broken2.yaml", testutil.MalformedYAML, nil},
		{"not openapi", "plain.yaml", "a: 1\n", nil},
		{"traversal", "x.yaml", loansYAML, map[string]string{"path": "../escape.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := uploadFile(t, router, tt.filename, []byte(tt.content), tt.fields)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestUploadContract_MissingFileField(t *testing.T) {
	_, router := testEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/contracts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}

func TestHealth(t *testing.T) {
	var notReady error
	r := chi.NewRouter()
	MountHealth(r, func() error { return notReady })

	w := do(t, r, http.MethodGet, "/health/live", nil)
	if w.Code != http.StatusOK {
		t.Errorf("live = %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/health/ready", nil)
	if w.Code != http.StatusOK {
		t.Errorf("ready = %d", w.Code)
	}

	notReady = errors.New("no contracts loaded")
	w = do(t, r, http.MethodGet, "/health/ready", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready = %d, want 503", w.Code)
	}
}
