package openapi

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/schema"
	"github.com/starford/ofmock/internal/testutil"
)

func mustParse(t *testing.T, source, doc string) *schema.Contract {
	t.Helper()
	c, err := Parse(source, []byte(doc))
	if err != nil {
		t.Fatalf("Parse(%s): %v", source, err)
	}
	return c
}

func TestParse_OpenAPI3(t *testing.T) {
	c := mustParse(t, "consents/consents.yaml", testutil.ConsentsYAML)

	if c.Name() != "Consents API" || c.Version() != "2.0.0" {
		t.Errorf("name/version = %q/%q", c.Name(), c.Version())
	}
	if c.Category() != "consents" {
		t.Errorf("category = %q, want consents", c.Category())
	}
	if c.BasePath() != "/open-banking/consents/v2" {
		t.Errorf("base path = %q", c.BasePath())
	}
	want := []string{"Consent", "CreateConsent", "Links", "ResponseConsent"}
	got := c.SchemaNames()
	if len(got) != len(want) {
		t.Fatalf("schemas = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("schemas = %v, want %v", got, want)
		}
	}
}

func TestParse_FieldOrderAndConstraints(t *testing.T) {
	c := mustParse(t, "consents.yaml", testutil.ConsentsYAML)
	obj, err := c.Schema("Consent")
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, f := range obj.Fields {
		names = append(names, f.Name)
	}
	wantOrder := []string{"consentId", "customerId", "cpf", "status", "creationDateTime", "permissions"}
	for i := range wantOrder {
		if names[i] != wantOrder[i] {
			t.Fatalf("field order = %v, want %v", names, wantOrder)
		}
	}

	consentID, _ := obj.Field("consentId")
	if consentID.Pattern == "" || consentID.MaxLength == nil || *consentID.MaxLength != 256 {
		t.Errorf("consentId constraints not loaded: %+v", consentID)
	}
	if consentID.Category != schema.CategoryConsentID {
		t.Errorf("consentId category = %v", consentID.Category)
	}
	if !obj.IsRequired("status") || obj.IsRequired("cpf") {
		t.Errorf("required set = %v", obj.Required)
	}

	status, _ := obj.Field("status")
	if status.Kind != schema.KindString || len(status.Enum) != 3 || status.Enum[0] != "AUTHORISED" {
		t.Errorf("status enum not resolved through $ref: %+v", status)
	}

	perms, _ := obj.Field("permissions")
	if perms.Kind != schema.KindArray || perms.Items == nil || len(perms.Items.Enum) != 3 {
		t.Fatalf("permissions items: %+v", perms)
	}
	if *perms.MinItems != 1 || *perms.MaxItems != 3 {
		t.Errorf("permissions item bounds = %d..%d", *perms.MinItems, *perms.MaxItems)
	}

	cpf, _ := obj.Field("cpf")
	if cpf.Category != schema.CategoryCPF {
		t.Errorf("cpf category = %v", cpf.Category)
	}
}

func TestParse_RefSharesObject(t *testing.T) {
	c := mustParse(t, "consents.yaml", testutil.ConsentsYAML)
	resp, _ := c.Schema("ResponseConsent")
	consent, _ := c.Schema("Consent")

	data, ok := resp.Field("data")
	if !ok || data.Kind != schema.KindObject {
		t.Fatalf("data field: %+v", data)
	}
	if data.Object != consent {
		t.Error("$ref should resolve to the shared Consent object")
	}

	links, _ := resp.Field("links")
	if links.Kind != schema.KindObject || links.Description != "Pagination links" {
		t.Errorf("single-part allOf not resolved: %+v", links)
	}
	if _, ok := links.Object.Field("self"); !ok {
		t.Error("links.self missing")
	}
}

func TestParse_Endpoints(t *testing.T) {
	c := mustParse(t, "consents.yaml", testutil.ConsentsYAML)
	eps := c.Endpoints()
	if len(eps) != 2 {
		t.Fatalf("endpoints = %d, want 2", len(eps))
	}
	if eps[0].Method != "POST" || eps[0].RequestSchema != "CreateConsent" || eps[0].ResponseSchema != "ResponseConsent" {
		t.Errorf("post endpoint = %+v", eps[0])
	}
	ep, ok := c.Endpoint("GET", "/open-banking/consents/v2/consents/urn:x:1")
	if !ok || ep.OperationID != "consentsGetConsentsConsentId" {
		t.Errorf("endpoint lookup with base path failed: %+v %v", ep, ok)
	}

	r := mustParse(t, "resources.yaml", testutil.ResourcesYAML)
	if got := r.Endpoints()[0].ResponseSchema; got != "Resource" {
		t.Errorf("array response schema = %q, want Resource", got)
	}
}

func TestParse_AllOfAndOpenAPI31(t *testing.T) {
	c := mustParse(t, "accounts/accounts.json", testutil.AccountsJSON)
	acc, err := c.Schema("Account")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := acc.Field("accountId"); !ok {
		t.Error("allOf $ref part not merged")
	}
	if !acc.IsRequired("accountId") || !acc.IsRequired("brandName") {
		t.Errorf("required not merged: %v", acc.Required)
	}

	balance, _ := acc.Field("balance")
	if balance.Kind != schema.KindNumber || !balance.Nullable {
		t.Errorf("type array not handled: %+v", balance)
	}
	if balance.Maximum == nil || *balance.Maximum != 100000 || !balance.ExclusiveMaximum {
		t.Errorf("numeric exclusiveMaximum not handled: %+v", balance)
	}

	cnpj, _ := acc.Field("companyCnpj")
	if cnpj.Pattern != `^\d{14}$` || cnpj.Category != schema.CategoryCNPJ {
		t.Errorf("companyCnpj = %+v", cnpj)
	}
}

func TestParse_Swagger2(t *testing.T) {
	c := mustParse(t, "customers/customers.yml", testutil.CustomersSwagger)
	if c.Category() != "customers" || c.BasePath() != "/open-banking/customers/v1" {
		t.Errorf("category/base = %q/%q", c.Category(), c.BasePath())
	}
	obj, err := c.Schema("PersonalIdentification")
	if err != nil {
		t.Fatal(err)
	}
	phone, _ := obj.Field("phoneNumber")
	if phone.Category != schema.CategoryPhone {
		t.Errorf("phoneNumber category = %v", phone.Category)
	}
	if c.Endpoints()[0].ResponseSchema != "PersonalIdentification" {
		t.Errorf("swagger response schema = %q", c.Endpoints()[0].ResponseSchema)
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("broken.yaml", []byte(testutil.MalformedYAML))
	if !errors.Is(err, apperr.ErrMalformedSchema) {
		t.Fatalf("expected ErrMalformedSchema, got %v", err)
	}

	for name, doc := range map[string]string{
		"not-openapi.yaml": "app:\n  log_level: info\n",
		"scalar.yaml":      "just a string",
		"bad-ref.yaml": `openapi: 3.0.0
info: {title: Bad}
components:
  schemas:
    A:
      type: object
      properties:
        b: {$ref: '#/components/schemas/Missing'}
`,
		"external-ref.yaml": `openapi: 3.0.0
info: {title: Ext}
components:
  schemas:
    A:
      type: object
      properties:
        b: {$ref: 'other.yaml#/B'}
`,
	} {
		if _, err := Parse(name, []byte(doc)); !errors.Is(err, apperr.ErrMalformedSchema) {
			t.Errorf("%s: expected ErrMalformedSchema, got %v", name, err)
		}
	}
}

func TestParse_RecursiveRef(t *testing.T) {
	doc := `openapi: 3.0.0
info: {title: Tree}
components:
  schemas:
    Node:
      type: object
      properties:
        name: {type: string}
        children:
          type: array
          items: {$ref: '#/components/schemas/Node'}
`
	c := mustParse(t, "tree.yaml", doc)
	node, _ := c.Schema("Node")
	children, _ := node.Field("children")
	if children.Items.Object != node {
		t.Error("recursive reference should point back at Node")
	}
}

func TestDetectCategory(t *testing.T) {
	cases := []struct {
		source, name, want string
	}{
		{"consents/swagger.yaml", "API", "consents"},
		{"x/credit-cards-accounts.yaml", "Cards", "credit-cards-accounts"},
		{"spec.yaml", "Unarranged Accounts Overdraft", "unarranged-accounts-overdraft"},
		{"spec.yaml", "Accounts API", "accounts"},
		{"payments.yaml", "Pagamentos", UnknownCategory},
	}
	for _, tc := range cases {
		if got := DetectCategory(tc.source, tc.name); got != tc.want {
			t.Errorf("DetectCategory(%q, %q) = %q, want %q", tc.source, tc.name, got, tc.want)
		}
	}
}

func TestLoadDir_SkipsMalformed(t *testing.T) {
	_, src := testutil.TestContracts(t, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	contracts, err := LoadDir(src, logger)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	var names []string
	for _, c := range contracts {
		names = append(names, c.Name())
	}
	want := []string{"Accounts API", "Consents API", "Customers API", "Resources API", "transactions"}
	if len(names) != len(want) {
		t.Fatalf("loaded %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("loaded[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLoadDir_DuplicateTitle(t *testing.T) {
	_, src := testutil.TestContracts(t, map[string]string{
		"a/consents.yaml": testutil.ConsentsYAML,
		"b/consents.yaml": testutil.ConsentsYAML,
	})
	contracts, err := LoadDir(src, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	if len(contracts) != 1 || contracts[0].Source() != "a/consents.yaml" {
		t.Errorf("expected the first document to win, got %d contracts", len(contracts))
	}
}
