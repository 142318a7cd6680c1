package dictionary

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ofmock/internal/domain"
	"github.com/starford/ofmock/internal/generator"
	"github.com/starford/ofmock/internal/schema"
	"github.com/starford/ofmock/internal/storage"
)

const accountsYAML = `
enums:
  accountType: [CONTA_DEPOSITO_A_VISTA, CONTA_POUPANCA]
account:
  branchCode: ["0001", "6272"]
  currency: BRL
  holders:
    - cpf: ["52998224725", "12345678900"]
subtype:
  enum: [INDIVIDUAL, CONJUNTA_SIMPLES]
`

const consentsJSON = `{
  "consent": {
    "status": {"values": ["AUTHORISED", "REJECTED"]},
    "permissions": ["ACCOUNTS_READ", "ACCOUNTS_BALANCES_READ"]
  }
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDictionary(t *testing.T, files map[string]string, logger *slog.Logger) *Dictionary {
	t.Helper()
	src, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	for p, content := range files {
		require.NoError(t, src.Write(p, []byte(content)))
	}
	d, err := Load(src, logger)
	require.NoError(t, err)
	return d
}

func TestLoad(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	d := testDictionary(t, map[string]string{
		"accounts.yaml":        accountsYAML,
		"nested/Consents.json": consentsJSON,
		"broken.yaml":          "a: [1, 2",
		"empty.yml":            "",
	}, logger)

	assert.Equal(t, []string{"accounts", "consents"}, d.Categories())
	assert.Contains(t, buf.String(), "broken.yaml")
}

func TestFieldExamples(t *testing.T) {
	d := testDictionary(t, map[string]string{"accounts.yaml": accountsYAML, "consents.json": consentsJSON}, quietLogger())

	tests := []struct {
		category, field string
		want            []any
	}{
		{"accounts", "branchCode", []any{"0001", "6272"}},
		{"accounts", "currency", []any{"BRL"}},
		{"accounts", "cpf", []any{"52998224725", "12345678900"}},
		{"ACCOUNTS", "currency", []any{"BRL"}},
		{"consents", "permissions", []any{"ACCOUNTS_READ", "ACCOUNTS_BALANCES_READ"}},
		{"accounts", "missing", nil},
		{"loans", "currency", nil},
	}
	for _, tt := range tests {
		t.Run(tt.category+"."+tt.field, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, d.FieldExamples(tt.category, tt.field)); diff != "" {
				t.Errorf("FieldExamples (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnumValues(t *testing.T) {
	d := testDictionary(t, map[string]string{"accounts.yaml": accountsYAML, "consents.json": consentsJSON}, quietLogger())

	assert.Equal(t, []any{"CONTA_DEPOSITO_A_VISTA", "CONTA_POUPANCA"}, d.EnumValues("accounts", "accountType"))
	assert.Equal(t, []any{"INDIVIDUAL", "CONJUNTA_SIMPLES"}, d.EnumValues("accounts", "subtype"))
	assert.Equal(t, []any{"AUTHORISED", "REJECTED"}, d.EnumValues("consents", "status"))
	assert.Nil(t, d.EnumValues("accounts", "nope"))
	assert.Nil(t, d.EnumValues("loans", "status"))
}

func TestSummary(t *testing.T) {
	d := testDictionary(t, map[string]string{"accounts.yaml": accountsYAML}, quietLogger())

	// enums, accountType, account, branchCode, currency, holders, cpf, subtype, enum
	want := map[string]Summary{"accounts": {Fields: 9, Enums: 2}}
	if diff := cmp.Diff(want, d.Summary()); diff != "" {
		t.Errorf("Summary (-want +got):\n%s", diff)
	}
}

func TestEnumOrExample(t *testing.T) {
	d := testDictionary(t, map[string]string{"accounts.yaml": accountsYAML}, quietLogger())
	f := &schema.Field{Name: "accountType", Kind: schema.KindString}

	got := d.EnumOrExample(f, generator.FieldContext{Contract: "accounts", FieldName: "accountType"})
	assert.Equal(t, []any{"CONTA_DEPOSITO_A_VISTA", "CONTA_POUPANCA"}, got)
	assert.Nil(t, d.EnumOrExample(f, generator.FieldContext{FieldName: "accountType"}))
}

func TestGeneratorUsesValidEntriesOnly(t *testing.T) {
	d := testDictionary(t, map[string]string{"accounts.yaml": accountsYAML}, quietLogger())
	c, err := schema.NewContract(schema.ContractSpec{
		Name:     "Accounts API",
		Category: "accounts",
		Schemas: map[string]*schema.Object{"Holder": {
			Name: "Holder",
			Fields: []*schema.Field{
				{Name: "cpf", Kind: schema.KindString},
				{Name: "branchCode", Kind: schema.KindString, Pattern: `^[1-9]\d{3}$`},
			},
			Required: map[string]bool{"cpf": true, "branchCode": true},
		}},
	})
	require.NoError(t, err)

	g := generator.New(generator.WithSeed(5), generator.WithExampleLookup(d))
	recs, _, err := g.GenerateRecords(c, "Holder", 10)
	require.NoError(t, err)
	for _, rec := range recs {
		assert.Equal(t, "52998224725", rec["cpf"])
		assert.Equal(t, "6272", rec["branchCode"])
		assert.True(t, domain.ValidCPF(rec["cpf"].(string)))
	}
}
