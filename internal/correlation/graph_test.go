package correlation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ofmock/internal/apperr"
)

func TestDefaultGraph(t *testing.T) {
	g, err := New(DefaultRules())
	require.NoError(t, err)

	edges := g.EdgesFrom("consents")
	require.Len(t, edges, 1)
	assert.Equal(t, "resources", edges[0].TargetContract)
	assert.Equal(t, OneToMany, edges[0].Relationship)

	assert.Empty(t, g.EdgesFrom("transactions"))
	assert.Len(t, g.RulesFor("accounts"), 3)
	assert.Equal(t, []string{"accountId", "customerId"}, g.FieldsFor("accounts"))
	assert.Equal(t, []string{"accountId", "creditCardAccountId"}, g.FieldsFor("transactions"))

	want := map[string][]string{
		"consents":              {"resources"},
		"resources":             {"accounts"},
		"accounts":              {"transactions"},
		"customers":             {"accounts"},
		"credit-cards-accounts": {"transactions"},
	}
	if diff := cmp.Diff(want, g.Adjacency()); diff != "" {
		t.Errorf("adjacency mismatch (-want +got):\n%s", diff)
	}
}

func TestEdgesFrom_PreservesOrder(t *testing.T) {
	g := MustNew([]Rule{
		{SourceContract: "a", TargetContract: "c", SourceField: "x", TargetField: "x", Relationship: OneToOne},
		{SourceContract: "a", TargetContract: "b", SourceField: "y", TargetField: "y", Relationship: OneToMany},
		{SourceContract: "a", TargetContract: "c", SourceField: "z", TargetField: "z", Relationship: OneToMany},
	})
	edges := g.EdgesFrom("a")
	require.Len(t, edges, 3)
	assert.Equal(t, []string{"c", "b", "c"}, []string{edges[0].TargetContract, edges[1].TargetContract, edges[2].TargetContract})
	assert.Equal(t, []string{"c", "b"}, g.Adjacency()["a"])
}

func TestChain(t *testing.T) {
	g := MustNew(DefaultRules())

	chain, err := g.Chain("consents", "transactions")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, "consents", chain[0].SourceContract)
	assert.Equal(t, "resources", chain[1].SourceContract)
	assert.Equal(t, "accounts", chain[2].SourceContract)

	chain, err = g.Chain("accounts", "accounts")
	require.NoError(t, err)
	assert.Empty(t, chain)

	_, err = g.Chain("transactions", "consents")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNew_InvalidRule(t *testing.T) {
	tests := []Rule{
		{SourceContract: "", TargetContract: "b", SourceField: "x", TargetField: "x", Relationship: OneToOne},
		{SourceContract: "a", TargetContract: "b", SourceField: "", TargetField: "x", Relationship: OneToOne},
		{SourceContract: "a", TargetContract: "b", SourceField: "x", TargetField: "x", Relationship: "many-to-many"},
	}
	for _, r := range tests {
		_, err := New([]Rule{r})
		assert.ErrorIs(t, err, apperr.ErrInvalidArgument, r.String())
	}
}

func TestListing(t *testing.T) {
	g := MustNew(DefaultRules())
	l := g.Listing()
	assert.Len(t, l.Rules, 5)
	assert.Contains(t, l.Contracts, "credit-cards-accounts")
	assert.Equal(t, DefaultRules(), l.Rules)
}
