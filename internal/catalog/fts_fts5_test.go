//go:build sqlite_fts5

package catalog

import (
	"testing"

	"github.com/starford/ofmock/internal/testutil"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM fields_fts`).Scan(&count); err != nil {
		t.Fatalf("fields_fts table missing: %v", err)
	}
}

func TestFTS5_SearchByToken(t *testing.T) {
	db := testDB(t)
	upsertFixture(t, db, "consents.yaml", testutil.ConsentsYAML)

	results, err := db.Search("consent", 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, r := range results {
		if r.Field == "consentId" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected consentId among %+v", results)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	upsertFixture(t, db, "gone.yaml", testutil.ResourcesYAML)
	_ = db.DeleteSource("gone.yaml")

	results, _ := db.Search("resourceId", 10)
	if len(results) != 0 {
		t.Errorf("deleted source still in FTS index: %+v", results)
	}
}

func TestFTSQuery(t *testing.T) {
	if got := ftsQuery("consentId"); got != `"consent"* "id"*` {
		t.Errorf("ftsQuery = %q", got)
	}
	if got := ftsQuery("  "); got != `""` {
		t.Errorf("ftsQuery(blank) = %q", got)
	}
}
