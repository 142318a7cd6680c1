package catalog

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/ofmock/internal/openapi"
	"github.com/starford/ofmock/internal/storage"
	"github.com/starford/ofmock/internal/testutil"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(testutil.TestDBPath(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func upsertFixture(t *testing.T, db *DB, source, doc string) {
	t.Helper()
	c, err := openapi.Parse(source, []byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := db.UpsertContract(c, storage.Checksum([]byte(doc))); err != nil {
		t.Fatalf("UpsertContract: %v", err)
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"contracts", "schemas", "fields"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()
	upsertFixture(t, db, "consents.yaml", testutil.ConsentsYAML)
	rows, err := db.ListContracts("")
	if err != nil || len(rows) != 1 {
		t.Fatalf("in-memory catalog lost data: %v %v", rows, err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	upsertFixture(t, db, "consents.yaml", testutil.ConsentsYAML)

	cs, err := db.GetChecksum("consents.yaml")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != storage.Checksum([]byte(testutil.ConsentsYAML)) {
		t.Errorf("checksum = %q", cs)
	}
	n, _ := db.FieldCount("consents.yaml")
	if n == 0 {
		t.Error("expected flattened fields to be indexed")
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	db := testDB(t)
	upsertFixture(t, db, "c.yaml", testutil.ConsentsYAML)
	before, _ := db.FieldCount("c.yaml")
	upsertFixture(t, db, "c.yaml", testutil.ConsentsYAML)
	after, _ := db.FieldCount("c.yaml")
	if before != after {
		t.Errorf("field count changed on re-upsert: %d -> %d", before, after)
	}
}

func TestDeleteSource(t *testing.T) {
	db := testDB(t)
	upsertFixture(t, db, "del.yaml", testutil.ResourcesYAML)
	if err := db.DeleteSource("del.yaml"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	cs, _ := db.GetChecksum("del.yaml")
	if cs != "" {
		t.Errorf("deleted source still has checksum %q", cs)
	}
	if n, _ := db.FieldCount("del.yaml"); n != 0 {
		t.Errorf("expected 0 fields after delete, got %d", n)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListContractsAndCategories(t *testing.T) {
	db := testDB(t)
	upsertFixture(t, db, "consents/consents.yaml", testutil.ConsentsYAML)
	upsertFixture(t, db, "accounts/accounts.json", testutil.AccountsJSON)
	upsertFixture(t, db, "transactions.yaml", testutil.TransactionsYAML)

	all, err := db.ListContracts("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Name != "Accounts API" {
		t.Fatalf("contracts = %+v", all)
	}
	filtered, _ := db.ListContracts("consents")
	if len(filtered) != 1 || filtered[0].Endpoints != 2 {
		t.Errorf("filtered = %+v", filtered)
	}

	cats, err := db.Categories()
	if err != nil {
		t.Fatal(err)
	}
	if cats["consents"] != 1 || cats["accounts"] != 1 || cats[openapi.UnknownCategory] != 1 {
		t.Errorf("categories = %v", cats)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	upsertFixture(t, db, "consents.yaml", testutil.ConsentsYAML)
	upsertFixture(t, db, "resources.yaml", testutil.ResourcesYAML)

	results, err := db.Search("consentId", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := map[string]bool{}
	for _, r := range results {
		found[r.Contract+"/"+r.Schema+"/"+r.Field] = true
	}
	for _, want := range []string{
		"Consents API/Consent/consentId",
		"Consents API/ResponseConsent/data.consentId",
		"Resources API/Resource/consentId",
	} {
		if !found[want] {
			t.Errorf("missing search hit %s in %v", want, results)
		}
	}
}

func TestSync(t *testing.T) {
	_, src := testutil.TestContracts(t, nil)
	db := testDB(t)
	if err := Sync(db, src, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rows, _ := db.ListContracts("")
	if len(rows) != 5 {
		t.Fatalf("expected 5 indexed contracts (broken.yaml skipped), got %d", len(rows))
	}

	if err := src.Delete("transactions.yaml"); err != nil {
		t.Fatal(err)
	}
	if err := Sync(db, src, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.GetChecksum("transactions.yaml"); cs != "" {
		t.Error("stale entry not removed by Sync")
	}
}
