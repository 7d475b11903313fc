package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *Store {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "cache", "tradeshare.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if _, ok, err := db.Load(ctx, "xprtdata"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := db.Save(ctx, "xprtdata", []byte(`{"USA":null}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	body, ok, err := db.Load(ctx, "xprtdata")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if string(body) != `{"USA":null}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	if err := db.Save(ctx, "imexdata", []byte("{}")); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := db.Save(ctx, "imexdata", []byte(`{"CHN":{}}`)); err != nil {
		t.Fatalf("second save: %v", err)
	}

	body, _, err := db.Load(ctx, "imexdata")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(body) != `{"CHN":{}}` {
		t.Errorf("expected overwritten body, got %q", body)
	}

	entries, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Size != 10 {
		t.Errorf("expected size 10, got %d", entries[0].Size)
	}
	if time.Since(entries[0].UpdatedAt) > time.Minute {
		t.Errorf("unexpected updated_at %v", entries[0].UpdatedAt)
	}
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)

	for _, name := range []string{"xprtgraph", "countries", "mprtgraph"} {
		if err := db.Save(ctx, name, []byte("[]")); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	if err := db.Delete(ctx, "xprtgraph"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "countries" || entries[1].Name != "mprtgraph" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestReopenKeepsDocuments(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tradeshare.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Save(ctx, "countries", []byte(`[{"iso3":"USA"}]`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	db.Close()

	db, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if _, ok, err := db.Load(ctx, "countries"); err != nil || !ok {
		t.Fatalf("expected document after reopen, ok=%v err=%v", ok, err)
	}
}
