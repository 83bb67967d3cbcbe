package store

import (
	"context"
	"testing"

	"github.com/ButBow/kernel-gmbh-sub000/internal/database"
	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
)

func setupKVTestDB(t *testing.T) *KVStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewKVStore(db)
}

func TestKVGetMissing(t *testing.T) {
	kv := setupKVTestDB(t)

	dst := []model.Category{{ID: "keep"}}
	ok, err := kv.Get(context.Background(), "cms_categories", &dst)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("ok = true for missing key")
	}
	if len(dst) != 1 || dst[0].ID != "keep" {
		t.Errorf("dst = %+v, want untouched", dst)
	}
}

func TestKVSetGet(t *testing.T) {
	kv := setupKVTestDB(t)
	ctx := context.Background()

	want := []model.Category{{ID: "a", Name: "A", Order: 1}, {ID: "b", Name: "B", Order: 2}}
	if err := kv.Set(ctx, "cms_categories", want); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got []model.Category
	ok, err := kv.Get(ctx, "cms_categories", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("ok = false after set")
	}
	if len(got) != 2 || got[1].Name != "B" {
		t.Errorf("got = %+v", got)
	}
}

func TestKVSetOverwrites(t *testing.T) {
	kv := setupKVTestDB(t)
	ctx := context.Background()

	kv.Set(ctx, "k", "first")
	kv.Set(ctx, "k", "second")

	var got string
	if _, err := kv.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "second" {
		t.Errorf("got = %q, want %q", got, "second")
	}

	entries, err := kv.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestKVReplaceAndDelete(t *testing.T) {
	kv := setupKVTestDB(t)
	ctx := context.Background()

	err := kv.Replace(ctx, map[string]any{
		"a": 1,
		"b": []string{"x"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	entries, _ := kv.List(ctx)
	if len(entries) != 2 || entries[0].Key != "a" || string(entries[1].Value) != `["x"]` {
		t.Errorf("entries = %+v", entries)
	}

	if err := kv.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int
	ok, _ := kv.Get(ctx, "a", &n)
	if ok {
		t.Error("key still present after delete")
	}
}
