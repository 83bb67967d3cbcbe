package store

import (
	"testing"
	"time"

	"github.com/ButBow/kernel-gmbh-sub000/internal/database"
	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
)

func setupBackupTestDB(t *testing.T) *BackupStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupStore(db)
}

func TestBackupCreate(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, err := bs.Create(model.BackupKindOffsite, "kernel-cms-backup-2024-01-01.json.enc", "01HX/kernel-cms.json.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if b.Kind != model.BackupKindOffsite {
		t.Errorf("kind = %q, want %q", b.Kind, model.BackupKindOffsite)
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}

	got, err := bs.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Filename != b.Filename || got.ObjectKey != b.ObjectKey {
		t.Errorf("got = %+v", got)
	}
}

func TestBackupGetMissing(t *testing.T) {
	bs := setupBackupTestDB(t)

	got, err := bs.GetByID(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestBackupUpdateStatus(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, _ := bs.Create(model.BackupKindOffsite, "test.json.enc", "k/test.json.enc")

	if err := bs.UpdateStatus(b.ID, model.BackupStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusUploading {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusUploading)
	}

	if err := bs.UpdateStatus(b.ID, model.BackupStatusFailed, "upload failed"); err != nil {
		t.Fatalf("update status with error: %v", err)
	}
	got, _ = bs.GetByID(b.ID)
	if got.Status != model.BackupStatusFailed {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusFailed)
	}
	if got.ErrorMessage != "upload failed" {
		t.Errorf("error_message = %q, want %q", got.ErrorMessage, "upload failed")
	}
}

func TestBackupUpdateCompleted(t *testing.T) {
	bs := setupBackupTestDB(t)

	b, _ := bs.Create(model.BackupKindImport, "old.json", "")
	if err := bs.UpdateCompleted(b.ID, 2048, 1, true); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	got, _ := bs.GetByID(b.ID)
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusCompleted)
	}
	if got.SizeBytes != 2048 || got.SchemaVersion != 1 || !got.Migrated {
		t.Errorf("got = %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestBackupListOrderAndLimit(t *testing.T) {
	bs := setupBackupTestDB(t)

	bs.Create(model.BackupKindExport, "first.json", "")
	time.Sleep(10 * time.Millisecond)
	bs.Create(model.BackupKindImport, "second.json", "")
	time.Sleep(10 * time.Millisecond)
	bs.Create(model.BackupKindOffsite, "third.json.enc", "k/third")

	all, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Filename != "third.json.enc" {
		t.Errorf("first entry = %q, want %q", all[0].Filename, "third.json.enc")
	}

	limited, err := bs.List(2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}

func TestBackupDeleteOlderThan(t *testing.T) {
	bs := setupBackupTestDB(t)

	bs.Create(model.BackupKindOffsite, "old.json.enc", "k/old")
	bs.Create(model.BackupKindExport, "local.json", "")
	time.Sleep(50 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(50 * time.Millisecond)
	bs.Create(model.BackupKindOffsite, "new.json.enc", "k/new")

	keys, err := bs.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 1 || keys[0] != "k/old" {
		t.Fatalf("deleted keys = %v, want [k/old]", keys)
	}

	// Local history is not pruned.
	remaining, _ := bs.List(10)
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2", len(remaining))
	}
}

func TestBackupLatestCompletedAndTotal(t *testing.T) {
	bs := setupBackupTestDB(t)

	b1, _ := bs.Create(model.BackupKindOffsite, "first.json.enc", "k/first")
	bs.UpdateCompleted(b1.ID, 100, 2, false)
	time.Sleep(10 * time.Millisecond)
	b2, _ := bs.Create(model.BackupKindOffsite, "second.json.enc", "k/second")
	bs.UpdateCompleted(b2.ID, 200, 2, false)

	b3, _ := bs.Create(model.BackupKindOffsite, "failed.json.enc", "k/failed")
	bs.UpdateStatus(b3.ID, model.BackupStatusFailed, "error")

	latest, err := bs.LatestCompleted(model.BackupKindOffsite)
	if err != nil {
		t.Fatalf("latest completed: %v", err)
	}
	if latest == nil || latest.Filename != "second.json.enc" {
		t.Fatalf("latest = %+v, want second.json.enc", latest)
	}

	byKey, err := bs.GetByObjectKey("k/first")
	if err != nil || byKey == nil || byKey.ID != b1.ID {
		t.Errorf("by key = %+v, %v", byKey, err)
	}

	total, err := bs.TotalSize(model.BackupKindOffsite)
	if err != nil {
		t.Fatalf("total size: %v", err)
	}
	if total != 300 {
		t.Errorf("total = %d, want 300", total)
	}

	none, _ := bs.LatestCompleted(model.BackupKindImport)
	if none != nil {
		t.Errorf("latest import = %+v, want nil", none)
	}
}
