package failures

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func initTestStore(t *testing.T) {
	t.Helper()
	if err := Init(filepath.Join(t.TempDir(), "failures.db")); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestStoreAndGetFailure(t *testing.T) {
	initTestStore(t)

	cause := errors.New("download timed out after 30s")
	req := map[string]string{"url": "https://example.com/clip.gif"}
	if err := StoreFailure("conv1", "download", cause, req); err != nil {
		t.Fatalf("StoreFailure returned error: %v", err)
	}

	record, err := GetFailure("conv1")
	if err != nil {
		t.Fatalf("GetFailure returned error: %v", err)
	}
	if record == nil {
		t.Fatal("Expected failure record")
	}
	if record.Kind != "download" {
		t.Errorf("Expected kind download, got %s", record.Kind)
	}
	if record.Error != cause.Error() {
		t.Errorf("Expected error %q, got %q", cause.Error(), record.Error)
	}
	if record.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestGetFailureMissing(t *testing.T) {
	initTestStore(t)

	record, err := GetFailure("never-failed")
	if err != nil {
		t.Fatalf("GetFailure returned error: %v", err)
	}
	if record != nil {
		t.Error("Expected nil record for unknown id")
	}
}

func TestDeleteFailure(t *testing.T) {
	initTestStore(t)

	if err := StoreFailure("conv1", "encoding", errors.New("boom"), nil); err != nil {
		t.Fatalf("StoreFailure returned error: %v", err)
	}
	if err := DeleteFailure("conv1"); err != nil {
		t.Fatalf("DeleteFailure returned error: %v", err)
	}

	record, _ := GetFailure("conv1")
	if record != nil {
		t.Error("Record should be gone after delete")
	}
}

func TestListFailures(t *testing.T) {
	initTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := StoreFailure(id, "validation", errors.New("bad input"), nil); err != nil {
			t.Fatalf("StoreFailure returned error: %v", err)
		}
	}

	records, err := ListFailures()
	if err != nil {
		t.Fatalf("ListFailures returned error: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}
}

func TestCleanupOldRecords(t *testing.T) {
	initTestStore(t)

	if err := StoreFailure("recent", "encoding", errors.New("boom"), nil); err != nil {
		t.Fatalf("StoreFailure returned error: %v", err)
	}

	// cleanup with a generous age keeps the fresh record
	if err := CleanupOldRecords(24 * time.Hour); err != nil {
		t.Fatalf("CleanupOldRecords returned error: %v", err)
	}
	if record, _ := GetFailure("recent"); record == nil {
		t.Error("Fresh record should survive cleanup")
	}

	// zero age removes everything already written
	time.Sleep(5 * time.Millisecond)
	if err := CleanupOldRecords(0); err != nil {
		t.Fatalf("CleanupOldRecords returned error: %v", err)
	}
	if record, _ := GetFailure("recent"); record != nil {
		t.Error("Record should be removed by zero-age cleanup")
	}
}

func TestUninitializedStore(t *testing.T) {
	db = nil
	if err := StoreFailure("x", "encoding", errors.New("boom"), nil); err == nil {
		t.Error("Expected error when store is not initialized")
	}
	if _, err := GetFailure("x"); err == nil {
		t.Error("Expected error when store is not initialized")
	}
}
