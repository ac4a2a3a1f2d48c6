package failures

import (
	"encoding/json"
	"fmt"
	"time"

	"framepress/store"
)

// FailureRecord represents one conversion that ended in a tagged failure.
type FailureRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`    // download | validation | unsupported | encoding | size-constraint
	Error     string    `json:"error"`   // human-readable cause
	Request   string    `json:"request"` // JSON of the originating media request
}

var db *store.DB

// Init initializes the failure store
func Init(dbPath string) error {
	d, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open failure store: %w", err)
	}
	db = d
	return nil
}

// Close closes the failure store
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// StoreFailure records a failed conversion under its id.
func StoreFailure(id, kind string, cause error, request any) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}

	reqJSON, jsonErr := json.Marshal(request)
	if jsonErr != nil {
		reqJSON = []byte(fmt.Sprintf("failed to marshal request: %v", jsonErr))
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	record := FailureRecord{
		ID:        id,
		Timestamp: time.Now(),
		Kind:      kind,
		Error:     msg,
		Request:   string(reqJSON),
	}
	return db.PutJSON(id, record)
}

// GetFailure retrieves a failure record by id. Returns nil when no failure
// is recorded for the id.
func GetFailure(id string) (*FailureRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	var record FailureRecord
	found, err := db.GetJSON(id, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// DeleteFailure removes a failure record
func DeleteFailure(id string) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}
	return db.Delete(id)
}

// ListFailures returns all failure records (for admin purposes)
func ListFailures() ([]FailureRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	var records []FailureRecord
	err := db.ForEach(func(_ string, value []byte) error {
		var record FailureRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return nil // Skip invalid records
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CleanupOldRecords removes failure records older than maxAge.
func CleanupOldRecords(maxAge time.Duration) error {
	if db == nil {
		return fmt.Errorf("failure store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	var keysToDelete []string
	err := db.ForEach(func(key string, value []byte) error {
		var record FailureRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return nil
		}
		if record.Timestamp.Before(cutoff) {
			keysToDelete = append(keysToDelete, key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range keysToDelete {
		if err := db.Delete(key); err != nil {
			return fmt.Errorf("failed to delete old failure record: %w", err)
		}
	}
	return nil
}
