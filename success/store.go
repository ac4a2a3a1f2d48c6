package success

import (
	"encoding/json"
	"fmt"
	"time"

	"framepress/store"
)

// SuccessRecord represents a completed conversion.
type SuccessRecord struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	MimeType    string        `json:"mime_type"`
	OutputBytes int64         `json:"output_bytes"`
	Codec       string        `json:"codec"`  // codec of the accepted tier
	Passes      int           `json:"passes"` // 1, or 2 when the size governor re-encoded
	Elapsed     time.Duration `json:"elapsed"`
}

var db *store.DB

// Init initializes the success store
func Init(dbPath string) error {
	d, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open success store: %w", err)
	}
	db = d
	return nil
}

// Close closes the success store
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// StoreSuccess records a completed conversion under its id.
func StoreSuccess(record SuccessRecord) error {
	if db == nil {
		return fmt.Errorf("success store not initialized")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	return db.PutJSON(record.ID, record)
}

// GetSuccess retrieves a success record by id. Returns nil when not found.
func GetSuccess(id string) (*SuccessRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	var record SuccessRecord
	found, err := db.GetJSON(id, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// DeleteSuccess removes a success record
func DeleteSuccess(id string) error {
	if db == nil {
		return fmt.Errorf("success store not initialized")
	}
	return db.Delete(id)
}

// ListSuccessRecords returns all success records (for admin/debugging)
func ListSuccessRecords() ([]SuccessRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	var records []SuccessRecord
	err := db.ForEach(func(_ string, value []byte) error {
		var record SuccessRecord
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

// CleanupOldRecords removes success records older than maxAge.
func CleanupOldRecords(maxAge time.Duration) error {
	if db == nil {
		return fmt.Errorf("success store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	var keysToDelete []string
	err := db.ForEach(func(key string, value []byte) error {
		var record SuccessRecord
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
			return fmt.Errorf("failed to delete old success record: %w", err)
		}
	}
	return nil
}

// CheckHealth performs a basic health check on the success database
func CheckHealth() error {
	if db == nil {
		return fmt.Errorf("success database not initialized")
	}
	return db.CheckHealth()
}
