// Package credentials stores fetch-source credentials (S3 keys, GCS service
// account JSON, SFTP logins) under opaque access keys handed out by the
// /credentials endpoint. Convert requests reference a key instead of
// carrying raw secrets.
package credentials

import (
	"framepress/logger"
	"framepress/store"
)

var db *store.DB

// OpenDB opens the credentials store at the specified path
func OpenDB(dbPath string) error {
	d, err := store.Open(dbPath)
	if err != nil {
		logger.Errorf("Failed to open credentials store: %v", err)
		return err
	}
	db = d
	return nil
}

// CloseDB closes the store
func CloseDB() error {
	if db != nil {
		return db.Close()
	}
	return nil
}

// GetCredentials returns the credential map stored under key, or nil when
// the key is unknown.
func GetCredentials(key string) (map[string]string, error) {
	creds := make(map[string]string)
	found, err := db.GetJSON(key, &creds)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return creds, nil
}

// StoreCredentials stores the credentials map under the given key
func StoreCredentials(key string, creds map[string]string) error {
	return db.PutJSON(key, creds)
}

// DeleteCredentials deletes the credentials for the given key
func DeleteCredentials(key string) error {
	return db.Delete(key)
}
