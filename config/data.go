package config

import (
	"os"
	"path/filepath"
)

// getDataDir determines the data directory path from environment or default.
// Priority: FRAMEPRESS_DATA_DIR environment variable > "./data" default
func getDataDir() string {
	if dir := os.Getenv("FRAMEPRESS_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetDataDir returns the current data directory path. Checked at call time so
// deployments can repoint the data directory without a rebuild.
func GetDataDir() string {
	return getDataDir()
}

// GetCredentialsDBPath returns the full path to the fetch-source credentials
// database. Path: {DATA_DIR}/credentials.db
func GetCredentialsDBPath() string {
	return filepath.Join(GetDataDir(), "credentials.db")
}

// GetFailuresDBPath returns the full path to the failures database, which
// records conversions that ended in a tagged failure.
// Path: {DATA_DIR}/failures.db
func GetFailuresDBPath() string {
	return filepath.Join(GetDataDir(), "failures.db")
}

// GetSuccessDBPath returns the full path to the success database, which
// records completed conversions. Path: {DATA_DIR}/success.db
func GetSuccessDBPath() string {
	return filepath.Join(GetDataDir(), "success.db")
}

// GetWorkDir returns the directory under which per-request workspaces are
// created. Configurable via FRAMEPRESS_WORK_DIR; defaults to the OS temp dir.
func GetWorkDir() string {
	if dir := os.Getenv("FRAMEPRESS_WORK_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// GetJWTSecret returns the shared HMAC secret used to verify request tokens.
// Empty means token verification cannot succeed; the server refuses to start
// without it unless FRAMEPRESS_INSECURE_NO_AUTH is set.
func GetJWTSecret() string {
	return os.Getenv("FRAMEPRESS_JWT_SECRET")
}

// AuthDisabled reports whether request-token verification is disabled.
// Intended for local development only.
func AuthDisabled() bool {
	return os.Getenv("FRAMEPRESS_INSECURE_NO_AUTH") != ""
}
