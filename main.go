package main

import (
	"context"
	"net/http"
	"time"

	"framepress/config"
	"framepress/credentials"
	"framepress/failures"
	"framepress/job"
	"framepress/logger"
	"framepress/routes"
	"framepress/success"
)

func main() {
	logger.Info("Starting Framepress server initialization")

	// Initialize credentials store
	logger.Debug("Initializing credentials database")
	if err := credentials.OpenDB(config.GetCredentialsDBPath()); err != nil {
		logger.Fatalf("Failed to initialize credentials store: %v", err)
	}
	defer credentials.CloseDB()
	logger.Info("Credentials database initialized successfully")

	// Initialize failure store
	logger.Debug("Initializing failures database")
	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		logger.Fatalf("Failed to initialize failure store: %v", err)
	}
	defer failures.Close()
	logger.Info("Failures database initialized successfully")

	// Initialize success store
	logger.Debug("Initializing success database")
	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		logger.Fatalf("Failed to initialize success store: %v", err)
	}
	defer success.Close()
	logger.Info("Success database initialized successfully")

	if config.AuthDisabled() {
		logger.Warn("Authentication is DISABLED; all requests will be accepted")
	} else if config.GetJWTSecret() == "" {
		logger.Fatal("FRAMEPRESS_JWT_SECRET is not set; refusing to start with auth enabled")
	}

	// Build the conversion pipeline from environment settings
	settings := config.LoadSettings()
	logger.Infof("Pipeline settings: output budget %d MB, target height %dp, base CRF %d, %d concurrent encodes",
		settings.MaxOutputSizeMB, settings.TargetHeight, settings.BaseCRF, settings.MaxConcurrentEncodes)
	pipeline := job.New(settings)
	routes.Init(pipeline)

	// Start cleanup routine for old records (runs every 24 hours)
	logger.Info("Starting cleanup routine (runs every 24 hours)")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // This will stop the cleanup routine when main exits
	go cleanupRoutine(ctx)

	// Register HTTP routes
	logger.Info("Registering HTTP routes")
	http.HandleFunc("/convert", routes.ConvertHandler)
	http.HandleFunc("/credentials", routes.RegisterCredentialsHandler)
	http.HandleFunc("/health", routes.HealthHandler)
	http.HandleFunc("/version", routes.VersionHandler)
	http.HandleFunc("/status", routes.StatusHandler)
	http.HandleFunc("/cancel", routes.CancelHandler)
	http.HandleFunc("/failures", routes.FailureQueryHandler)
	http.HandleFunc("/failures/list", routes.FailureListHandler)
	http.HandleFunc("/success", routes.SuccessQueryHandler)
	http.HandleFunc("/success/list", routes.SuccessListHandler)
	logger.Info("HTTP routes registered successfully")

	logger.Infof("Framepress server starting on port 8080")
	if err := http.ListenAndServe(":8080", nil); err != nil {
		logger.Fatalf("Server failed to start: %v", err)
	}
}

// cleanupRoutine periodically cleans up old success and failure records
func cleanupRoutine(ctx context.Context) {
	logger.Info("Cleanup routine started - will run every 24 hours")
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			logger.Info("Running scheduled cleanup of old records")
			// Clean up records older than 30 days
			maxAge := 30 * 24 * time.Hour

			logger.Debugf("Cleaning up success records older than %v", maxAge)
			if err := success.CleanupOldRecords(maxAge); err != nil {
				logger.Errorf("Failed to cleanup old success records: %v", err)
			} else {
				logger.Info("Successfully cleaned up old success records")
			}

			logger.Debugf("Cleaning up failure records older than %v", maxAge)
			if err := failures.CleanupOldRecords(maxAge); err != nil {
				logger.Errorf("Failed to cleanup old failure records: %v", err)
			} else {
				logger.Info("Successfully cleaned up old failure records")
			}

			logger.Info("Scheduled cleanup completed")
		}
	}
}
