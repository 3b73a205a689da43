package task

import (
	"log"
	"os"
	"time"

	"seamless/database"
	"seamless/models"
)

// PurgeTerminalSessions deletes expired and closed sessions past retention.
// Wallet transactions are never purged.
func PurgeTerminalSessions() {
	retention := 30 * 24 * time.Hour
	if v := os.Getenv("SESSION_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			retention = d
		}
	}

	cutoff := time.Now().UTC().Add(-retention)
	result := database.DB.
		Where("status IN ? AND updated_at < ?",
			[]string{models.SessionExpired, models.SessionClosed}, cutoff).
		Delete(&models.GameSession{})

	if result.Error != nil {
		log.Println("❌ Failed to purge terminal sessions:", result.Error)
	} else if result.RowsAffected > 0 {
		log.Printf("✅ Purged %d terminal sessions older than %s\n", result.RowsAffected, retention)
	}
}
