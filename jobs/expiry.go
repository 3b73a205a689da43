package jobs

import (
	"context"
	"log"
	"os"
	"time"

	"seamless/services"
	"seamless/task"
)

// StartExpiryScheduler drives the time-based transitions that inbound hook
// traffic never triggers: idle session expiry, stale round-hold release, and
// retention cleanup of terminal sessions.
func StartExpiryScheduler(sessions *services.SessionRegistry, ledger *services.WalletLedger) {
	holdTimeout := envDuration("ROUND_HOLD_TIMEOUT", 10*time.Minute)

	tickerExpire := time.NewTicker(time.Minute)
	go func() {
		for {
			<-tickerExpire.C
			n, err := sessions.ExpireIdle(context.Background(), time.Now().UTC().Add(-sessions.IdleTimeout()))
			if err != nil {
				log.Printf("❌ error expiring idle sessions: %v", err)
			} else if n > 0 {
				log.Printf("expired %d idle sessions", n)
			}
		}
	}()

	tickerRelease := time.NewTicker(time.Minute)
	go func() {
		for {
			<-tickerRelease.C
			n, err := ledger.ReleaseStaleRounds(context.Background(), time.Now().UTC().Add(-holdTimeout))
			if err != nil {
				log.Printf("❌ error releasing stale rounds: %v", err)
			} else if n > 0 {
				log.Printf("released holds on %d stale rounds", n)
			}
		}
	}()

	tickerPurge := time.NewTicker(time.Hour)
	go func() {
		for {
			<-tickerPurge.C
			task.PurgeTerminalSessions()
		}
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️  Invalid value for %s: %s", key, v)
		return fallback
	}
	return d
}
