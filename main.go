package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"seamless/controllers/hook"
	"seamless/database"
	"seamless/jobs"
	"seamless/routes"
	"seamless/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	database.Connect()

	if apiKey := os.Getenv("HOOK_API_KEY"); apiKey != "" {
		err := services.EnsureCredential(database.DB, apiKey, os.Getenv("HOOK_API_SECRET"), "bootstrap")
		if err != nil {
			log.Fatalf("❌ Failed to seed credential: %v", err)
		}
	}

	creds := services.NewCredentialStore(database.DB)
	catalog := services.NewCatalog(database.DB)
	guard := services.NewReplayGuard(envDuration("REPLAY_WINDOW", services.DefaultReplayWindow), nonceStore())

	sessions := services.NewSessionRegistry(database.DB, catalog, services.SessionConfig{
		LaunchBaseURL: os.Getenv("GAME_LAUNCH_BASE_URL"),
		IdleTimeout:   envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
	})
	ledger := services.NewWalletLedger(database.DB, catalog, services.LedgerConfig{
		AllowOverdraft: envBool("LEDGER_ALLOW_OVERDRAFT"),
	})

	host := os.Getenv("HOST")
	port := os.Getenv("PORT")
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "3000"
	}

	app := fiber.New()
	routes.Setup(app, hook.New(sessions, ledger), creds, guard)
	jobs.StartExpiryScheduler(sessions, ledger)

	addr := fmt.Sprintf("%s:%s", host, port)
	log.Println("Server running at", addr)

	go func() {
		if err := app.Listen(addr); err != nil {
			log.Panicf("Failed to start server: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Gracefully shutting down...")
	if err := app.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited cleanly")
}

// nonceStore picks the single-use replay tracking mode. Window-only checking
// (off) is the documented residual risk.
func nonceStore() services.NonceStore {
	switch os.Getenv("REPLAY_NONCE_TRACKING") {
	case "memory":
		return services.NewMemoryNonceStore()
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		return services.NewRedisNonceStore(rdb)
	default:
		return nil
	}
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

func envBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
