/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server: configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Open the SQLite store
  3. Wire engine, auth service, and HTTP handler
  4. Bootstrap an admin account on first run
  5. Start server with graceful shutdown

CONFIGURATION:
  -port / PORT            HTTP server port (default: 8080)
  -db   / DB_PATH         SQLite database path (default: attendance.db,
                          ":memory:" for in-memory)
  JWT_SECRET              Token signing secret (required outside dev)
  ADMIN_EMAIL/ADMIN_PASSWORD  First-run admin bootstrap

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  active requests, close the database, exit.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/auth"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "attendance.db"), "SQLite database path")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "JWT lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
		log.Println("Warning: JWT_SECRET not set, using insecure development secret")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	engine := attendance.NewEngine(store)
	authSvc := auth.NewService(secret, *tokenTTL)
	handler := api.NewHandler(engine, authSvc)

	if err := bootstrapAdmin(context.Background(), store); err != nil {
		log.Printf("Warning: admin bootstrap failed: %v", err)
	}

	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// bootstrapAdmin creates the first admin account when the employee table is
// empty and ADMIN_EMAIL/ADMIN_PASSWORD are set.
func bootstrapAdmin(ctx context.Context, store *sqlite.Store) error {
	emps, err := store.ListEmployees(ctx)
	if err != nil {
		return err
	}
	if len(emps) > 0 {
		return nil
	}

	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("No employees yet; set ADMIN_EMAIL and ADMIN_PASSWORD to bootstrap an admin")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := attendance.Employee{
		ID:           uuid.NewString(),
		Name:         "Administrator",
		Email:        email,
		Role:         attendance.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := store.SaveEmployee(ctx, admin); err != nil {
		return err
	}
	log.Printf("Bootstrapped admin account %s", email)
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
