package main

import (
	"log"
	"net/http"
	"os"

	"toolledger-api/internal"
	"toolledger-api/internal/config"
)

func main() {
	// Load and validate configuration
	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Validate database connection string
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	// Create and start server
	srv := internal.NewServer(dsn, cfg)

	log.Println("Starting ToolLedger API server...")
	log.Printf("JWT Issuer: %s", cfg.JWTIssuer)
	log.Printf("JWT Audience: %s", cfg.JWTAudience)
	log.Printf("JWT Expiry: %v", cfg.JWTExpiry)
	if srv.Mailer.Enabled() {
		log.Printf("Mail notifications enabled via %s", cfg.SMTPHost)
	} else {
		log.Println("Mail notifications disabled (EMAIL_HOST/EMAIL_FROM not set)")
	}
	log.Println("Listening on :8080")

	log.Fatal(http.ListenAndServe(":8080", srv.Router))
}
