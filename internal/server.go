package internal

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"toolledger-api/internal/auth"
	"toolledger-api/internal/config"
	"toolledger-api/internal/lifecycle"
	"toolledger-api/internal/mailer"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Server struct {
	DB         *sql.DB
	Pool       *pgxpool.Pool
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Lifecycle  *lifecycle.Service
	Mailer     *mailer.Mailer
	Cfg        *config.Config
}

func NewServer(dsn string, cfg *config.Config) *Server {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Database ping failed:", err)
	}

	// Also create a pgxpool for the records exporter
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatal("Failed to create pgxpool:", err)
	}

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)

	// Validate JWT configuration
	if err := jwtManager.ValidateConfig(); err != nil {
		log.Fatal("JWT configuration validation failed:", err)
	}

	// Initialize metrics
	metrics := NewMetrics()

	// The lifecycle service owns the transition/ledger transaction boundary
	core := lifecycle.NewService(db)
	core.ValidateReturnDate = cfg.ValidateReturnDate
	core.Transitions = metrics.Transitions()

	s := &Server{
		DB:         db,
		Pool:       pool,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    metrics,
		Lifecycle:  core,
		Mailer:     mailer.New(cfg),
		Cfg:        cfg,
	}
	s.routes()
	return s
}

// routes mounts everything on the router. Metrics middleware must go on
// before the first route; chi rejects Use on a mux that already has routes.
func (s *Server) routes() {
	if os.Getenv("ENABLE_METRICS") == "true" {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	// Public routes (no JWT required)
	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if _, err := w.Write([]byte("db: ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Post("/api/auth/register", s.registerUser)
	s.Router.Post("/api/auth/login", s.loginUser)

	// Protected route group
	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})
}

// Close properly shuts down the server and cleans up resources
func (s *Server) Close(ctx context.Context) error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// mountProtectedRoutes mounts all routes that require authentication.
// Role gating mirrors the domain: any authenticated user can browse
// equipment and manage their own requests; everything else is admin-only.
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Get("/api/auth/me", s.getCurrentUser)

	// Equipment - write operations and the low-stock report require admin
	r.Get("/api/equipment", s.listEquipment)
	r.Get("/api/equipment/low-stock", auth.MustRole("admin")(http.HandlerFunc(s.lowStockEquipment)).(http.HandlerFunc))
	r.Post("/api/equipment", auth.MustRole("admin")(http.HandlerFunc(s.createEquipment)).(http.HandlerFunc))
	r.Patch("/api/equipment/{id}", auth.MustRole("admin")(http.HandlerFunc(s.updateEquipment)).(http.HandlerFunc))
	r.Delete("/api/equipment/{id}", auth.MustRole("admin")(http.HandlerFunc(s.deleteEquipment)).(http.HandlerFunc))

	// Borrow requests
	r.Get("/api/borrow-requests", auth.MustRole("admin")(http.HandlerFunc(s.listBorrowRequests)).(http.HandlerFunc))
	r.Get("/api/borrow-requests/my", s.listMyBorrowRequests)
	r.Post("/api/borrow-requests", s.createBorrowRequest)
	r.Patch("/api/borrow-requests/{id}/approve", auth.MustRole("admin")(http.HandlerFunc(s.approveBorrowRequest)).(http.HandlerFunc))
	r.Patch("/api/borrow-requests/{id}/decline", auth.MustRole("admin")(http.HandlerFunc(s.declineBorrowRequest)).(http.HandlerFunc))
	r.Patch("/api/borrow-requests/{id}/return", auth.MustRole("admin")(http.HandlerFunc(s.returnBorrowRequest)).(http.HandlerFunc))

	// Admin dashboard and records export
	r.Get("/api/admin/stats", auth.MustRole("admin")(http.HandlerFunc(s.getDashboardStats)).(http.HandlerFunc))
	r.Get("/api/admin/records/export", auth.MustRole("admin")(http.HandlerFunc(s.exportRecords)).(http.HandlerFunc))
}
