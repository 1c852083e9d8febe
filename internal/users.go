package internal

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"toolledger-api/internal/auth"
	"toolledger-api/internal/models"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// registerUser handles student self-registration. New accounts always get
// the student role; admins are provisioned out of band.
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !strings.Contains(req.Email, "@") {
		http.Error(w, "Please enter a valid email address", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 6 {
		http.Error(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		http.Error(w, "Name must be at least 2 characters", http.StatusBadRequest)
		return
	}

	var exists bool
	if err := s.DB.QueryRowContext(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, req.Email).Scan(&exists); err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if exists {
		http.Error(w, "Email already registered", http.StatusBadRequest)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	user := models.User{
		Email:     req.Email,
		Name:      req.Name,
		Roles:     []string{"student"},
		StudentID: req.StudentID,
		IsActive:  true,
	}
	err = s.DB.QueryRowContext(r.Context(), `
		INSERT INTO users (email, password_hash, name, roles, student_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		req.Email, string(hashedPassword), req.Name, pq.StringArray(user.Roles), req.StudentID).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	token, err := s.JWTManager.GenerateToken(user.ID, user.Roles)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.LoginResponse{Token: token, User: user.Redacted()})
}

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	var user models.User
	var studentID sql.NullString
	var lastLoginAt sql.NullTime
	var roles pq.StringArray

	err := s.DB.QueryRowContext(r.Context(), `
		SELECT id, email, password_hash, name, roles, student_id, is_active,
		       created_at, updated_at, last_login_at
		FROM users
		WHERE email = $1 AND is_active = true`, req.Email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &roles,
		&studentID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastLoginAt,
	)
	if err == sql.ErrNoRows {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	// Update last login time; failure here must not block the login
	if _, err := s.DB.ExecContext(r.Context(),
		`UPDATE users SET last_login_at = now() WHERE id = $1`, user.ID); err != nil {
		log.Printf("Failed to update last_login_at: %v", err)
	}

	if studentID.Valid {
		user.StudentID = &studentID.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	user.Roles = roles

	token, err := s.JWTManager.GenerateToken(user.ID, user.Roles)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.LoginResponse{Token: token, User: user.Redacted()})
}

// getCurrentUser returns the authenticated user's profile
func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var user models.User
	var studentID sql.NullString
	var lastLoginAt sql.NullTime
	var roles pq.StringArray

	err := s.DB.QueryRowContext(r.Context(), `
		SELECT id, email, name, roles, student_id, is_active, created_at, updated_at, last_login_at
		FROM users WHERE id = $1`, userID).Scan(
		&user.ID, &user.Email, &user.Name, &roles, &studentID,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt, &lastLoginAt,
	)
	if err == sql.ErrNoRows {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if studentID.Valid {
		user.StudentID = &studentID.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	user.Roles = roles

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
