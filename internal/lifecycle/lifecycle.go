// Package lifecycle implements the borrow-request state machine and the
// equipment availability ledger it drives. All status mutations and their
// ledger side effects happen inside a single database transaction with
// row-level locks on the request and equipment rows, so two concurrent
// approvals can never both pass the stock check.
package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"toolledger-api/internal/models"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

// Service owns the transactional core of the borrowing domain.
type Service struct {
	DB *sql.DB

	// ValidateReturnDate enables the optional creation-time check that the
	// expected return date falls after the borrow date. Off by default to
	// match the historical behavior of the system.
	ValidateReturnDate bool

	// Transitions, when set, counts successful transitions by target status.
	Transitions *prometheus.CounterVec
}

// NewService creates a lifecycle service on top of db.
func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// validTransitions is the full state machine: pending is the sole initial
// state, declined and returned are terminal.
var validTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.StatusPending:  {models.StatusApproved, models.StatusDeclined},
	models.StatusApproved: {models.StatusReturned},
	models.StatusDeclined: {},
	models.StatusReturned: {},
}

// CanTransition reports whether the state machine permits from -> to.
// A same-status "transition" is not covered here; callers treat it as an
// idempotent no-op before consulting the table.
func CanTransition(from, to models.RequestStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves a borrow request to target and applies the matching
// ledger side effect as one atomic unit:
//
//	pending  -> approved : stock check, then decrement availability
//	pending  -> declined : no ledger change
//	approved -> returned : increment availability, clamped to total
//
// Requesting the status the record is already in returns the current record
// unchanged; a retried approve click must not double-decrement stock.
// notes overwrites admin_notes only when non-nil.
func (s *Service) Transition(ctx context.Context, requestID int64, target models.RequestStatus, actingAdminID int64, notes *string) (*models.BorrowRequestWithDetails, error) {
	if !target.IsValid() {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown status %q", target)}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		current     models.RequestStatus
		equipmentID int64
		quantity    int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, equipment_id, quantity
		FROM borrow_requests WHERE id = $1 FOR UPDATE`, requestID).
		Scan(&current, &equipmentID, &quantity)
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	if current == target {
		// Idempotent no-op: no ledger mutation, no timestamps.
		return getRequestDetails(ctx, tx, requestID)
	}
	if !CanTransition(current, target) {
		return nil, &InvalidTransitionError{From: current, To: target}
	}

	switch target {
	case models.StatusApproved:
		if err := decrementAvailable(ctx, tx, equipmentID, quantity); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE borrow_requests
			SET status = 'approved', approved_by = $1, approved_at = now(), updated_at = now()
			WHERE id = $2`, actingAdminID, requestID)
	case models.StatusDeclined:
		_, err = tx.ExecContext(ctx, `
			UPDATE borrow_requests SET status = 'declined', updated_at = now() WHERE id = $1`, requestID)
	case models.StatusReturned:
		if err := incrementAvailable(ctx, tx, equipmentID, quantity); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE borrow_requests
			SET status = 'returned', actual_return_date = now(), updated_at = now()
			WHERE id = $1`, requestID)
	}
	if err != nil {
		return nil, err
	}

	if notes != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE borrow_requests SET admin_notes = $1, updated_at = now() WHERE id = $2`, *notes, requestID); err != nil {
			return nil, err
		}
	}

	out, err := getRequestDetails(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.Transitions != nil {
		s.Transitions.WithLabelValues(string(target)).Inc()
	}
	return out, nil
}

// CreateRequest validates the payload, checks current availability, and
// inserts a pending request. The stock decrement happens at approval, not
// here; the creation-time check only stops obviously hopeless requests.
func (s *Service) CreateRequest(ctx context.Context, userID int64, in models.CreateBorrowRequestRequest) (*models.BorrowRequest, error) {
	if in.EquipmentID <= 0 {
		return nil, &ValidationError{Message: "Please select an equipment"}
	}
	if in.Quantity < 1 {
		return nil, &ValidationError{Message: "Quantity must be at least 1"}
	}
	if strings.TrimSpace(in.Purpose) == "" {
		return nil, &ValidationError{Message: "Please describe purpose"}
	}
	if in.BorrowDate.IsZero() {
		return nil, &ValidationError{Message: "Please provide a borrow date"}
	}
	if in.ExpectedReturnDate.IsZero() {
		return nil, &ValidationError{Message: "Please provide an expected return date"}
	}
	if s.ValidateReturnDate && !in.ExpectedReturnDate.After(in.BorrowDate) {
		return nil, &ValidationError{Message: "Expected return date must be after borrow date"}
	}

	var available int
	var isActive bool
	err := s.DB.QueryRowContext(ctx, `
		SELECT available_quantity, is_active FROM equipment WHERE id = $1`, in.EquipmentID).
		Scan(&available, &isActive)
	if err == sql.ErrNoRows {
		return nil, ErrEquipmentNotFound
	}
	if err != nil {
		return nil, err
	}
	if !isActive {
		return nil, &ValidationError{Message: "This equipment is not available for borrowing"}
	}
	if available < in.Quantity {
		return nil, &InsufficientStockError{Available: available, Requested: in.Quantity}
	}

	req := &models.BorrowRequest{
		UserID:             userID,
		EquipmentID:        in.EquipmentID,
		Quantity:           in.Quantity,
		Purpose:            in.Purpose,
		BorrowDate:         in.BorrowDate,
		ExpectedReturnDate: in.ExpectedReturnDate,
		Status:             models.StatusPending,
	}
	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO borrow_requests (user_id, equipment_id, quantity, purpose, borrow_date, expected_return_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		userID, in.EquipmentID, in.Quantity, in.Purpose, in.BorrowDate, in.ExpectedReturnDate).
		Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequest fetches one borrow request with its joined details.
func (s *Service) GetRequest(ctx context.Context, requestID int64) (*models.BorrowRequestWithDetails, error) {
	return getRequestDetails(ctx, s.DB, requestID)
}

// RequestFilter narrows ListRequests. Zero values mean no filtering.
type RequestFilter struct {
	UserID int64
	Status models.RequestStatus
}

// ListRequests returns borrow requests with joined details, newest first.
func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]models.BorrowRequestWithDetails, error) {
	clauses := []string{}
	args := []interface{}{}
	arg := 1

	if filter.UserID > 0 {
		clauses = append(clauses, fmt.Sprintf("r.user_id = $%d", arg))
		args = append(args, filter.UserID)
		arg++
	}
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, &ValidationError{Message: fmt.Sprintf("unknown status %q", filter.Status)}
		}
		clauses = append(clauses, fmt.Sprintf("r.status = $%d", arg))
		args = append(args, string(filter.Status))
		arg++
	}

	sqlStr := detailsQuery
	if len(clauses) > 0 {
		sqlStr += " WHERE " + strings.Join(clauses, " AND ")
	}
	sqlStr += " ORDER BY r.created_at DESC"

	rows, err := s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.BorrowRequestWithDetails{}
	for rows.Next() {
		rec, err := scanRequestDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// querier is satisfied by both *sql.DB and *sql.Tx so the details fetch can
// run inside or outside the transition transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const detailsQuery = `
	SELECT r.id, r.user_id, r.equipment_id, r.quantity, r.purpose,
	       r.borrow_date, r.expected_return_date, r.actual_return_date,
	       r.status, r.admin_notes, r.created_at, r.approved_at, r.approved_by,
	       u.id, u.email, u.name, u.roles, u.student_id, u.is_active, u.created_at, u.updated_at,
	       e.id, e.name, e.description, e.category, e.total_quantity, e.available_quantity, e.is_active, e.created_at, e.updated_at,
	       a.id, a.email, a.name, a.roles
	FROM borrow_requests r
	JOIN users u ON u.id = r.user_id
	JOIN equipment e ON e.id = r.equipment_id
	LEFT JOIN users a ON a.id = r.approved_by`

func getRequestDetails(ctx context.Context, q querier, requestID int64) (*models.BorrowRequestWithDetails, error) {
	row := q.QueryRowContext(ctx, detailsQuery+" WHERE r.id = $1", requestID)
	rec, err := scanRequestDetails(row)
	if err == sql.ErrNoRows {
		return nil, ErrRequestNotFound
	}
	return rec, err
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRequestDetails(row scanner) (*models.BorrowRequestWithDetails, error) {
	var (
		rec models.BorrowRequestWithDetails

		actualReturn sql.NullTime
		adminNotes   sql.NullString
		approvedAt   sql.NullTime
		approvedBy   sql.NullInt64

		userRoles     pq.StringArray
		userStudentID sql.NullString

		equipDesc sql.NullString

		approverID    sql.NullInt64
		approverEmail sql.NullString
		approverName  sql.NullString
		approverRoles pq.StringArray
	)

	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.EquipmentID, &rec.Quantity, &rec.Purpose,
		&rec.BorrowDate, &rec.ExpectedReturnDate, &actualReturn,
		&rec.Status, &adminNotes, &rec.CreatedAt, &approvedAt, &approvedBy,
		&rec.User.ID, &rec.User.Email, &rec.User.Name, &userRoles, &userStudentID, &rec.User.IsActive, &rec.User.CreatedAt, &rec.User.UpdatedAt,
		&rec.Equipment.ID, &rec.Equipment.Name, &equipDesc, &rec.Equipment.Category, &rec.Equipment.TotalQuantity, &rec.Equipment.AvailableQuantity, &rec.Equipment.IsActive, &rec.Equipment.CreatedAt, &rec.Equipment.UpdatedAt,
		&approverID, &approverEmail, &approverName, &approverRoles,
	); err != nil {
		return nil, err
	}

	if actualReturn.Valid {
		rec.ActualReturnDate = &actualReturn.Time
	}
	if adminNotes.Valid {
		rec.AdminNotes = &adminNotes.String
	}
	if approvedAt.Valid {
		rec.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		rec.ApprovedBy = &approvedBy.Int64
	}

	rec.User.Roles = userRoles
	if userStudentID.Valid {
		rec.User.StudentID = &userStudentID.String
	}
	if equipDesc.Valid {
		rec.Equipment.Description = &equipDesc.String
	}

	if approverID.Valid {
		rec.Approver = &models.User{
			ID:    approverID.Int64,
			Email: approverEmail.String,
			Name:  approverName.String,
			Roles: approverRoles,
		}
	}
	return &rec, nil
}
