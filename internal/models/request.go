package models

import "time"

// RequestStatus is the lifecycle state of a borrow request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDeclined RequestStatus = "declined"
	StatusReturned RequestStatus = "returned"
)

// IsValid reports whether s is one of the four known statuses.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusReturned:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusDeclined || s == StatusReturned
}

// BorrowRequest represents a single borrower's ask for some quantity of one
// equipment type over a date range. Requests are never deleted; they are the
// permanent audit record of the loan.
type BorrowRequest struct {
	ID                 int64         `json:"id"`
	UserID             int64         `json:"user_id"`
	EquipmentID        int64         `json:"equipment_id"`
	Quantity           int           `json:"quantity"`
	Purpose            string        `json:"purpose"`
	BorrowDate         time.Time     `json:"borrow_date"`
	ExpectedReturnDate time.Time     `json:"expected_return_date"`
	ActualReturnDate   *time.Time    `json:"actual_return_date,omitempty"`
	Status             RequestStatus `json:"status"`
	AdminNotes         *string       `json:"admin_notes,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	ApprovedAt         *time.Time    `json:"approved_at,omitempty"`
	ApprovedBy         *int64        `json:"approved_by,omitempty"`
}

// BorrowRequestWithDetails is a borrow request joined with its borrower,
// equipment, and (when approved) the approving admin.
type BorrowRequestWithDetails struct {
	BorrowRequest
	User      User      `json:"user"`
	Equipment Equipment `json:"equipment"`
	Approver  *User     `json:"approver,omitempty"`
}

// CreateBorrowRequestRequest represents the request body for creating a
// borrow request. Dates arrive as ISO-8601 strings.
type CreateBorrowRequestRequest struct {
	EquipmentID        int64     `json:"equipment_id" validate:"required"`
	Quantity           int       `json:"quantity" validate:"required,min=1"`
	Purpose            string    `json:"purpose" validate:"required"`
	BorrowDate         time.Time `json:"borrow_date" validate:"required"`
	ExpectedReturnDate time.Time `json:"expected_return_date" validate:"required"`
}

// TransitionRequest represents the body of an approve/decline/return call.
type TransitionRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// DashboardStats is the read-side summary shown on the admin overview.
type DashboardStats struct {
	PendingRequests int `json:"pendingRequests"`
	ActiveBorrows   int `json:"activeBorrows"`
	TotalEquipment  int `json:"totalEquipment"`
	OverdueItems    int `json:"overdueItems"`
}
