package lifecycle

import (
	"errors"
	"fmt"

	"toolledger-api/internal/models"
)

// Typed failures raised by the lifecycle core. Handlers map these to HTTP
// status codes; nothing here is retried automatically.
var (
	// ErrRequestNotFound means the referenced borrow request does not exist.
	ErrRequestNotFound = errors.New("request not found")
	// ErrEquipmentNotFound means the referenced equipment does not exist.
	ErrEquipmentNotFound = errors.New("equipment not found")
)

// InvalidTransitionError means the requested status change is not reachable
// from the request's current status.
type InvalidTransitionError struct {
	From models.RequestStatus
	To   models.RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Invalid status transition from %s to %s", e.From, e.To)
}

// InsufficientStockError means an approval (or a creation-time check) asked
// for more units than the equipment currently has available.
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Not enough equipment available. Only %d in stock, but %d requested.", e.Available, e.Requested)
}

// ValidationError means the input payload is malformed. Message carries the
// first validation failure, matching what clients display.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
