package models

import "time"

// Equipment represents a borrowable item type with a pooled quantity.
// AvailableQuantity is only ever mutated by the borrow-request lifecycle;
// the invariant 0 <= available <= total holds at all times.
type Equipment struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       *string   `json:"description,omitempty"`
	Category          string    `json:"category"`
	TotalQuantity     int       `json:"total_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateEquipmentRequest represents the request body for creating equipment
type CreateEquipmentRequest struct {
	Name              string  `json:"name" validate:"required"`
	Description       *string `json:"description,omitempty"`
	Category          string  `json:"category" validate:"required"`
	TotalQuantity     int     `json:"total_quantity" validate:"required,min=1"`
	AvailableQuantity *int    `json:"available_quantity,omitempty"` // defaults to total_quantity
	IsActive          *bool   `json:"is_active,omitempty"`          // defaults to true
}

// UpdateEquipmentRequest represents the request body for updating equipment.
// All fields are optional; only provided fields are written.
type UpdateEquipmentRequest struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	Category          *string `json:"category,omitempty"`
	TotalQuantity     *int    `json:"total_quantity,omitempty"`
	AvailableQuantity *int    `json:"available_quantity,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
}
