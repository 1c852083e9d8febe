package lifecycle

import (
	"context"
	"database/sql"

	"toolledger-api/internal/models"
)

// LowStockThreshold is the available-quantity level below which active
// equipment is flagged on the admin dashboard.
const LowStockThreshold = 3

// decrementAvailable takes amount units out of the equipment's available
// pool. The caller's transaction must already be open; the row lock taken
// here is what serializes concurrent approvals of the same equipment.
func decrementAvailable(ctx context.Context, tx *sql.Tx, equipmentID int64, amount int) error {
	var available int
	err := tx.QueryRowContext(ctx, `
		SELECT available_quantity FROM equipment WHERE id = $1 FOR UPDATE`, equipmentID).
		Scan(&available)
	if err == sql.ErrNoRows {
		return ErrEquipmentNotFound
	}
	if err != nil {
		return err
	}
	if amount > available {
		return &InsufficientStockError{Available: available, Requested: amount}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE equipment
		SET available_quantity = available_quantity - $1, updated_at = now()
		WHERE id = $2`, amount, equipmentID)
	return err
}

// incrementAvailable puts amount units back, clamped to total_quantity.
// The clamp protects against a double return or an admin shrinking the
// total while units were out.
func incrementAvailable(ctx context.Context, tx *sql.Tx, equipmentID int64, amount int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE equipment
		SET available_quantity = LEAST(total_quantity, available_quantity + $1), updated_at = now()
		WHERE id = $2`, amount, equipmentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

// LowStock returns active equipment whose availability has fallen below
// LowStockThreshold, the most depleted first.
func (s *Service) LowStock(ctx context.Context) ([]models.Equipment, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, description, category, total_quantity, available_quantity, is_active, created_at, updated_at
		FROM equipment
		WHERE is_active = true AND available_quantity < $1
		ORDER BY available_quantity ASC, name ASC`, LowStockThreshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.Equipment{}
	for rows.Next() {
		var it models.Equipment
		var desc sql.NullString
		if err := rows.Scan(&it.ID, &it.Name, &desc, &it.Category,
			&it.TotalQuantity, &it.AvailableQuantity, &it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			it.Description = &desc.String
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
