package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"toolledger-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// LIST with basic filters & pagination
func (s *Server) listEquipment(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	// optional text search on name/category
	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR category ILIKE $%d)", arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	// students only see borrowable items; admins see everything
	if r.URL.Query().Get("include_inactive") != "true" {
		clauses = append(clauses, "is_active = true")
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	sqlStr := fmt.Sprintf(`
		SELECT id, name, description, category, total_quantity, available_quantity,
		       is_active, created_at, updated_at,
		       COUNT(*) OVER() as total_count
		FROM equipment%s`, whereClause)

	allowedSort := map[string]string{
		"id":                 "id",
		"name":               "name",
		"category":           "category",
		"available_quantity": "available_quantity",
		"created_at":         "created_at",
	}
	sqlStr += buildOrderBy(params.sort, allowedSort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	rows, err := s.DB.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.Equipment{}
	var totalCount int
	for rows.Next() {
		var it models.Equipment
		var desc sql.NullString
		if err := rows.Scan(
			&it.ID, &it.Name, &desc, &it.Category, &it.TotalQuantity, &it.AvailableQuantity,
			&it.IsActive, &it.CreatedAt, &it.UpdatedAt,
			&totalCount,
		); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if desc.Valid {
			it.Description = &desc.String
		}
		items = append(items, it)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Total-Count", strconv.Itoa(totalCount))
	json.NewEncoder(w).Encode(items)
}

// lowStockEquipment lists active items running low, for the admin dashboard
func (s *Server) lowStockEquipment(w http.ResponseWriter, r *http.Request) {
	items, err := s.Lifecycle.LowStock(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

func (s *Server) createEquipment(w http.ResponseWriter, r *http.Request) {
	var in models.CreateEquipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if in.Name == "" || in.Category == "" {
		http.Error(w, "name and category are required", 400)
		return
	}
	if in.TotalQuantity < 1 {
		http.Error(w, "total_quantity must be at least 1", 400)
		return
	}

	available := in.TotalQuantity
	if in.AvailableQuantity != nil {
		available = *in.AvailableQuantity
	}
	if available < 0 || available > in.TotalQuantity {
		http.Error(w, "available_quantity must be between 0 and total_quantity", 400)
		return
	}
	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	out := models.Equipment{
		Name:              in.Name,
		Description:       in.Description,
		Category:          in.Category,
		TotalQuantity:     in.TotalQuantity,
		AvailableQuantity: available,
		IsActive:          isActive,
	}
	err := s.DB.QueryRowContext(r.Context(), `
		INSERT INTO equipment (name, description, category, total_quantity, available_quantity, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at
	`, in.Name, in.Description, in.Category, in.TotalQuantity, available, isActive).
		Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(out)
}

func (s *Server) updateEquipment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in models.UpdateEquipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}

	// Optional guard: refuse quantity edits that contradict outstanding
	// approved loans. Off by default; the stock clamp on return keeps the
	// ledger inside [0, total] either way.
	if s.Cfg != nil && s.Cfg.GuardQuantityEdits && (in.TotalQuantity != nil || in.AvailableQuantity != nil) {
		if msg, ok := s.quantityEditConflict(r, id, in); !ok {
			http.Error(w, msg, 400)
			return
		}
	}

	type set struct {
		sql string
		val interface{}
	}
	sets := make([]set, 0, 6)
	if in.Name != nil {
		sets = append(sets, set{"name = $%d", *in.Name})
	}
	if in.Description != nil {
		sets = append(sets, set{"description = $%d", *in.Description})
	}
	if in.Category != nil {
		sets = append(sets, set{"category = $%d", *in.Category})
	}
	if in.TotalQuantity != nil {
		sets = append(sets, set{"total_quantity = $%d", *in.TotalQuantity})
	}
	if in.AvailableQuantity != nil {
		sets = append(sets, set{"available_quantity = $%d", *in.AvailableQuantity})
	}
	if in.IsActive != nil {
		sets = append(sets, set{"is_active = $%d", *in.IsActive})
	}
	if len(sets) == 0 {
		http.Error(w, "no fields to update", 400)
		return
	}

	args := make([]interface{}, 0, len(sets)+1)
	sqlStr := "UPDATE equipment SET updated_at = now()"
	for i, sset := range sets {
		sqlStr += ", " + fmt.Sprintf(sset.sql, i+1)
		args = append(args, sset.val)
	}
	sqlStr += fmt.Sprintf(" WHERE id = $%d RETURNING id, name, description, category, total_quantity, available_quantity, is_active, created_at, updated_at", len(args)+1)
	args = append(args, id)

	var out models.Equipment
	var desc sql.NullString
	if err := s.DB.QueryRowContext(r.Context(), sqlStr, args...).Scan(
		&out.ID, &out.Name, &desc, &out.Category, &out.TotalQuantity,
		&out.AvailableQuantity, &out.IsActive, &out.CreatedAt, &out.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Equipment not found", http.StatusNotFound)
			return
		}
		if strings.Contains(strings.ToLower(err.Error()), "check") {
			http.Error(w, "quantities must satisfy 0 <= available <= total", 400)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	if desc.Valid {
		out.Description = &desc.String
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// quantityEditConflict checks a proposed quantity edit against the sum of
// approved-but-unreturned quantities for the item.
func (s *Server) quantityEditConflict(r *http.Request, id string, in models.UpdateEquipmentRequest) (string, bool) {
	var total, available, outstanding int
	err := s.DB.QueryRowContext(r.Context(), `
		SELECT e.total_quantity, e.available_quantity,
		       COALESCE((SELECT SUM(quantity) FROM borrow_requests WHERE equipment_id = e.id AND status = 'approved'), 0)
		FROM equipment e WHERE e.id = $1`, id).Scan(&total, &available, &outstanding)
	if err != nil {
		// Missing rows fall through to the update's own 404.
		return "", true
	}
	if in.TotalQuantity != nil {
		total = *in.TotalQuantity
	}
	if in.AvailableQuantity != nil {
		available = *in.AvailableQuantity
	}
	if available < 0 || available > total {
		return "available_quantity must be between 0 and total_quantity", false
	}
	if available+outstanding > total {
		return fmt.Sprintf("%d units are still out on approved requests; total_quantity cannot drop below available + outstanding", outstanding), false
	}
	return "", true
}

func (s *Server) deleteEquipment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := s.DB.ExecContext(r.Context(), `DELETE FROM equipment WHERE id = $1`, id)
	if err != nil {
		// Requests are a permanent audit record; items they reference
		// cannot be hard-deleted, only deactivated.
		if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
			http.Error(w, "equipment has borrow history; deactivate it instead", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		http.Error(w, "Equipment not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
