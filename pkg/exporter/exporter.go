// Package exporter writes the borrow-request history as an xlsx workbook
// for record-keeping outside the system.
package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"
)

// Options defines the configuration for a records export
type Options struct {
	// LayoutPath points at an optional YAML column layout; empty means
	// the built-in default layout.
	LayoutPath string
}

// Layout is the YAML column-layout configuration
type Layout struct {
	Sheet   string   `yaml:"sheet"`
	Columns []Column `yaml:"columns"`
}

type Column struct {
	Header string `yaml:"header"`
	Field  string `yaml:"field"`
}

// defaultLayout mirrors what admins see on the records screen.
var defaultLayout = Layout{
	Sheet: "Borrow Records",
	Columns: []Column{
		{Header: "ID", Field: "id"},
		{Header: "Student", Field: "student"},
		{Header: "Student Email", Field: "student_email"},
		{Header: "Equipment", Field: "equipment"},
		{Header: "Category", Field: "category"},
		{Header: "Quantity", Field: "quantity"},
		{Header: "Status", Field: "status"},
		{Header: "Purpose", Field: "purpose"},
		{Header: "Borrow Date", Field: "borrow_date"},
		{Header: "Expected Return", Field: "expected_return_date"},
		{Header: "Actual Return", Field: "actual_return_date"},
		{Header: "Approved By", Field: "approved_by"},
		{Header: "Admin Notes", Field: "admin_notes"},
		{Header: "Created", Field: "created_at"},
	},
}

// record is one flattened borrow-request row ready for the sheet.
type record struct {
	ID                 int64
	Student            string
	StudentEmail       string
	Equipment          string
	Category           string
	Quantity           int
	Status             string
	Purpose            string
	BorrowDate         time.Time
	ExpectedReturnDate time.Time
	ActualReturnDate   *time.Time
	ApprovedBy         *string
	AdminNotes         *string
	CreatedAt          time.Time
}

// ExportRecords queries the full borrow history and writes it as a single
// worksheet to w. It returns the number of exported rows.
func ExportRecords(ctx context.Context, db *pgxpool.Pool, w io.Writer, opts Options) (int, error) {
	layout := defaultLayout
	if opts.LayoutPath != "" {
		loaded, err := loadLayout(opts.LayoutPath)
		if err != nil {
			return 0, fmt.Errorf("failed to load layout: %w", err)
		}
		layout = loaded
	}

	rows, err := db.Query(ctx, `
		SELECT r.id, u.name, u.email, e.name, e.category, r.quantity, r.status,
		       r.purpose, r.borrow_date, r.expected_return_date, r.actual_return_date,
		       a.name, r.admin_notes, r.created_at
		FROM borrow_requests r
		JOIN users u ON u.id = r.user_id
		JOIN equipment e ON e.id = r.equipment_id
		LEFT JOIN users a ON a.id = r.approved_by
		ORDER BY r.created_at DESC`)
	if err != nil {
		return 0, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []record{}
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.ID, &rec.Student, &rec.StudentEmail, &rec.Equipment,
			&rec.Category, &rec.Quantity, &rec.Status, &rec.Purpose,
			&rec.BorrowDate, &rec.ExpectedReturnDate, &rec.ActualReturnDate,
			&rec.ApprovedBy, &rec.AdminNotes, &rec.CreatedAt); err != nil {
			return 0, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet(layout.Sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, col := range layout.Columns {
		header.AddCell().SetString(col.Header)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		for _, col := range layout.Columns {
			row.AddCell().SetString(fieldValue(rec, col.Field))
		}
	}

	if err := wb.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(records), nil
}

func loadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}
	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return Layout{}, err
	}
	if layout.Sheet == "" {
		layout.Sheet = defaultLayout.Sheet
	}
	if len(layout.Columns) == 0 {
		return Layout{}, fmt.Errorf("layout %s defines no columns", path)
	}
	return layout, nil
}

func fieldValue(rec record, field string) string {
	switch field {
	case "id":
		return strconv.FormatInt(rec.ID, 10)
	case "student":
		return rec.Student
	case "student_email":
		return rec.StudentEmail
	case "equipment":
		return rec.Equipment
	case "category":
		return rec.Category
	case "quantity":
		return strconv.Itoa(rec.Quantity)
	case "status":
		return rec.Status
	case "purpose":
		return rec.Purpose
	case "borrow_date":
		return formatTime(&rec.BorrowDate)
	case "expected_return_date":
		return formatTime(&rec.ExpectedReturnDate)
	case "actual_return_date":
		return formatTime(rec.ActualReturnDate)
	case "approved_by":
		return orEmpty(rec.ApprovedBy)
	case "admin_notes":
		return orEmpty(rec.AdminNotes)
	case "created_at":
		return formatTime(&rec.CreatedAt)
	}
	return ""
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
