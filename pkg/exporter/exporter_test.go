package exporter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sheet: Records
columns:
  - header: ID
    field: id
  - header: Who
    field: student
`), 0o644))

	layout, err := loadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, "Records", layout.Sheet)
	require.Len(t, layout.Columns, 2)
	assert.Equal(t, "Who", layout.Columns[1].Header)
	assert.Equal(t, "student", layout.Columns[1].Field)
}

func TestLoadLayoutDefaultsSheetName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
columns:
  - header: ID
    field: id
`), 0o644))

	layout, err := loadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, defaultLayout.Sheet, layout.Sheet)
}

func TestLoadLayoutRejectsEmptyColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sheet: Records\n"), 0o644))

	_, err := loadLayout(path)
	assert.Error(t, err)
}

func TestFieldValue(t *testing.T) {
	returned := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	notes := "returned late"
	approver := "Admin One"
	rec := record{
		ID:                 42,
		Student:            "Dana Smith",
		StudentEmail:       "dana@example.edu",
		Equipment:          "Oscilloscope",
		Category:           "electronics",
		Quantity:           2,
		Status:             "returned",
		Purpose:            "circuits lab",
		BorrowDate:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		ExpectedReturnDate: time.Date(2026, 3, 8, 17, 0, 0, 0, time.UTC),
		ActualReturnDate:   &returned,
		ApprovedBy:         &approver,
		AdminNotes:         &notes,
		CreatedAt:          time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, "42", fieldValue(rec, "id"))
	assert.Equal(t, "Dana Smith", fieldValue(rec, "student"))
	assert.Equal(t, "2", fieldValue(rec, "quantity"))
	assert.Equal(t, "returned", fieldValue(rec, "status"))
	assert.Equal(t, "2026-03-01 09:00", fieldValue(rec, "borrow_date"))
	assert.Equal(t, "2026-03-10 14:30", fieldValue(rec, "actual_return_date"))
	assert.Equal(t, "Admin One", fieldValue(rec, "approved_by"))
	assert.Equal(t, "", fieldValue(rec, "unknown_field"))
}

func TestFieldValueNilOptionals(t *testing.T) {
	rec := record{ID: 1, Status: "pending"}
	assert.Equal(t, "", fieldValue(rec, "actual_return_date"))
	assert.Equal(t, "", fieldValue(rec, "approved_by"))
	assert.Equal(t, "", fieldValue(rec, "admin_notes"))
}
