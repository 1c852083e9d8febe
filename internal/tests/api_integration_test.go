package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"toolledger-api/internal/models"
	"toolledger-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	testutil.RequireIntegration(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	testServer.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestUnauthorizedAccess(t *testing.T) {
	testutil.RequireIntegration(t)

	w := doJSON(t, "GET", "/api/borrow-requests/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidToken(t *testing.T) {
	testutil.RequireIntegration(t)

	req := httptest.NewRequest("GET", "/api/borrow-requests/my", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	w := httptest.NewRecorder()
	testServer.Router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStudentForbiddenFromAdminRoutes(t *testing.T) {
	testutil.RequireIntegration(t)

	studentID := createUser(t, "forbidden-student@test.edu", "Forbidden Student", "student")
	token := newToken(t, studentID, "student")

	for _, route := range []struct {
		method string
		path   string
	}{
		{"GET", "/api/borrow-requests"},
		{"GET", "/api/equipment/low-stock"},
		{"POST", "/api/equipment"},
		{"PATCH", "/api/borrow-requests/1/approve"},
		{"GET", "/api/admin/stats"},
		{"GET", "/api/admin/records/export"},
	} {
		w := doJSON(t, route.method, route.path, token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", route.method, route.path)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	testutil.RequireIntegration(t)

	w := doJSON(t, "POST", "/api/auth/register", "", map[string]interface{}{
		"email":      "newstudent@test.edu",
		"password":   "password123",
		"name":       "New Student",
		"student_id": "S-2026-001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var registered models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "newstudent@test.edu", registered.User.Email)
	assert.Equal(t, []string{"student"}, []string(registered.User.Roles))
	assert.NotContains(t, w.Body.String(), "password_hash", "response must not leak credentials")

	// Duplicate email is rejected
	w = doJSON(t, "POST", "/api/auth/register", "", map[string]interface{}{
		"email":    "newstudent@test.edu",
		"password": "password123",
		"name":     "New Student",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Wrong password
	w = doJSON(t, "POST", "/api/auth/login", "", map[string]interface{}{
		"email":    "newstudent@test.edu",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")

	// Correct password
	w = doJSON(t, "POST", "/api/auth/login", "", map[string]interface{}{
		"email":    "newstudent@test.edu",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var login models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	// Token works against /api/auth/me
	w = doJSON(t, "GET", "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "newstudent@test.edu", me.Email)
	require.NotNil(t, me.StudentID)
	assert.Equal(t, "S-2026-001", *me.StudentID)
}

func TestBorrowRequestFlow(t *testing.T) {
	testutil.RequireIntegration(t)

	adminID := createUser(t, "flow-admin@test.edu", "Flow Admin", "admin")
	studentID := createUser(t, "flow-student@test.edu", "Flow Student", "student")
	adminToken := newToken(t, adminID, "admin")
	studentToken := newToken(t, studentID, "student")

	// Admin creates the equipment
	w := doJSON(t, "POST", "/api/equipment", adminToken, map[string]interface{}{
		"name":           "3D Printer",
		"category":       "fabrication",
		"total_quantity": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var equipment models.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &equipment))
	assert.Equal(t, 3, equipment.AvailableQuantity, "available defaults to total")

	// Student files a request
	w = doJSON(t, "POST", "/api/borrow-requests", studentToken, map[string]interface{}{
		"equipment_id":         equipment.ID,
		"quantity":             1,
		"purpose":              "printing enclosure parts",
		"borrow_date":          "2026-09-02T09:00:00Z",
		"expected_return_date": "2026-09-09T17:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.BorrowRequest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.StatusPending, created.Status)
	assert.Equal(t, 3, availableQty(t, equipment.ID))

	// Admin approves with a note
	w = doJSON(t, "PATCH", fmt.Sprintf("/api/borrow-requests/%d/approve", created.ID), adminToken, map[string]interface{}{
		"notes": "pick up at the front desk",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var approved models.BorrowRequestWithDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &approved))
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.AdminNotes)
	assert.Equal(t, "pick up at the front desk", *approved.AdminNotes)
	assert.Equal(t, 2, availableQty(t, equipment.ID))

	// The student sees it under their own requests
	w = doJSON(t, "GET", "/api/borrow-requests/my", studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.BorrowRequestWithDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)
	assert.Equal(t, "3D Printer", mine[0].Equipment.Name)

	// The admin list filters by status
	w = doJSON(t, "GET", "/api/borrow-requests?status=approved", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.BorrowRequestWithDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	found := false
	for _, item := range listed {
		assert.Equal(t, models.StatusApproved, item.Status)
		if item.ID == created.ID {
			found = true
		}
	}
	assert.True(t, found)

	// Return restores stock
	w = doJSON(t, "PATCH", fmt.Sprintf("/api/borrow-requests/%d/return", created.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var returned models.BorrowRequestWithDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &returned))
	assert.Equal(t, models.StatusReturned, returned.Status)
	assert.NotNil(t, returned.ActualReturnDate)
	assert.Equal(t, 3, availableQty(t, equipment.ID))
}

func TestTransitionErrorStatusMapping(t *testing.T) {
	testutil.RequireIntegration(t)

	adminID := createUser(t, "mapping-admin@test.edu", "Mapping Admin", "admin")
	studentID := createUser(t, "mapping-student@test.edu", "Mapping Student", "student")
	adminToken := newToken(t, adminID, "admin")
	studentToken := newToken(t, studentID, "student")

	// Unknown request id
	w := doJSON(t, "PATCH", "/api/borrow-requests/999999/approve", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Request not found")

	// Non-numeric id behaves like a missing record
	w = doJSON(t, "PATCH", "/api/borrow-requests/abc/approve", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Terminal state rejections carry the transition message
	equipmentID := createEquipment(t, "Band Saw", 2, 2)
	requestID := createPendingRequest(t, studentID, equipmentID, 1)
	w = doJSON(t, "PATCH", fmt.Sprintf("/api/borrow-requests/%d/decline", requestID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, "PATCH", fmt.Sprintf("/api/borrow-requests/%d/return", requestID), adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid status transition from declined to returned")

	// Creation-time stock check
	shortID := createEquipment(t, "Drone", 2, 1)
	w = doJSON(t, "POST", "/api/borrow-requests", studentToken, map[string]interface{}{
		"equipment_id":         shortID,
		"quantity":             2,
		"purpose":              "aerial survey",
		"borrow_date":          "2026-09-02T09:00:00Z",
		"expected_return_date": "2026-09-05T17:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Not enough equipment available. Only 1 in stock, but 2 requested.")

	// Validation failures
	w = doJSON(t, "POST", "/api/borrow-requests", studentToken, map[string]interface{}{
		"equipment_id":         shortID,
		"quantity":             1,
		"borrow_date":          "2026-09-02T09:00:00Z",
		"expected_return_date": "2026-09-05T17:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please describe purpose")
}

func TestDashboardStats(t *testing.T) {
	testutil.RequireIntegration(t)

	adminID := createUser(t, "stats-admin@test.edu", "Stats Admin", "admin")
	studentID := createUser(t, "stats-student@test.edu", "Stats Student", "student")
	adminToken := newToken(t, adminID, "admin")

	equipmentID := createEquipment(t, "Welding Kit", 4, 4)
	createPendingRequest(t, studentID, equipmentID, 1)
	activeID := createPendingRequest(t, studentID, equipmentID, 1)

	w := doJSON(t, "PATCH", fmt.Sprintf("/api/borrow-requests/%d/approve", activeID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, "GET", "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.GreaterOrEqual(t, stats.PendingRequests, 1)
	assert.GreaterOrEqual(t, stats.ActiveBorrows, 1)
	assert.GreaterOrEqual(t, stats.TotalEquipment, 1)
	assert.Contains(t, w.Body.String(), "pendingRequests")
}

func TestDashboardStatsCountsOverdue(t *testing.T) {
	testutil.RequireIntegration(t)

	adminID := createUser(t, "overdue-admin@test.edu", "Overdue Admin", "admin")
	studentID := createUser(t, "overdue-student@test.edu", "Overdue Student", "student")
	adminToken := newToken(t, adminID, "admin")

	equipmentID := createEquipment(t, "Overdue Kit", 6, 6)

	w := doJSON(t, "GET", "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var before models.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &before))

	// One approved request past its expected return date counts as overdue;
	// past-due requests in terminal states do not.
	pastDue := func(status string) {
		_, err := testDB.Exec(`
			INSERT INTO borrow_requests (user_id, equipment_id, quantity, purpose, borrow_date, expected_return_date, status)
			VALUES ($1, $2, 1, 'overdue case', now() - interval '14 days', now() - interval '7 days', $3)`,
			studentID, equipmentID, status)
		require.NoError(t, err)
	}
	pastDue("approved")
	pastDue("declined")
	pastDue("returned")

	w = doJSON(t, "GET", "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after models.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))

	assert.Equal(t, before.OverdueItems+1, after.OverdueItems,
		"only the approved past-due request may count as overdue")
	assert.Equal(t, before.ActiveBorrows+1, after.ActiveBorrows)
}

func TestLowStockReport(t *testing.T) {
	testutil.RequireIntegration(t)

	adminID := createUser(t, "lowstock-admin@test.edu", "LowStock Admin", "admin")
	adminToken := newToken(t, adminID, "admin")

	createEquipment(t, "Plasma Cutter", 5, 1)

	w := doJSON(t, "GET", "/api/equipment/low-stock", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []models.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))

	found := false
	for _, item := range items {
		assert.LessOrEqual(t, item.AvailableQuantity, 3)
		if item.Name == "Plasma Cutter" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEquipmentDeleteWithHistoryConflicts(t *testing.T) {
	testutil.RequireIntegration(t)

	adminID := createUser(t, "delete-admin@test.edu", "Delete Admin", "admin")
	studentID := createUser(t, "delete-student@test.edu", "Delete Student", "student")
	adminToken := newToken(t, adminID, "admin")

	// With history: refuse and suggest deactivation
	usedID := createEquipment(t, "Angle Grinder", 3, 3)
	createPendingRequest(t, studentID, usedID, 1)
	w := doJSON(t, "DELETE", fmt.Sprintf("/api/equipment/%d", usedID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "deactivate it instead")

	// Without history: hard delete succeeds
	freshID := createEquipment(t, "Spare Grinder", 3, 3)
	w = doJSON(t, "DELETE", fmt.Sprintf("/api/equipment/%d", freshID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecordsExport(t *testing.T) {
	testutil.RequireIntegration(t)

	adminID := createUser(t, "export-admin@test.edu", "Export Admin", "admin")
	studentID := createUser(t, "export-student@test.edu", "Export Student", "student")
	adminToken := newToken(t, adminID, "admin")

	equipmentID := createEquipment(t, "Export Camera", 2, 2)
	createPendingRequest(t, studentID, equipmentID, 1)

	w := doJSON(t, "GET", "/api/admin/records/export", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment; filename="))
	assert.NotZero(t, w.Body.Len())
}
