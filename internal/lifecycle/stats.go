package lifecycle

import (
	"context"

	"toolledger-api/internal/models"
)

// DashboardStats derives the admin overview counts from current state.
// No caching; every call recomputes against the live tables. An approved
// request past its expected return date counts as overdue.
func (s *Service) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM borrow_requests WHERE status = 'pending'`, &stats.PendingRequests},
		{`SELECT COUNT(*) FROM borrow_requests WHERE status = 'approved'`, &stats.ActiveBorrows},
		{`SELECT COUNT(*) FROM equipment`, &stats.TotalEquipment},
		{`SELECT COUNT(*) FROM borrow_requests WHERE status = 'approved' AND expected_return_date < now()`, &stats.OverdueItems},
	}
	for _, q := range queries {
		if err := s.DB.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
