package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	"github.com/jmoiron/sqlx"
)

// MaintenanceRepository runs the housekeeping queries straight on sqlx.
type MaintenanceRepository struct {
	db *sqlx.DB
}

func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

const staleInactiveQuery = `
SELECT id, email, username, inactivated_at
FROM users
WHERE is_active = false
  AND inactivated_at IS NOT NULL
  AND inactivated_at <= $1
ORDER BY inactivated_at`

func (r *MaintenanceRepository) FindStaleInactive(ctx context.Context, cutoff time.Time) ([]user.StaleAccount, error) {
	var accounts []user.StaleAccount
	if err := r.db.SelectContext(ctx, &accounts, staleInactiveQuery, cutoff); err != nil {
		return nil, fmt.Errorf("stale inactive query: %w", err)
	}
	return accounts, nil
}
