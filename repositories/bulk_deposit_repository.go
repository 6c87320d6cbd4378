package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/svxarena/tourneyzone/models"
)

type BulkDepositRepository interface {
	Create(ctx context.Context, log *models.BulkDepositLog) error
	ListRecent(ctx context.Context, limit int) ([]models.BulkDepositLog, error)
}

type postgresBulkDepositRepository struct {
	db *sql.DB
}

func NewPostgresBulkDepositRepository(db *sql.DB) BulkDepositRepository {
	return &postgresBulkDepositRepository{db: db}
}

func (r *postgresBulkDepositRepository) Create(ctx context.Context, l *models.BulkDepositLog) error {
	results, err := json.Marshal(l.Results)
	if err != nil {
		return fmt.Errorf("failed to encode bulk deposit results: %w", err)
	}

	query := `
		INSERT INTO bulk_deposit_logs (id, admin_id, processed, failed, results)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING processed_at`

	if err := r.db.QueryRowContext(ctx, query, l.ID, l.AdminID, l.Processed, l.Failed, results).Scan(&l.ProcessedAt); err != nil {
		return fmt.Errorf("failed to save bulk deposit log: %w", err)
	}
	return nil
}

func (r *postgresBulkDepositRepository) ListRecent(ctx context.Context, limit int) ([]models.BulkDepositLog, error) {
	query := `
		SELECT id, admin_id, processed, failed, results, processed_at
		FROM bulk_deposit_logs
		ORDER BY processed_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bulk deposit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.BulkDepositLog, 0)
	for rows.Next() {
		var l models.BulkDepositLog
		var raw []byte
		if err := rows.Scan(&l.ID, &l.AdminID, &l.Processed, &l.Failed, &raw, &l.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bulk deposit log: %w", err)
		}
		if err := json.Unmarshal(raw, &l.Results); err != nil {
			return nil, fmt.Errorf("failed to decode bulk deposit results: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
