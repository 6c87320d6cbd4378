package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/svxarena/tourneyzone/models"
)

var (
	ErrSettlementExists   = errors.New("tournament already settled")
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrSettlementFK       = errors.New("settlement references a missing tournament or user")
)

type SettlementRepository interface {
	// Insert claims the settlement marker for a tournament. It returns
	// ErrSettlementExists when another settlement already holds it.
	Insert(ctx context.Context, exec SQLExecutor, rec *models.SettlementRecord) error
	Finalize(ctx context.Context, exec SQLExecutor, tournamentID int, paidOut, organizerRemainder int64) error
	GetByTournamentID(ctx context.Context, tournamentID int) (*models.SettlementRecord, error)
}

type postgresSettlementRepository struct {
	db *sql.DB
}

func NewPostgresSettlementRepository(db *sql.DB) SettlementRepository {
	return &postgresSettlementRepository{db: db}
}

func (r *postgresSettlementRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSettlementRepository) Insert(ctx context.Context, exec SQLExecutor, rec *models.SettlementRecord) error {
	query := `
		INSERT INTO tournament_settlements (tournament_id, pool, settled_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (tournament_id) DO NOTHING
		RETURNING created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, rec.TournamentID, rec.Pool, rec.SettledBy).Scan(&rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSettlementExists
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrSettlementFK
		}
		return fmt.Errorf("failed to insert settlement marker: %w", err)
	}
	return nil
}

func (r *postgresSettlementRepository) Finalize(ctx context.Context, exec SQLExecutor, tournamentID int, paidOut, organizerRemainder int64) error {
	query := `UPDATE tournament_settlements SET paid_out = $1, organizer_remainder = $2 WHERE tournament_id = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, paidOut, organizerRemainder, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to finalize settlement: %w", err)
	}
	return checkAffectedRows(result, ErrSettlementNotFound)
}

func (r *postgresSettlementRepository) GetByTournamentID(ctx context.Context, tournamentID int) (*models.SettlementRecord, error) {
	query := `
		SELECT tournament_id, pool, paid_out, organizer_remainder, settled_by, created_at
		FROM tournament_settlements
		WHERE tournament_id = $1`

	rec := &models.SettlementRecord{}
	err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(
		&rec.TournamentID, &rec.Pool, &rec.PaidOut, &rec.OrganizerRemainder, &rec.SettledBy, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return rec, nil
}
