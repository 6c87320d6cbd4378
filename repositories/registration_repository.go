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
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrRegistrationConflict   = errors.New("player already registered for this tournament")
	ErrRegistrationInvalidRef = errors.New("registration references a missing tournament or user")
	ErrRegistrationDecided    = errors.New("registration already decided")
)

type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error)
	// Decide moves a pending registration to accepted or rejected.
	Decide(ctx context.Context, exec SQLExecutor, id int, status models.RegistrationStatus, reason *string) error
	CountAccepted(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// ListByTournament returns registrations with their leaders, accepted ones in acceptance order.
	ListByTournament(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]models.Registration, error)
	ListByLeader(ctx context.Context, leaderID int) ([]models.Registration, error)
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const registrationColumns = `g.id, g.tournament_id, g.leader_id, g.team_name, g.payer_name, g.utr, g.amount,
		g.status, g.rejection_reason, g.created_at, g.decided_at`

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (tournament_id, leader_id, team_name, payer_name, utr, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at`

	err := r.db.QueryRowContext(ctx, query,
		reg.TournamentID, reg.LeaderID, reg.TeamName, reg.PayerName, reg.UTR, reg.Amount,
	).Scan(&reg.ID, &reg.Status, &reg.CreatedAt)
	if err != nil {
		return handleRegistrationError(err)
	}
	return nil
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations g WHERE g.id = $1`

	reg := &models.Registration{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.TournamentID, &reg.LeaderID, &reg.TeamName, &reg.PayerName, &reg.UTR, &reg.Amount,
		&reg.Status, &reg.RejectionReason, &reg.CreatedAt, &reg.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) Decide(ctx context.Context, exec SQLExecutor, id int, status models.RegistrationStatus, reason *string) error {
	query := `
		UPDATE registrations SET status = $1, rejection_reason = $2, decided_at = NOW()
		WHERE id = $3 AND status = 'pending'`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, reason, id)
	if err != nil {
		return handleRegistrationError(err)
	}
	return checkAffectedRows(result, ErrRegistrationDecided)
}

func (r *postgresRegistrationRepository) CountAccepted(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM registrations WHERE tournament_id = $1 AND status = 'accepted'`
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accepted registrations: %w", err)
	}
	return count, nil
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `, u.username, u.email
		FROM registrations g
		JOIN users u ON u.id = g.leader_id
		WHERE g.tournament_id = $1`
	args := []interface{}{tournamentID}
	if status != nil {
		query += ` AND g.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY g.decided_at ASC NULLS LAST, g.id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		leader := &models.User{}
		if err := rows.Scan(
			&reg.ID, &reg.TournamentID, &reg.LeaderID, &reg.TeamName, &reg.PayerName, &reg.UTR, &reg.Amount,
			&reg.Status, &reg.RejectionReason, &reg.CreatedAt, &reg.DecidedAt,
			&leader.Username, &leader.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		leader.ID = reg.LeaderID
		reg.Leader = leader
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *postgresRegistrationRepository) ListByLeader(ctx context.Context, leaderID int) ([]models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `, t.name, t.game, t.start_date, t.end_date
		FROM registrations g
		JOIN tournaments t ON t.id = g.tournament_id
		WHERE g.leader_id = $1
		ORDER BY t.start_date DESC, g.id DESC`

	rows, err := r.db.QueryContext(ctx, query, leaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list player registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		t := &models.Tournament{}
		if err := rows.Scan(
			&reg.ID, &reg.TournamentID, &reg.LeaderID, &reg.TeamName, &reg.PayerName, &reg.UTR, &reg.Amount,
			&reg.Status, &reg.RejectionReason, &reg.CreatedAt, &reg.DecidedAt,
			&t.Name, &t.Game, &t.StartDate, &t.EndDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		t.ID = reg.TournamentID
		reg.Tournament = t
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return regs, nil
}

func handleRegistrationError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "registrations_tournament_leader_key" {
				return ErrRegistrationConflict
			}
		case "23503":
			return ErrRegistrationInvalidRef
		}
	}
	return fmt.Errorf("registration query failed: %w", err)
}
