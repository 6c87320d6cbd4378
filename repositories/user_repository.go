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
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailConflict    = errors.New("user email conflict")
	ErrUserUsernameConflict = errors.New("user username conflict")
	ErrUserUPIRequired      = errors.New("organizer upi id missing")
	ErrInsufficientBalance  = errors.New("insufficient balance")
)

type UserRepository interface {
	Create(ctx context.Context, exec SQLExecutor, user *models.User) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, exec SQLExecutor, username string) (*models.User, error)
	SetStatus(ctx context.Context, id int, status models.UserStatus) error

	// Credit and Debit change the stored balance and return the new value.
	// Debit never lets the balance go below zero.
	Credit(ctx context.Context, exec SQLExecutor, id int, amount int64) (int64, error)
	Debit(ctx context.Context, exec SQLExecutor, id int, amount int64) (int64, error)

	// Resolve and CreditsAllowed make the repository usable as an account directory.
	// CreditsAllowed takes a share lock on the row when exec is a transaction.
	Resolve(ctx context.Context, exec SQLExecutor, handle string) (int, error)
	CreditsAllowed(ctx context.Context, exec SQLExecutor, accountID int) (bool, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const userColumns = `id, username, email, password_hash, role, upi_id, status, balance, created_at`

func (r *postgresUserRepository) Create(ctx context.Context, exec SQLExecutor, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, role, upi_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, balance, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.UPIID,
	).Scan(&user.ID, &user.Status, &user.Balance, &user.CreatedAt)

	if err != nil {
		return handleUserError(err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *postgresUserRepository) GetByUsername(ctx context.Context, exec SQLExecutor, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.getExecutor(exec).QueryRowContext(ctx, query, username))
}

func (r *postgresUserRepository) SetStatus(ctx context.Context, id int, status models.UserStatus) error {
	query := `UPDATE users SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) Credit(ctx context.Context, exec SQLExecutor, id int, amount int64) (int64, error) {
	query := `UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance`

	var balance int64
	err := r.getExecutor(exec).QueryRowContext(ctx, query, amount, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit user %d: %w", id, err)
	}
	return balance, nil
}

func (r *postgresUserRepository) Debit(ctx context.Context, exec SQLExecutor, id int, amount int64) (int64, error) {
	executor := r.getExecutor(exec)
	query := `UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1 RETURNING balance`

	var balance int64
	err := executor.QueryRowContext(ctx, query, amount, id).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to debit user %d: %w", id, err)
	}

	// Zero rows: either the account is missing or the balance is too low.
	var exists bool
	if err := executor.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check user %d: %w", id, err)
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	return 0, ErrInsufficientBalance
}

func (r *postgresUserRepository) Resolve(ctx context.Context, exec SQLExecutor, handle string) (int, error) {
	var id int
	err := r.getExecutor(exec).QueryRowContext(ctx, `SELECT id FROM users WHERE username = $1`, handle).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to resolve handle %q: %w", handle, err)
	}
	return id, nil
}

func (r *postgresUserRepository) CreditsAllowed(ctx context.Context, exec SQLExecutor, accountID int) (bool, error) {
	var status models.UserStatus
	err := r.getExecutor(exec).QueryRowContext(ctx, `SELECT status FROM users WHERE id = $1 FOR SHARE`, accountID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to read status of user %d: %w", accountID, err)
	}
	return status == models.UserStatusActive, nil
}

func (r *postgresUserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.UPIID,
		&user.Status,
		&user.Balance,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

func handleUserError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_username_key":
				return ErrUserUsernameConflict
			}
		case "23514":
			if pqErr.Constraint == "users_organizer_upi_check" {
				return ErrUserUPIRequired
			}
		}
	}
	return fmt.Errorf("user query failed: %w", err)
}
