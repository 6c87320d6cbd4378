package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/svxarena/tourneyzone/models"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionNotProcessing = errors.New("transaction is not processing")
	ErrExternalRefConflict      = errors.New("external reference already used")
	ErrTransactionAccountFK     = errors.New("transaction account does not exist")
)

const defaultTransactionLimit = 50

type TransactionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tx *models.LedgerTransaction) error
	GetForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.LedgerTransaction, error)
	GetCreditByExternalRefForUpdate(ctx context.Context, exec SQLExecutor, ref string) (*models.LedgerTransaction, error)
	MarkDone(ctx context.Context, exec SQLExecutor, id uuid.UUID, balanceAfter *int64, externalRef *string) error
	// List returns rows newest first. A nil accountID lists across all accounts.
	List(ctx context.Context, accountID *int, filter models.TransactionFilter) ([]models.LedgerTransaction, error)
	// DerivedBalance recomputes the balance projection from the ledger rows.
	DerivedBalance(ctx context.Context, accountID int) (int64, error)
}

type postgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) TransactionRepository {
	return &postgresTransactionRepository{db: db}
}

func (r *postgresTransactionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const transactionColumns = `t.id, t.account_id, t.amount, t.direction, t.status, t.source, t.tournament_id,
		t.external_ref, t.upi_id, t.balance_after, t.created_at, t.completed_at`

func (r *postgresTransactionRepository) Create(ctx context.Context, exec SQLExecutor, tx *models.LedgerTransaction) error {
	query := `
		INSERT INTO wallet_transactions
			(id, account_id, amount, direction, status, source, tournament_id, external_ref, upi_id, balance_after, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		tx.ID,
		tx.AccountID,
		tx.Amount,
		tx.Direction,
		tx.Status,
		tx.Source,
		tx.TournamentID,
		tx.ExternalRef,
		tx.UPIID,
		tx.BalanceAfter,
		tx.CompletedAt,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return handleTransactionError(err)
	}
	return nil
}

func (r *postgresTransactionRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id uuid.UUID) (*models.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions t WHERE t.id = $1 FOR UPDATE`
	return scanTransaction(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresTransactionRepository) GetCreditByExternalRefForUpdate(ctx context.Context, exec SQLExecutor, ref string) (*models.LedgerTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM wallet_transactions t
		WHERE t.external_ref = $1 AND t.direction = 'credit'
		FOR UPDATE`
	return scanTransaction(r.getExecutor(exec).QueryRowContext(ctx, query, ref))
}

func (r *postgresTransactionRepository) MarkDone(ctx context.Context, exec SQLExecutor, id uuid.UUID, balanceAfter *int64, externalRef *string) error {
	query := `
		UPDATE wallet_transactions SET
			status = 'done',
			completed_at = NOW(),
			balance_after = COALESCE($2, balance_after),
			external_ref = COALESCE($3, external_ref)
		WHERE id = $1 AND status = 'processing'`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, id, balanceAfter, externalRef)
	if err != nil {
		return handleTransactionError(err)
	}
	return checkAffectedRows(result, ErrTransactionNotProcessing)
}

func (r *postgresTransactionRepository) List(ctx context.Context, accountID *int, filter models.TransactionFilter) ([]models.LedgerTransaction, error) {
	var args argList
	var where []string

	if accountID != nil {
		where = append(where, "t.account_id = "+args.next(*accountID))
	}
	if filter.Direction != nil {
		where = append(where, "t.direction = "+args.next(*filter.Direction))
	}
	if filter.Status != nil {
		where = append(where, "t.status = "+args.next(*filter.Status))
	}
	if filter.Source != nil {
		where = append(where, "t.source = "+args.next(*filter.Source))
	}
	if filter.TournamentID != nil {
		where = append(where, "t.tournament_id = "+args.next(*filter.TournamentID))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + transactionColumns + `, u.username
		FROM wallet_transactions t
		JOIN users u ON u.id = t.account_id`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY t.created_at DESC, t.id")
	sb.WriteString(" LIMIT " + args.next(limit))
	sb.WriteString(" OFFSET " + args.next(filter.Offset))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]models.LedgerTransaction, 0)
	for rows.Next() {
		var tx models.LedgerTransaction
		if err := rows.Scan(
			&tx.ID, &tx.AccountID, &tx.Amount, &tx.Direction, &tx.Status, &tx.Source, &tx.TournamentID,
			&tx.ExternalRef, &tx.UPIID, &tx.BalanceAfter, &tx.CreatedAt, &tx.CompletedAt,
			&tx.Username,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *postgresTransactionRepository) DerivedBalance(ctx context.Context, accountID int) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE
			WHEN direction = 'credit' AND status = 'done' THEN amount
			WHEN direction = 'debit' THEN -amount
			ELSE 0 END), 0)
		FROM wallet_transactions
		WHERE account_id = $1`

	var derived int64
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&derived); err != nil {
		return 0, fmt.Errorf("failed to derive balance for account %d: %w", accountID, err)
	}
	return derived, nil
}

func scanTransaction(row *sql.Row) (*models.LedgerTransaction, error) {
	tx := &models.LedgerTransaction{}
	err := row.Scan(
		&tx.ID, &tx.AccountID, &tx.Amount, &tx.Direction, &tx.Status, &tx.Source, &tx.TournamentID,
		&tx.ExternalRef, &tx.UPIID, &tx.BalanceAfter, &tx.CreatedAt, &tx.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return tx, nil
}

func handleTransactionError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "wallet_transactions_credit_ref_key" {
				return ErrExternalRefConflict
			}
		case "23503":
			if pqErr.Constraint == "wallet_transactions_account_id_fkey" {
				return ErrTransactionAccountFK
			}
		}
	}
	return fmt.Errorf("transaction query failed: %w", err)
}
