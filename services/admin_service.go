package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/svxarena/tourneyzone/metrics"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
)

const bulkLogListLimit = 20

type AdminService interface {
	PendingTransactions(ctx context.Context, direction *models.Direction) ([]models.LedgerTransaction, error)
	VerifyDeposit(ctx context.Context, adminID int, transactionID uuid.UUID, amount int64) (*models.LedgerTransaction, error)
	BulkReconcileDeposits(ctx context.Context, adminID int, entries []models.BulkDepositEntry) (*models.BulkDepositLog, error)
	ListBulkDepositLogs(ctx context.Context) ([]models.BulkDepositLog, error)
	CompleteWithdrawal(ctx context.Context, adminID int, transactionID uuid.UUID, payoutRef string) (*models.LedgerTransaction, error)
	SetUserStatus(ctx context.Context, adminID, userID int, status models.UserStatus) error
	ReconcileAccount(ctx context.Context, userID int) (*models.Reconciliation, error)
}

type adminService struct {
	userRepo repositories.UserRepository
	bulkRepo repositories.BulkDepositRepository
	ledger   LedgerService
	logger   *slog.Logger
}

func NewAdminService(
	userRepo repositories.UserRepository,
	bulkRepo repositories.BulkDepositRepository,
	ledger LedgerService,
	logger *slog.Logger,
) AdminService {
	return &adminService{
		userRepo: userRepo,
		bulkRepo: bulkRepo,
		ledger:   ledger,
		logger:   logger.With(slog.String("component", "admin")),
	}
}

func (s *adminService) PendingTransactions(ctx context.Context, direction *models.Direction) ([]models.LedgerTransaction, error) {
	return s.ledger.ListPending(ctx, direction, dashboardListLimit)
}

func (s *adminService) VerifyDeposit(ctx context.Context, adminID int, transactionID uuid.UUID, amount int64) (*models.LedgerTransaction, error) {
	rec, err := s.ledger.VerifyPendingTransaction(ctx, transactionID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "deposit verified",
		slog.Int("admin_id", adminID), slog.String("tx_id", rec.ID.String()), slog.Int("account_id", rec.AccountID))
	return rec, nil
}

// BulkReconcileDeposits matches each bank statement line to exactly one
// processing deposit claim. Entries are independent: a failed line never
// blocks the others. The outcome is persisted as a BulkDepositLog.
func (s *adminService) BulkReconcileDeposits(ctx context.Context, adminID int, entries []models.BulkDepositEntry) (*models.BulkDepositLog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to process", ErrValidationFailed)
	}

	batch := &models.BulkDepositLog{
		ID:      uuid.New(),
		AdminID: adminID,
		Results: make([]models.BulkDepositResult, 0, len(entries)),
	}

	for _, entry := range entries {
		result := models.BulkDepositResult{
			UTR:    strings.TrimSpace(entry.UTR),
			Amount: entry.Amount,
		}

		rec, err := s.ledger.VerifyByExternalRef(ctx, entry.UTR, entry.Amount)
		if rec != nil {
			result.Username = s.username(ctx, rec.AccountID)
		}
		if err != nil {
			result.Status = models.BulkResultFailed
			result.Message = bulkFailureMessage(err, rec)
			batch.Failed++
		} else {
			result.Status = models.BulkResultSuccess
			result.Message = fmt.Sprintf("credited %d to %s", rec.Amount, result.Username)
			batch.Processed++
		}
		metrics.RecordBulkDepositEntry(string(result.Status))
		batch.Results = append(batch.Results, result)
	}

	if err := s.bulkRepo.Create(ctx, batch); err != nil {
		// The credits above are already committed; losing the log must not hide them.
		s.logger.ErrorContext(ctx, "failed to persist bulk deposit log",
			slog.String("batch_id", batch.ID.String()), slog.Any("error", err))
		return batch, err
	}

	s.logger.InfoContext(ctx, "bulk deposit reconciliation finished",
		slog.String("batch_id", batch.ID.String()),
		slog.Int("admin_id", adminID),
		slog.Int("processed", batch.Processed),
		slog.Int("failed", batch.Failed),
	)
	return batch, nil
}

func bulkFailureMessage(err error, rec *models.LedgerTransaction) string {
	switch {
	case errors.Is(err, ErrTransactionNotFound), errors.Is(err, ErrAlreadyProcessed):
		return "not found or already processed"
	case errors.Is(err, ErrAmountMismatch):
		if rec != nil {
			return fmt.Sprintf("amount mismatch: claim is %d", rec.Amount)
		}
		return "amount mismatch"
	case errors.Is(err, ErrValidationFailed):
		return "UTR is required"
	case errors.Is(err, ErrAccountNotFound):
		return "account not found"
	default:
		return "internal error"
	}
}

func (s *adminService) username(ctx context.Context, accountID int) string {
	user, err := s.userRepo.GetByID(ctx, nil, accountID)
	if err != nil {
		return ""
	}
	return user.Username
}

func (s *adminService) ListBulkDepositLogs(ctx context.Context) ([]models.BulkDepositLog, error) {
	return s.bulkRepo.ListRecent(ctx, bulkLogListLimit)
}

func (s *adminService) CompleteWithdrawal(ctx context.Context, adminID int, transactionID uuid.UUID, payoutRef string) (*models.LedgerTransaction, error) {
	rec, err := s.ledger.CompleteWithdrawal(ctx, transactionID, payoutRef)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "withdrawal completed",
		slog.Int("admin_id", adminID), slog.String("tx_id", rec.ID.String()), slog.Int("account_id", rec.AccountID))
	return rec, nil
}

func (s *adminService) SetUserStatus(ctx context.Context, adminID, userID int, status models.UserStatus) error {
	if status != models.UserStatusActive && status != models.UserStatusSuspended {
		return fmt.Errorf("%w: unknown status %q", ErrValidationFailed, status)
	}
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if user.Role == models.RoleAdmin {
		return ErrForbiddenOperation
	}

	if err := s.userRepo.SetStatus(ctx, userID, status); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	s.logger.InfoContext(ctx, "user status changed",
		slog.Int("admin_id", adminID), slog.Int("user_id", userID), slog.String("status", string(status)))
	return nil
}

func (s *adminService) ReconcileAccount(ctx context.Context, userID int) (*models.Reconciliation, error) {
	return s.ledger.ReconcileAccount(ctx, userID)
}
