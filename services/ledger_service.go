package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/svxarena/tourneyzone/metrics"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
)

// AccountDirectory resolves public handles to wallet accounts. The ledger only
// reads from it, always on the transaction that applies the credits.
type AccountDirectory interface {
	Resolve(ctx context.Context, exec repositories.SQLExecutor, handle string) (int, error)
	CreditsAllowed(ctx context.Context, exec repositories.SQLExecutor, accountID int) (bool, error)
}

type ImmediateInput struct {
	AccountID    int
	Amount       int64
	Direction    models.Direction
	Source       string
	TournamentID *int
}

type PendingInput struct {
	AccountID   int
	Amount      int64
	Direction   models.Direction
	Source      string
	ExternalRef string
	UPIID       *string
}

type SettlementInput struct {
	TournamentID int
	EntryFee     int64
	TeamCount    int
	Plan         models.PayoutPlan
	// Winners maps each share name of Plan to an account handle.
	Winners   map[string]string
	SettledBy int
}

// LedgerService owns every balance mutation and ledger record.
type LedgerService interface {
	RecordImmediateTransaction(ctx context.Context, input ImmediateInput) (uuid.UUID, error)
	RecordImmediateTransactionTx(ctx context.Context, tx *sql.Tx, input ImmediateInput) (*models.LedgerTransaction, error)
	OpenPendingTransaction(ctx context.Context, input PendingInput) (uuid.UUID, error)
	VerifyPendingTransaction(ctx context.Context, transactionID uuid.UUID, matchAmount int64) (*models.LedgerTransaction, error)
	VerifyByExternalRef(ctx context.Context, externalRef string, matchAmount int64) (*models.LedgerTransaction, error)
	SettleTournamentPrizePool(ctx context.Context, input SettlementInput) (*models.SettlementRecord, error)
	SettleTournamentPrizePoolTx(ctx context.Context, tx *sql.Tx, input SettlementInput) (*models.SettlementRecord, error)
	CompleteWithdrawal(ctx context.Context, transactionID uuid.UUID, payoutRef string) (*models.LedgerTransaction, error)
	TransferFee(ctx context.Context, tx *sql.Tx, payerID int, amount int64, source string, tournamentID *int) error
	ListTransactions(ctx context.Context, accountID int, filter models.TransactionFilter) ([]models.LedgerTransaction, error)
	ListPending(ctx context.Context, direction *models.Direction, limit int) ([]models.LedgerTransaction, error)
	ReconcileAccount(ctx context.Context, accountID int) (*models.Reconciliation, error)
}

type ledgerService struct {
	db                *sql.DB
	userRepo          repositories.UserRepository
	txRepo            repositories.TransactionRepository
	settlementRepo    repositories.SettlementRepository
	directory         AccountDirectory
	platformAccountID int
	logger            *slog.Logger
	now               func() time.Time
	inTx              txRunner
}

func NewLedgerService(
	db *sql.DB,
	userRepo repositories.UserRepository,
	txRepo repositories.TransactionRepository,
	settlementRepo repositories.SettlementRepository,
	directory AccountDirectory,
	platformAccountID int,
	logger *slog.Logger,
) LedgerService {
	s := &ledgerService{
		db:                db,
		userRepo:          userRepo,
		txRepo:            txRepo,
		settlementRepo:    settlementRepo,
		directory:         directory,
		platformAccountID: platformAccountID,
		logger:            logger.With(slog.String("component", "ledger")),
		now:               time.Now,
	}
	s.inTx = func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		return withTx(ctx, s.db, s.logger, fn)
	}
	return s
}

func (s *ledgerService) RecordImmediateTransaction(ctx context.Context, input ImmediateInput) (uuid.UUID, error) {
	var rec *models.LedgerTransaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = s.RecordImmediateTransactionTx(ctx, tx, input)
		return err
	})
	if err != nil {
		s.logFailure(ctx, "record immediate transaction", err,
			slog.Int("account_id", input.AccountID), slog.Int64("amount", input.Amount), slog.String("direction", string(input.Direction)))
		return uuid.Nil, err
	}
	s.logApplied(ctx, rec)
	return rec.ID, nil
}

// RecordImmediateTransactionTx applies the balance change and writes a done
// row inside the caller's transaction. The caller commits and logs.
func (s *ledgerService) RecordImmediateTransactionTx(ctx context.Context, tx *sql.Tx, input ImmediateInput) (*models.LedgerTransaction, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, input.Amount)
	}
	if !input.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrValidationFailed, input.Direction)
	}

	balance, err := s.applyBalance(ctx, tx, input.AccountID, input.Direction, input.Amount)
	if err != nil {
		return nil, err
	}

	completedAt := s.now()
	rec := &models.LedgerTransaction{
		ID:           uuid.New(),
		AccountID:    input.AccountID,
		Amount:       input.Amount,
		Direction:    input.Direction,
		Status:       models.TxStatusDone,
		Source:       input.Source,
		TournamentID: input.TournamentID,
		BalanceAfter: &balance,
		CompletedAt:  &completedAt,
	}
	if err := s.txRepo.Create(ctx, tx, rec); err != nil {
		return nil, s.translateTxRepoError(err)
	}
	metrics.RecordLedgerTransaction(string(rec.Direction), string(rec.Status), true, rec.Amount)
	return rec, nil
}

func (s *ledgerService) OpenPendingTransaction(ctx context.Context, input PendingInput) (uuid.UUID, error) {
	if input.Amount <= 0 {
		return uuid.Nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, input.Amount)
	}
	if !input.Direction.Valid() {
		return uuid.Nil, fmt.Errorf("%w: unknown direction %q", ErrValidationFailed, input.Direction)
	}
	ref := strings.TrimSpace(input.ExternalRef)
	if input.Direction == models.DirectionCredit && ref == "" {
		return uuid.Nil, fmt.Errorf("%w: UTR is required for deposits", ErrValidationFailed)
	}

	rec := &models.LedgerTransaction{
		ID:        uuid.New(),
		AccountID: input.AccountID,
		Amount:    input.Amount,
		Direction: input.Direction,
		Status:    models.TxStatusProcessing,
		Source:    input.Source,
		UPIID:     input.UPIID,
	}
	if ref != "" {
		rec.ExternalRef = &ref
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// Withdrawals reserve the funds now. Deposit claims leave the balance alone.
		if input.Direction == models.DirectionDebit {
			balance, err := s.applyBalance(ctx, tx, input.AccountID, models.DirectionDebit, input.Amount)
			if err != nil {
				return err
			}
			rec.BalanceAfter = &balance
		} else if _, err := s.userRepo.GetByID(ctx, tx, input.AccountID); err != nil {
			return s.translateUserRepoError(err)
		}

		if err := s.txRepo.Create(ctx, tx, rec); err != nil {
			return s.translateTxRepoError(err)
		}
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "open pending transaction", err,
			slog.Int("account_id", input.AccountID), slog.Int64("amount", input.Amount), slog.String("direction", string(input.Direction)))
		return uuid.Nil, err
	}

	metrics.RecordLedgerTransaction(string(rec.Direction), string(rec.Status), rec.Direction == models.DirectionDebit, rec.Amount)
	s.logger.InfoContext(ctx, "pending transaction opened",
		slog.String("tx_id", rec.ID.String()),
		slog.Int("account_id", rec.AccountID),
		slog.Int64("amount", rec.Amount),
		slog.String("direction", string(rec.Direction)),
	)
	return rec.ID, nil
}

func (s *ledgerService) VerifyPendingTransaction(ctx context.Context, transactionID uuid.UUID, matchAmount int64) (*models.LedgerTransaction, error) {
	var rec *models.LedgerTransaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.txRepo.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return s.translateTxRepoError(err)
		}
		rec = locked
		return s.completeCredit(ctx, tx, rec, matchAmount)
	})
	if err != nil {
		s.logFailure(ctx, "verify pending transaction", err,
			slog.String("tx_id", transactionID.String()), slog.Int64("amount", matchAmount))
		return nil, err
	}
	s.logApplied(ctx, rec)
	return rec, nil
}

func (s *ledgerService) VerifyByExternalRef(ctx context.Context, externalRef string, matchAmount int64) (*models.LedgerTransaction, error) {
	ref := strings.TrimSpace(externalRef)
	if ref == "" {
		return nil, fmt.Errorf("%w: UTR is required", ErrValidationFailed)
	}

	var rec *models.LedgerTransaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.txRepo.GetCreditByExternalRefForUpdate(ctx, tx, ref)
		if err != nil {
			return s.translateTxRepoError(err)
		}
		rec = locked
		return s.completeCredit(ctx, tx, rec, matchAmount)
	})
	if err != nil {
		s.logFailure(ctx, "verify by external ref", err, slog.String("external_ref", ref), slog.Int64("amount", matchAmount))
		return rec, err
	}
	s.logApplied(ctx, rec)
	return rec, nil
}

// completeCredit finishes a locked processing credit. The row must already be
// locked by the caller's transaction.
func (s *ledgerService) completeCredit(ctx context.Context, tx *sql.Tx, rec *models.LedgerTransaction, matchAmount int64) error {
	if rec.Status == models.TxStatusDone {
		return ErrAlreadyProcessed
	}
	if rec.Direction != models.DirectionCredit {
		return ErrNotACredit
	}
	if rec.Amount != matchAmount {
		return fmt.Errorf("%w: expected %d, got %d", ErrAmountMismatch, rec.Amount, matchAmount)
	}

	balance, err := s.applyBalance(ctx, tx, rec.AccountID, models.DirectionCredit, rec.Amount)
	if err != nil {
		return err
	}
	if err := s.txRepo.MarkDone(ctx, tx, rec.ID, &balance, nil); err != nil {
		return s.translateTxRepoError(err)
	}

	completedAt := s.now()
	rec.Status = models.TxStatusDone
	rec.BalanceAfter = &balance
	rec.CompletedAt = &completedAt
	metrics.RecordLedgerTransaction(string(rec.Direction), string(rec.Status), true, rec.Amount)
	return nil
}

func (s *ledgerService) CompleteWithdrawal(ctx context.Context, transactionID uuid.UUID, payoutRef string) (*models.LedgerTransaction, error) {
	var rec *models.LedgerTransaction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.txRepo.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return s.translateTxRepoError(err)
		}
		if locked.Status == models.TxStatusDone {
			return ErrAlreadyProcessed
		}
		if locked.Direction != models.DirectionDebit {
			return ErrNotADebit
		}

		var ref *string
		if trimmed := strings.TrimSpace(payoutRef); trimmed != "" {
			ref = &trimmed
		}
		if err := s.txRepo.MarkDone(ctx, tx, locked.ID, nil, ref); err != nil {
			return s.translateTxRepoError(err)
		}

		completedAt := s.now()
		locked.Status = models.TxStatusDone
		locked.CompletedAt = &completedAt
		if ref != nil {
			locked.ExternalRef = ref
		}
		rec = locked
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "complete withdrawal", err, slog.String("tx_id", transactionID.String()))
		return nil, err
	}

	// The balance was already reduced when the withdrawal was opened.
	metrics.RecordLedgerTransaction(string(rec.Direction), string(rec.Status), false, rec.Amount)
	s.logApplied(ctx, rec)
	return rec, nil
}

func (s *ledgerService) TransferFee(ctx context.Context, tx *sql.Tx, payerID int, amount int64, source string, tournamentID *int) error {
	if amount == 0 {
		return nil
	}
	if _, err := s.RecordImmediateTransactionTx(ctx, tx, ImmediateInput{
		AccountID:    payerID,
		Amount:       amount,
		Direction:    models.DirectionDebit,
		Source:       source,
		TournamentID: tournamentID,
	}); err != nil {
		return err
	}
	if _, err := s.RecordImmediateTransactionTx(ctx, tx, ImmediateInput{
		AccountID:    s.platformAccountID,
		Amount:       amount,
		Direction:    models.DirectionCredit,
		Source:       models.SourcePlatformFee,
		TournamentID: tournamentID,
	}); err != nil {
		return fmt.Errorf("failed to credit platform account: %w", err)
	}
	return nil
}

func (s *ledgerService) SettleTournamentPrizePool(ctx context.Context, input SettlementInput) (*models.SettlementRecord, error) {
	var rec *models.SettlementRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = s.SettleTournamentPrizePoolTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SettleTournamentPrizePoolTx pays out the prize pool inside the caller's
// transaction. Every winner is resolved before the first credit, so an error
// from any step leaves nothing to undo except what the rollback removes.
func (s *ledgerService) SettleTournamentPrizePoolTx(ctx context.Context, tx *sql.Tx, input SettlementInput) (rec *models.SettlementRecord, err error) {
	defer func() {
		switch {
		case err == nil:
			metrics.RecordSettlement("settled")
		case errors.Is(err, ErrAlreadySettled):
			metrics.RecordSettlement("already_settled")
		default:
			metrics.RecordSettlement("failed")
		}
		if err != nil {
			s.logFailure(ctx, "settle tournament prize pool", err, slog.Int("tournament_id", input.TournamentID))
		}
	}()

	pool, err := prizePool(input.EntryFee, input.TeamCount)
	if err != nil {
		return nil, err
	}
	shares, remainder, err := computePayouts(pool, input.Plan)
	if err != nil {
		return nil, err
	}

	rec = &models.SettlementRecord{
		TournamentID: input.TournamentID,
		Pool:         pool,
		SettledBy:    input.SettledBy,
	}
	if err := s.settlementRepo.Insert(ctx, tx, rec); err != nil {
		if errors.Is(err, repositories.ErrSettlementExists) {
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("failed to claim settlement marker: %w", err)
	}

	payouts := make([]models.SettlementPayout, 0, len(shares))
	for _, share := range shares {
		handle, ok := input.Winners[share.Name]
		if !ok || strings.TrimSpace(handle) == "" {
			return nil, fmt.Errorf("%w: no winner given for share %q", ErrAccountNotFound, share.Name)
		}
		accountID, err := s.directory.Resolve(ctx, tx, handle)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) || errors.Is(err, ErrAccountNotFound) {
				return nil, fmt.Errorf("%w: %q (%s)", ErrAccountNotFound, handle, share.Name)
			}
			return nil, fmt.Errorf("failed to resolve %q: %w", handle, err)
		}
		allowed, err := s.directory.CreditsAllowed(ctx, tx, accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to check account %d: %w", accountID, err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %q", ErrCreditsNotAllowed, handle)
		}
		payouts = append(payouts, models.SettlementPayout{
			Share:     share.Name,
			Handle:    handle,
			AccountID: accountID,
			Amount:    share.Amount,
		})
	}

	var paidOut int64
	tournamentID := input.TournamentID
	for i := range payouts {
		if payouts[i].Amount == 0 {
			continue
		}
		credit, err := s.RecordImmediateTransactionTx(ctx, tx, ImmediateInput{
			AccountID:    payouts[i].AccountID,
			Amount:       payouts[i].Amount,
			Direction:    models.DirectionCredit,
			Source:       models.SourcePrizePayout,
			TournamentID: &tournamentID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to credit %s share: %w", payouts[i].Share, err)
		}
		payouts[i].TransactionID = credit.ID
		paidOut += payouts[i].Amount
	}

	if err := s.settlementRepo.Finalize(ctx, tx, input.TournamentID, paidOut, remainder); err != nil {
		return nil, fmt.Errorf("failed to finalize settlement: %w", err)
	}

	rec.PaidOut = paidOut
	rec.OrganizerRemainder = remainder
	rec.Payouts = payouts

	s.logger.InfoContext(ctx, "tournament prize pool settled",
		slog.Int("tournament_id", input.TournamentID),
		slog.Int64("pool", pool),
		slog.Int64("paid_out", paidOut),
		slog.Int64("organizer_remainder", remainder),
	)
	return rec, nil
}

func (s *ledgerService) ListTransactions(ctx context.Context, accountID int, filter models.TransactionFilter) ([]models.LedgerTransaction, error) {
	txs, err := s.txRepo.List(ctx, &accountID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

func (s *ledgerService) ListPending(ctx context.Context, direction *models.Direction, limit int) ([]models.LedgerTransaction, error) {
	status := models.TxStatusProcessing
	txs, err := s.txRepo.List(ctx, nil, models.TransactionFilter{Direction: direction, Status: &status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	return txs, nil
}

func (s *ledgerService) ReconcileAccount(ctx context.Context, accountID int) (*models.Reconciliation, error) {
	user, err := s.userRepo.GetByID(ctx, nil, accountID)
	if err != nil {
		return nil, s.translateUserRepoError(err)
	}
	derived, err := s.txRepo.DerivedBalance(ctx, accountID)
	if err != nil {
		return nil, err
	}

	rec := &models.Reconciliation{
		AccountID: accountID,
		Stored:    user.Balance,
		Derived:   derived,
		Drift:     user.Balance - derived,
	}
	if rec.Drift != 0 {
		s.logger.WarnContext(ctx, "balance drift detected",
			slog.Int("account_id", accountID),
			slog.Int64("stored", rec.Stored),
			slog.Int64("derived", rec.Derived),
		)
	}
	return rec, nil
}

func (s *ledgerService) applyBalance(ctx context.Context, exec repositories.SQLExecutor, accountID int, direction models.Direction, amount int64) (int64, error) {
	var (
		balance int64
		err     error
	)
	if direction == models.DirectionCredit {
		balance, err = s.userRepo.Credit(ctx, exec, accountID, amount)
	} else {
		balance, err = s.userRepo.Debit(ctx, exec, accountID, amount)
	}
	if err != nil {
		return 0, s.translateUserRepoError(err)
	}
	return balance, nil
}

func (s *ledgerService) translateUserRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repositories.ErrInsufficientBalance):
		return ErrInsufficientFunds
	default:
		return err
	}
}

func (s *ledgerService) translateTxRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTransactionNotFound):
		return ErrTransactionNotFound
	case errors.Is(err, repositories.ErrTransactionNotProcessing):
		return ErrAlreadyProcessed
	case errors.Is(err, repositories.ErrExternalRefConflict):
		return ErrDuplicateExternalRef
	case errors.Is(err, repositories.ErrTransactionAccountFK):
		return ErrAccountNotFound
	default:
		return err
	}
}

func (s *ledgerService) logApplied(ctx context.Context, rec *models.LedgerTransaction) {
	attrs := []any{
		slog.String("tx_id", rec.ID.String()),
		slog.Int("account_id", rec.AccountID),
		slog.Int64("amount", rec.Amount),
		slog.String("direction", string(rec.Direction)),
		slog.String("source", rec.Source),
	}
	if rec.BalanceAfter != nil {
		attrs = append(attrs, slog.Int64("balance_after", *rec.BalanceAfter))
	}
	s.logger.InfoContext(ctx, "ledger transaction applied", attrs...)
}

func (s *ledgerService) logFailure(ctx context.Context, op string, err error, attrs ...any) {
	reason := rejectionReason(err)
	metrics.RecordLedgerRejection(reason)
	attrs = append(attrs, slog.String("op", op), slog.Any("error", err))
	if reason == "internal" {
		s.logger.ErrorContext(ctx, "ledger operation failed", attrs...)
		return
	}
	s.logger.WarnContext(ctx, "ledger operation rejected", attrs...)
}

func rejectionReason(err error) string {
	reasons := []struct {
		target error
		label  string
	}{
		{ErrInsufficientFunds, "insufficient_funds"},
		{ErrAmountMismatch, "amount_mismatch"},
		{ErrAlreadyProcessed, "already_processed"},
		{ErrAlreadySettled, "already_settled"},
		{ErrAccountNotFound, "account_not_found"},
		{ErrInvalidPayoutPlan, "invalid_payout_plan"},
		{ErrInvalidAmount, "invalid_amount"},
		{ErrTransactionNotFound, "transaction_not_found"},
		{ErrNotACredit, "not_a_credit"},
		{ErrNotADebit, "not_a_debit"},
		{ErrDuplicateExternalRef, "duplicate_external_ref"},
		{ErrCreditsNotAllowed, "credits_not_allowed"},
		{ErrValidationFailed, "validation"},
	}
	for _, r := range reasons {
		if errors.Is(err, r.target) {
			return r.label
		}
	}
	return "internal"
}
