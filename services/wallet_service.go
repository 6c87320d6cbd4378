package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
)

const walletRecentLimit = 10

type DepositInput struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	UTR    string `json:"utr" validate:"required,max=64"`
}

type WithdrawalInput struct {
	Amount int64   `json:"amount" validate:"gt=0"`
	UPIID  *string `json:"upi_id,omitempty"`
}

type WalletSummary struct {
	Balance int64                      `json:"balance"`
	UPIID   *string                    `json:"upi_id,omitempty"`
	Recent  []models.LedgerTransaction `json:"recent"`
}

type WalletService interface {
	GetWallet(ctx context.Context, userID int) (*WalletSummary, error)
	History(ctx context.Context, userID int, filter models.TransactionFilter) ([]models.LedgerTransaction, error)
	RequestDeposit(ctx context.Context, userID int, input DepositInput) (uuid.UUID, error)
	RequestWithdrawal(ctx context.Context, userID int, input WithdrawalInput) (uuid.UUID, error)
	Reconcile(ctx context.Context, userID int) (*models.Reconciliation, error)
}

type walletService struct {
	userRepo repositories.UserRepository
	ledger   LedgerService
}

func NewWalletService(userRepo repositories.UserRepository, ledger LedgerService) WalletService {
	return &walletService{userRepo: userRepo, ledger: ledger}
}

func (s *walletService) GetWallet(ctx context.Context, userID int) (*WalletSummary, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.ledger.ListTransactions(ctx, userID, models.TransactionFilter{Limit: walletRecentLimit})
	if err != nil {
		return nil, err
	}
	return &WalletSummary{Balance: user.Balance, UPIID: user.UPIID, Recent: recent}, nil
}

func (s *walletService) History(ctx context.Context, userID int, filter models.TransactionFilter) ([]models.LedgerTransaction, error) {
	return s.ledger.ListTransactions(ctx, userID, filter)
}

// RequestDeposit files a manual UPI deposit claim. The balance changes only
// after an admin verifies the UTR.
func (s *walletService) RequestDeposit(ctx context.Context, userID int, input DepositInput) (uuid.UUID, error) {
	return s.ledger.OpenPendingTransaction(ctx, PendingInput{
		AccountID:   userID,
		Amount:      input.Amount,
		Direction:   models.DirectionCredit,
		Source:      models.SourceUPIDeposit,
		ExternalRef: input.UTR,
	})
}

// RequestWithdrawal reserves the amount immediately and leaves the payout for
// an admin. The UPI id defaults to the one on the account.
func (s *walletService) RequestWithdrawal(ctx context.Context, userID int, input WithdrawalInput) (uuid.UUID, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}
	if user.IsSuspended() {
		return uuid.Nil, ErrAccountSuspended
	}

	upi := trimmedOrNil(input.UPIID)
	if upi == nil {
		upi = user.UPIID
	}
	if upi == nil || strings.TrimSpace(*upi) == "" {
		return uuid.Nil, ErrUPIRequired
	}

	return s.ledger.OpenPendingTransaction(ctx, PendingInput{
		AccountID: userID,
		Amount:    input.Amount,
		Direction: models.DirectionDebit,
		Source:    models.SourceUPIWithdrawal,
		UPIID:     upi,
	})
}

// Reconcile compares the stored balance with the one derived from the ledger.
func (s *walletService) Reconcile(ctx context.Context, userID int) (*models.Reconciliation, error) {
	return s.ledger.ReconcileAccount(ctx, userID)
}

func (s *walletService) user(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return user, nil
}
