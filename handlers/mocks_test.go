package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
	"github.com/svxarena/tourneyzone/services"
)

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, input)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, input services.LoginInput) (*models.User, error) {
	args := m.Called(ctx, input)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type mockWalletService struct{ mock.Mock }

func (m *mockWalletService) GetWallet(ctx context.Context, userID int) (*services.WalletSummary, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*services.WalletSummary)
	return s, args.Error(1)
}

func (m *mockWalletService) History(ctx context.Context, userID int, filter models.TransactionFilter) ([]models.LedgerTransaction, error) {
	args := m.Called(ctx, userID, filter)
	txs, _ := args.Get(0).([]models.LedgerTransaction)
	return txs, args.Error(1)
}

func (m *mockWalletService) RequestDeposit(ctx context.Context, userID int, input services.DepositInput) (uuid.UUID, error) {
	args := m.Called(ctx, userID, input)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockWalletService) RequestWithdrawal(ctx context.Context, userID int, input services.WithdrawalInput) (uuid.UUID, error) {
	args := m.Called(ctx, userID, input)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockWalletService) Reconcile(ctx context.Context, userID int) (*models.Reconciliation, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(*models.Reconciliation)
	return rec, args.Error(1)
}

type mockTournamentService struct{ mock.Mock }

func (m *mockTournamentService) CreateTournament(ctx context.Context, organizerID int, input services.CreateTournamentInput) (*models.Tournament, error) {
	args := m.Called(ctx, organizerID, input)
	t, _ := args.Get(0).(*models.Tournament)
	return t, args.Error(1)
}

func (m *mockTournamentService) GetTournament(ctx context.Context, id int, viewerID int, viewerRole models.UserRole) (*models.Tournament, error) {
	args := m.Called(ctx, id, viewerID, viewerRole)
	t, _ := args.Get(0).(*models.Tournament)
	return t, args.Error(1)
}

func (m *mockTournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	args := m.Called(ctx, filter)
	ts, _ := args.Get(0).([]models.Tournament)
	return ts, args.Error(1)
}

func (m *mockTournamentService) UpdateTournament(ctx context.Context, organizerID, id int, input services.UpdateTournamentInput) (*models.Tournament, error) {
	args := m.Called(ctx, organizerID, id, input)
	t, _ := args.Get(0).(*models.Tournament)
	return t, args.Error(1)
}

func (m *mockTournamentService) DeleteTournament(ctx context.Context, actorID int, actorRole models.UserRole, id int) error {
	return m.Called(ctx, actorID, actorRole, id).Error(0)
}

func (m *mockTournamentService) ApproveRegistration(ctx context.Context, organizerID, tournamentID, registrationID int) (*models.Registration, error) {
	args := m.Called(ctx, organizerID, tournamentID, registrationID)
	reg, _ := args.Get(0).(*models.Registration)
	return reg, args.Error(1)
}

func (m *mockTournamentService) RejectRegistration(ctx context.Context, organizerID, tournamentID, registrationID int, reason string) (*models.Registration, error) {
	args := m.Called(ctx, organizerID, tournamentID, registrationID, reason)
	reg, _ := args.Get(0).(*models.Registration)
	return reg, args.Error(1)
}

func (m *mockTournamentService) ShareRoomDetails(ctx context.Context, organizerID, tournamentID int, input services.RoomDetailsInput) (int, error) {
	args := m.Called(ctx, organizerID, tournamentID, input)
	return args.Int(0), args.Error(1)
}

func (m *mockTournamentService) SubmitResults(ctx context.Context, organizerID, tournamentID int, input services.SubmitResultsInput) (*models.SettlementRecord, error) {
	args := m.Called(ctx, organizerID, tournamentID, input)
	rec, _ := args.Get(0).(*models.SettlementRecord)
	return rec, args.Error(1)
}

func (m *mockTournamentService) ListResults(ctx context.Context, limit int) ([]models.Tournament, error) {
	args := m.Called(ctx, limit)
	ts, _ := args.Get(0).([]models.Tournament)
	return ts, args.Error(1)
}

type mockRegistrationService struct{ mock.Mock }

func (m *mockRegistrationService) Register(ctx context.Context, playerID, tournamentID int, input services.RegisterTeamInput) (*models.Registration, error) {
	args := m.Called(ctx, playerID, tournamentID, input)
	reg, _ := args.Get(0).(*models.Registration)
	return reg, args.Error(1)
}

func (m *mockRegistrationService) ListMyRegistrations(ctx context.Context, playerID int) ([]models.Registration, error) {
	args := m.Called(ctx, playerID)
	regs, _ := args.Get(0).([]models.Registration)
	return regs, args.Error(1)
}

type mockAdminService struct{ mock.Mock }

func (m *mockAdminService) PendingTransactions(ctx context.Context, direction *models.Direction) ([]models.LedgerTransaction, error) {
	args := m.Called(ctx, direction)
	txs, _ := args.Get(0).([]models.LedgerTransaction)
	return txs, args.Error(1)
}

func (m *mockAdminService) VerifyDeposit(ctx context.Context, adminID int, transactionID uuid.UUID, amount int64) (*models.LedgerTransaction, error) {
	args := m.Called(ctx, adminID, transactionID, amount)
	tx, _ := args.Get(0).(*models.LedgerTransaction)
	return tx, args.Error(1)
}

func (m *mockAdminService) BulkReconcileDeposits(ctx context.Context, adminID int, entries []models.BulkDepositEntry) (*models.BulkDepositLog, error) {
	args := m.Called(ctx, adminID, entries)
	batch, _ := args.Get(0).(*models.BulkDepositLog)
	return batch, args.Error(1)
}

func (m *mockAdminService) ListBulkDepositLogs(ctx context.Context) ([]models.BulkDepositLog, error) {
	args := m.Called(ctx)
	logs, _ := args.Get(0).([]models.BulkDepositLog)
	return logs, args.Error(1)
}

func (m *mockAdminService) CompleteWithdrawal(ctx context.Context, adminID int, transactionID uuid.UUID, payoutRef string) (*models.LedgerTransaction, error) {
	args := m.Called(ctx, adminID, transactionID, payoutRef)
	tx, _ := args.Get(0).(*models.LedgerTransaction)
	return tx, args.Error(1)
}

func (m *mockAdminService) SetUserStatus(ctx context.Context, adminID, userID int, status models.UserStatus) error {
	return m.Called(ctx, adminID, userID, status).Error(0)
}

func (m *mockAdminService) ReconcileAccount(ctx context.Context, userID int) (*models.Reconciliation, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(*models.Reconciliation)
	return rec, args.Error(1)
}

type mockDashboardService struct{ mock.Mock }

func (m *mockDashboardService) GetWalletDashboard(ctx context.Context) (*models.WalletDashboard, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).(*models.WalletDashboard)
	return d, args.Error(1)
}
