package services

import (
	"context"
	"fmt"

	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
	"golang.org/x/sync/errgroup"
)

const dashboardListLimit = 100

type DashboardService interface {
	GetWalletDashboard(ctx context.Context) (*models.WalletDashboard, error)
}

type dashboardService struct {
	txRepo repositories.TransactionRepository
}

func NewDashboardService(txRepo repositories.TransactionRepository) DashboardService {
	return &dashboardService{txRepo: txRepo}
}

// GetWalletDashboard lists deposits and withdrawals filed through UPI, split by status.
func (s *dashboardService) GetWalletDashboard(ctx context.Context) (*models.WalletDashboard, error) {
	dash := &models.WalletDashboard{}

	lists := []struct {
		dst       *[]models.LedgerTransaction
		direction models.Direction
		status    models.TxStatus
		source    string
	}{
		{&dash.PendingDeposits, models.DirectionCredit, models.TxStatusProcessing, models.SourceUPIDeposit},
		{&dash.DoneDeposits, models.DirectionCredit, models.TxStatusDone, models.SourceUPIDeposit},
		{&dash.PendingWithdrawals, models.DirectionDebit, models.TxStatusProcessing, models.SourceUPIWithdrawal},
		{&dash.DoneWithdrawals, models.DirectionDebit, models.TxStatusDone, models.SourceUPIWithdrawal},
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, l := range lists {
		l := l
		g.Go(func() error {
			filter := models.TransactionFilter{
				Direction: &l.direction,
				Status:    &l.status,
				Source:    &l.source,
				Limit:     dashboardListLimit,
			}
			txs, err := s.txRepo.List(gCtx, nil, filter)
			if err != nil {
				return fmt.Errorf("failed to load %s %s transactions: %w", l.status, l.direction, err)
			}
			*l.dst = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dash, nil
}
