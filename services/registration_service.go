package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/realtime"
	"github.com/svxarena/tourneyzone/repositories"
)

type RegisterTeamInput struct {
	TeamName  string `json:"team_name" validate:"required,max=60"`
	PayerName string `json:"payer_name" validate:"required,max=80"`
	UTR       string `json:"utr" validate:"required,max=64"`
	Amount    int64  `json:"amount" validate:"gte=0"`
}

type RegistrationService interface {
	Register(ctx context.Context, playerID, tournamentID int, input RegisterTeamInput) (*models.Registration, error)
	ListMyRegistrations(ctx context.Context, playerID int) ([]models.Registration, error)
}

type registrationService struct {
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	events           EventBroadcaster
	logger           *slog.Logger
	now              func() time.Time
}

func NewRegistrationService(
	tournamentRepo repositories.TournamentRepository,
	registrationRepo repositories.RegistrationRepository,
	events EventBroadcaster,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		tournamentRepo:   tournamentRepo,
		registrationRepo: registrationRepo,
		events:           events,
		logger:           logger.With(slog.String("component", "registrations")),
		now:              time.Now,
	}
}

// Register enters the player's team into a tournament. The entry fee is paid
// outside the wallet and checked by the organizer against the UTR.
func (s *registrationService) Register(ctx context.Context, playerID, tournamentID int, input RegisterTeamInput) (*models.Registration, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if !s.now().Before(t.StartDate) || t.Settled {
		return nil, ErrRegistrationClosed
	}
	if input.Amount != t.EntryFee {
		return nil, ErrEntryFeeMismatch
	}
	if t.AcceptedTeams >= t.TeamLimit {
		return nil, ErrTournamentFull
	}

	reg := &models.Registration{
		TournamentID: tournamentID,
		LeaderID:     playerID,
		TeamName:     strings.TrimSpace(input.TeamName),
		PayerName:    strings.TrimSpace(input.PayerName),
		UTR:          strings.TrimSpace(input.UTR),
		Amount:       input.Amount,
	}
	if err := s.registrationRepo.Create(ctx, reg); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRegistrationConflict):
			return nil, ErrRegistrationConflict
		case errors.Is(err, repositories.ErrRegistrationInvalidRef):
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "team registered",
		slog.Int("tournament_id", tournamentID), slog.Int("registration_id", reg.ID), slog.Int("leader_id", playerID))
	s.events.BroadcastToTournament(tournamentID, realtime.EventRegistrationUpdated, map[string]interface{}{
		"tournament_id":   tournamentID,
		"registration_id": reg.ID,
		"team_name":       reg.TeamName,
		"status":          reg.Status,
	})
	return reg, nil
}

func (s *registrationService) ListMyRegistrations(ctx context.Context, playerID int) ([]models.Registration, error) {
	return s.registrationRepo.ListByLeader(ctx, playerID)
}
