package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/realtime"
	"github.com/svxarena/tourneyzone/repositories"
	"golang.org/x/sync/errgroup"
)

const defaultRejectionReason = "Invalid UTR"

// EventBroadcaster pushes tournament events to connected websocket clients.
type EventBroadcaster interface {
	BroadcastToTournament(tournamentID int, eventType string, payload interface{})
}

type CreateTournamentInput struct {
	Name        string                `json:"name" validate:"required,max=120"`
	Game        string                `json:"game" validate:"required,max=60"`
	Description *string               `json:"description,omitempty"`
	EntryFee    int64                 `json:"entry_fee" validate:"gte=0"`
	TeamLimit   int                   `json:"team_limit" validate:"required,gt=0"`
	Type        models.TournamentType `json:"type" validate:"required,oneof=regular scrim"`
	TimeSlot    *string               `json:"time_slot,omitempty"`
	StartDate   time.Time             `json:"start_date" validate:"required"`
	EndDate     time.Time             `json:"end_date" validate:"required"`
	MatchTime   *time.Time            `json:"match_time,omitempty"`
}

type UpdateTournamentInput struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,max=120"`
	Game        *string    `json:"game,omitempty" validate:"omitempty,max=60"`
	Description *string    `json:"description,omitempty"`
	EntryFee    *int64     `json:"entry_fee,omitempty" validate:"omitempty,gte=0"`
	TeamLimit   *int       `json:"team_limit,omitempty" validate:"omitempty,gt=0"`
	TimeSlot    *string    `json:"time_slot,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	MatchTime   *time.Time `json:"match_time,omitempty"`
}

type RoomDetailsInput struct {
	RoomID    string     `json:"room_id" validate:"required"`
	Password  string     `json:"password" validate:"required"`
	MatchTime *time.Time `json:"match_time,omitempty"`
}

type SubmitResultsInput struct {
	FirstPlace  string  `json:"first_place" validate:"required"`
	SecondPlace string  `json:"second_place" validate:"required"`
	ThirdPlace  string  `json:"third_place" validate:"required"`
	Notes       *string `json:"notes,omitempty"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetTournament(ctx context.Context, id int, viewerID int, viewerRole models.UserRole) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateTournament(ctx context.Context, organizerID, id int, input UpdateTournamentInput) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, actorID int, actorRole models.UserRole, id int) error

	ApproveRegistration(ctx context.Context, organizerID, tournamentID, registrationID int) (*models.Registration, error)
	RejectRegistration(ctx context.Context, organizerID, tournamentID, registrationID int, reason string) (*models.Registration, error)

	ShareRoomDetails(ctx context.Context, organizerID, tournamentID int, input RoomDetailsInput) (int, error)
	SubmitResults(ctx context.Context, organizerID, tournamentID int, input SubmitResultsInput) (*models.SettlementRecord, error)
	ListResults(ctx context.Context, limit int) ([]models.Tournament, error)
}

type tournamentService struct {
	db               *sql.DB
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	userRepo         repositories.UserRepository
	ledger           LedgerService
	email            EmailService
	events           EventBroadcaster
	listingFee       int64
	payoutPlan       models.PayoutPlan
	logger           *slog.Logger
	now              func() time.Time
}

func NewTournamentService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	registrationRepo repositories.RegistrationRepository,
	userRepo repositories.UserRepository,
	ledger LedgerService,
	email EmailService,
	events EventBroadcaster,
	listingFee int64,
	payoutPlan models.PayoutPlan,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		db:               db,
		tournamentRepo:   tournamentRepo,
		registrationRepo: registrationRepo,
		userRepo:         userRepo,
		ledger:           ledger,
		email:            email,
		events:           events,
		listingFee:       listingFee,
		payoutPlan:       payoutPlan,
		logger:           logger.With(slog.String("component", "tournaments")),
		now:              time.Now,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	if input.EndDate.Before(input.StartDate) {
		return nil, ErrTournamentInvalidDates
	}
	if input.EntryFee < 0 || input.TeamLimit <= 0 {
		return nil, fmt.Errorf("%w: entry fee must not be negative and team limit must be positive", ErrValidationFailed)
	}
	timeSlot := trimmedOrNil(input.TimeSlot)
	if input.Type == models.TournamentTypeScrim && timeSlot == nil {
		return nil, ErrTimeSlotRequired
	}

	t := &models.Tournament{
		Name:        strings.TrimSpace(input.Name),
		Game:        strings.TrimSpace(input.Game),
		Description: input.Description,
		OrganizerID: organizerID,
		EntryFee:    input.EntryFee,
		TeamLimit:   input.TeamLimit,
		Type:        input.Type,
		TimeSlot:    timeSlot,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		MatchTime:   input.MatchTime,
	}

	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if err := s.tournamentRepo.Create(ctx, tx, t); err != nil {
			return s.translateTournamentError(err)
		}
		return s.ledger.TransferFee(ctx, tx, organizerID, s.listingFee, models.SourceListingFee, &t.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID), slog.Int("organizer_id", organizerID), slog.Int64("listing_fee", s.listingFee))
	return t, nil
}

// GetTournament loads the tournament with its organizer. Registrations and the
// room password are only included for the owner and admins.
func (s *tournamentService) GetTournament(ctx context.Context, id int, viewerID int, viewerRole models.UserRole) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, s.translateTournamentError(err)
	}
	privileged := viewerRole == models.RoleAdmin || (viewerID != 0 && viewerID == t.OrganizerID)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		organizer, err := s.userRepo.GetByID(gCtx, nil, t.OrganizerID)
		if err != nil {
			s.logger.WarnContext(gCtx, "failed to load organizer", slog.Int("tournament_id", id), slog.Any("error", err))
			return nil
		}
		organizer.PasswordHash = ""
		organizer.Balance = 0
		t.Organizer = organizer
		return nil
	})
	if privileged {
		g.Go(func() error {
			regs, err := s.registrationRepo.ListByTournament(gCtx, id, nil)
			if err != nil {
				return fmt.Errorf("failed to load registrations: %w", err)
			}
			t.Registrations = regs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !privileged && t.Room != nil {
		t.Room.Password = ""
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		if tournaments[i].Room != nil {
			tournaments[i].Room.Password = ""
		}
	}
	return tournaments, nil
}

func (s *tournamentService) UpdateTournament(ctx context.Context, organizerID, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	t, err := s.ownedTournament(ctx, nil, organizerID, id)
	if err != nil {
		return nil, err
	}
	if t.Settled {
		return nil, ErrTournamentSettled
	}

	feeChanged := input.EntryFee != nil && *input.EntryFee != t.EntryFee
	limitChanged := input.TeamLimit != nil && *input.TeamLimit != t.TeamLimit
	if feeChanged || limitChanged {
		regs, err := s.registrationRepo.ListByTournament(ctx, id, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to check registrations: %w", err)
		}
		if len(regs) > 0 {
			return nil, ErrTournamentFieldsLocked
		}
	}

	if input.Name != nil {
		t.Name = strings.TrimSpace(*input.Name)
	}
	if input.Game != nil {
		t.Game = strings.TrimSpace(*input.Game)
	}
	if input.Description != nil {
		t.Description = input.Description
	}
	if input.EntryFee != nil {
		t.EntryFee = *input.EntryFee
	}
	if input.TeamLimit != nil {
		t.TeamLimit = *input.TeamLimit
	}
	if input.TimeSlot != nil {
		t.TimeSlot = trimmedOrNil(input.TimeSlot)
	}
	if input.StartDate != nil {
		t.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		t.EndDate = *input.EndDate
	}
	if input.MatchTime != nil {
		t.MatchTime = input.MatchTime
	}

	if t.EndDate.Before(t.StartDate) {
		return nil, ErrTournamentInvalidDates
	}
	if t.Type == models.TournamentTypeScrim && t.TimeSlot == nil {
		return nil, ErrTimeSlotRequired
	}

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, s.translateTournamentError(err)
	}
	t.Status = t.StatusAt(s.now())
	return t, nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, actorID int, actorRole models.UserRole, id int) error {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return s.translateTournamentError(err)
	}
	if actorRole != models.RoleAdmin && t.OrganizerID != actorID {
		return ErrForbiddenOperation
	}
	if t.Settled {
		return ErrTournamentSettled
	}

	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return s.translateTournamentError(err)
	}
	s.logger.InfoContext(ctx, "tournament deleted", slog.Int("tournament_id", id), slog.Int("actor_id", actorID))
	return nil
}

// ApproveRegistration accepts a pending registration. The tournament row is
// locked so concurrent approvals cannot exceed the team limit.
func (s *tournamentService) ApproveRegistration(ctx context.Context, organizerID, tournamentID, registrationID int) (*models.Registration, error) {
	var (
		reg *models.Registration
		t   *models.Tournament
	)
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		var err error
		t, err = s.tournamentRepo.GetByIDForUpdate(ctx, tx, tournamentID)
		if err != nil {
			return s.translateTournamentError(err)
		}
		if t.OrganizerID != organizerID {
			return ErrForbiddenOperation
		}

		reg, err = s.pendingRegistration(ctx, tx, tournamentID, registrationID)
		if err != nil {
			return err
		}

		accepted, err := s.registrationRepo.CountAccepted(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if accepted >= t.TeamLimit {
			return ErrTournamentFull
		}
		return s.decide(ctx, tx, reg, models.RegistrationAccepted, nil)
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, t, reg)
	return reg, nil
}

func (s *tournamentService) RejectRegistration(ctx context.Context, organizerID, tournamentID, registrationID int, reason string) (*models.Registration, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultRejectionReason
	}

	var (
		reg *models.Registration
		t   *models.Tournament
	)
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		var err error
		t, err = s.tournamentRepo.GetByID(ctx, tx, tournamentID)
		if err != nil {
			return s.translateTournamentError(err)
		}
		if t.OrganizerID != organizerID {
			return ErrForbiddenOperation
		}
		reg, err = s.pendingRegistration(ctx, tx, tournamentID, registrationID)
		if err != nil {
			return err
		}
		return s.decide(ctx, tx, reg, models.RegistrationRejected, &reason)
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, t, reg)
	return reg, nil
}

func (s *tournamentService) pendingRegistration(ctx context.Context, tx *sql.Tx, tournamentID, registrationID int) (*models.Registration, error) {
	reg, err := s.registrationRepo.GetByID(ctx, tx, registrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	if reg.TournamentID != tournamentID {
		return nil, ErrRegistrationNotFound
	}
	if reg.Status != models.RegistrationPending {
		return nil, ErrRegistrationDecided
	}
	return reg, nil
}

func (s *tournamentService) decide(ctx context.Context, tx *sql.Tx, reg *models.Registration, status models.RegistrationStatus, reason *string) error {
	if err := s.registrationRepo.Decide(ctx, tx, reg.ID, status, reason); err != nil {
		if errors.Is(err, repositories.ErrRegistrationDecided) {
			return ErrRegistrationDecided
		}
		return err
	}
	decidedAt := s.now()
	reg.Status = status
	reg.RejectionReason = reason
	reg.DecidedAt = &decidedAt
	return nil
}

func (s *tournamentService) afterDecision(ctx context.Context, t *models.Tournament, reg *models.Registration) {
	s.logger.InfoContext(ctx, "registration decided",
		slog.Int("tournament_id", t.ID), slog.Int("registration_id", reg.ID), slog.String("status", string(reg.Status)))

	s.events.BroadcastToTournament(t.ID, realtime.EventRegistrationUpdated, map[string]interface{}{
		"tournament_id":   t.ID,
		"registration_id": reg.ID,
		"team_name":       reg.TeamName,
		"status":          reg.Status,
	})

	if s.email == nil {
		return
	}
	leader, err := s.userRepo.GetByID(ctx, nil, reg.LeaderID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load team leader for email", slog.Int("registration_id", reg.ID), slog.Any("error", err))
		return
	}
	reason := ""
	if reg.RejectionReason != nil {
		reason = *reg.RejectionReason
	}
	accepted := reg.Status == models.RegistrationAccepted
	if err := s.email.SendRegistrationDecision(ctx, leader.Email, leader.Username, t.Name, accepted, reason); err != nil {
		s.logger.WarnContext(ctx, "failed to queue registration email", slog.Int("registration_id", reg.ID), slog.Any("error", err))
	}
}

// ShareRoomDetails stores the room credentials and emails them to every accepted
// team leader. Slots are numbered from 1 in order of acceptance. It returns the
// number of emails queued.
func (s *tournamentService) ShareRoomDetails(ctx context.Context, organizerID, tournamentID int, input RoomDetailsInput) (int, error) {
	t, err := s.ownedTournament(ctx, nil, organizerID, tournamentID)
	if err != nil {
		return 0, err
	}

	room := &models.RoomDetails{
		RoomID:    strings.TrimSpace(input.RoomID),
		Password:  input.Password,
		MatchTime: input.MatchTime,
		SharedAt:  s.now(),
	}
	if room.MatchTime == nil {
		room.MatchTime = t.MatchTime
	}
	if err := s.tournamentRepo.UpdateRoomDetails(ctx, tournamentID, room); err != nil {
		return 0, s.translateTournamentError(err)
	}

	accepted := models.RegistrationAccepted
	regs, err := s.registrationRepo.ListByTournament(ctx, tournamentID, &accepted)
	if err != nil {
		return 0, fmt.Errorf("failed to list accepted teams: %w", err)
	}

	matchTime := ""
	if room.MatchTime != nil {
		matchTime = room.MatchTime.Format("02 Jan 2006 15:04 MST")
	}

	queued := 0
	if s.email != nil {
		if err := s.queueRoomEmails(ctx, t, regs, room, matchTime); err != nil {
			s.logger.ErrorContext(ctx, "failed to queue room details emails", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
			return 0, fmt.Errorf("room details saved but emails could not be queued: %w", err)
		}
		queued = len(regs)
	}

	s.events.BroadcastToTournament(tournamentID, realtime.EventRoomDetailsShared, map[string]interface{}{
		"tournament_id": tournamentID,
		"match_time":    room.MatchTime,
		"shared_at":     room.SharedAt,
	})
	s.logger.InfoContext(ctx, "room details shared", slog.Int("tournament_id", tournamentID), slog.Int("teams", len(regs)))
	return queued, nil
}

func (s *tournamentService) queueRoomEmails(ctx context.Context, t *models.Tournament, regs []models.Registration, room *models.RoomDetails, matchTime string) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range regs {
		reg := regs[i]
		slot := i + 1
		g.Go(func() error {
			if reg.Leader == nil {
				return nil
			}
			return s.email.SendRoomDetails(gCtx, reg.Leader.Email, RoomDetailsEmail{
				Username:       reg.Leader.Username,
				TournamentName: t.Name,
				Game:           t.Game,
				TeamName:       reg.TeamName,
				Slot:           slot,
				RoomID:         room.RoomID,
				Password:       room.Password,
				MatchTime:      matchTime,
			})
		})
	}
	return g.Wait()
}

// SubmitResults stores the podium and settles the prize pool in the same
// database transaction. A second submission fails with ErrAlreadySettled.
func (s *tournamentService) SubmitResults(ctx context.Context, organizerID, tournamentID int, input SubmitResultsInput) (*models.SettlementRecord, error) {
	t, err := s.ownedTournament(ctx, nil, organizerID, tournamentID)
	if err != nil {
		return nil, err
	}
	if s.now().Before(startOfDay(t.StartDate)) {
		return nil, ErrResultsTooEarly
	}

	first := strings.TrimSpace(input.FirstPlace)
	second := strings.TrimSpace(input.SecondPlace)
	third := strings.TrimSpace(input.ThirdPlace)
	// Handles compare exactly, the same way the ledger resolves them.
	if first == second || first == third || second == third {
		return nil, ErrDuplicateWinners
	}

	accepted := models.RegistrationAccepted
	regs, err := s.registrationRepo.ListByTournament(ctx, tournamentID, &accepted)
	if err != nil {
		return nil, fmt.Errorf("failed to list accepted teams: %w", err)
	}
	if len(regs) == 0 {
		return nil, ErrNoAcceptedRegistrations
	}
	leaders := make(map[string]bool, len(regs))
	for _, reg := range regs {
		if reg.Leader != nil {
			leaders[reg.Leader.Username] = true
		}
	}
	for _, name := range []string{first, second, third} {
		if !leaders[name] {
			return nil, fmt.Errorf("%w: %q", ErrWinnerNotAccepted, name)
		}
	}

	organizer, err := s.userRepo.GetByID(ctx, nil, t.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organizer: %w", err)
	}

	result := &models.TournamentResult{
		FirstPlace:  first,
		SecondPlace: second,
		ThirdPlace:  third,
		Notes:       input.Notes,
		SubmittedAt: s.now(),
	}

	var settlement *models.SettlementRecord
	err = withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if err := s.tournamentRepo.UpdateResult(ctx, tx, tournamentID, result); err != nil {
			return s.translateTournamentError(err)
		}
		var err error
		settlement, err = s.ledger.SettleTournamentPrizePoolTx(ctx, tx, SettlementInput{
			TournamentID: tournamentID,
			EntryFee:     t.EntryFee,
			TeamCount:    len(regs),
			Plan:         s.payoutPlan,
			Winners: map[string]string{
				models.ShareFirst:     first,
				models.ShareSecond:    second,
				models.ShareThird:     third,
				models.ShareOrganizer: organizer.Username,
			},
			SettledBy: organizerID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.BroadcastToTournament(tournamentID, realtime.EventResultsPublished, result)
	s.events.BroadcastToTournament(tournamentID, realtime.EventSettlementCompleted, map[string]interface{}{
		"tournament_id": tournamentID,
		"pool":          settlement.Pool,
		"paid_out":      settlement.PaidOut,
	})
	return settlement, nil
}

func (s *tournamentService) ListResults(ctx context.Context, limit int) ([]models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	tournaments, err := s.tournamentRepo.ListWithResults(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		tournaments[i].Room = nil
	}
	return tournaments, nil
}

func (s *tournamentService) ownedTournament(ctx context.Context, exec repositories.SQLExecutor, organizerID, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, exec, id)
	if err != nil {
		return nil, s.translateTournamentError(err)
	}
	if t.OrganizerID != organizerID {
		return nil, ErrForbiddenOperation
	}
	return t, nil
}

func (s *tournamentService) translateTournamentError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentInvalidDates):
		return ErrTournamentInvalidDates
	case errors.Is(err, repositories.ErrTournamentInUse):
		return ErrTournamentSettled
	case errors.Is(err, repositories.ErrTournamentInvalidOrg):
		return ErrAccountNotFound
	default:
		return err
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
