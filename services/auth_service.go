package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/svxarena/tourneyzone/models"
	"github.com/svxarena/tourneyzone/repositories"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
}

type RegisterInput struct {
	Username string          `json:"username" validate:"required,min=3,max=32"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=player organizer"`
	UPIID    *string         `json:"upi_id,omitempty"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authService struct {
	db          *sql.DB
	userRepo    repositories.UserRepository
	ledger      LedgerService
	email       EmailService
	signupBonus int64
	logger      *slog.Logger
}

func NewAuthService(
	db *sql.DB,
	userRepo repositories.UserRepository,
	ledger LedgerService,
	email EmailService,
	signupBonus int64,
	logger *slog.Logger,
) AuthService {
	return &authService{
		db:          db,
		userRepo:    userRepo,
		ledger:      ledger,
		email:       email,
		signupBonus: signupBonus,
		logger:      logger,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if input.Role != models.RolePlayer && input.Role != models.RoleOrganizer {
		return nil, ErrRoleNotAllowed
	}

	var upi *string
	if input.UPIID != nil {
		if trimmed := strings.TrimSpace(*input.UPIID); trimmed != "" {
			upi = &trimmed
		}
	}
	if input.Role == models.RoleOrganizer && upi == nil {
		return nil, ErrUPIRequired
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(input.Username),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hashedPassword),
		Role:         input.Role,
		UPIID:        upi,
	}

	err = withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}
		if s.signupBonus <= 0 {
			return nil
		}
		rec, err := s.ledger.RecordImmediateTransactionTx(ctx, tx, ImmediateInput{
			AccountID: user.ID,
			Amount:    s.signupBonus,
			Direction: models.DirectionCredit,
			Source:    models.SourceSignupBonus,
		})
		if err != nil {
			return fmt.Errorf("failed to credit signup bonus: %w", err)
		}
		user.Balance = *rec.BalanceAfter
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrUserEmailConflict
		case errors.Is(err, repositories.ErrUserUsernameConflict):
			return nil, ErrUserUsernameConflict
		case errors.Is(err, repositories.ErrUserUPIRequired):
			return nil, ErrUPIRequired
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int("user_id", user.ID), slog.String("role", string(user.Role)))

	if s.email != nil {
		if err := s.email.SendWelcome(ctx, user.Email, user.Username); err != nil {
			s.logger.WarnContext(ctx, "failed to queue welcome email", slog.Int("user_id", user.ID), slog.Any("error", err))
		}
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	if err != nil {
		// System accounts carry a placeholder hash and can never log in.
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrHashTooShort) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	if user.IsSuspended() {
		return nil, ErrAccountSuspended
	}

	user.PasswordHash = ""
	return user, nil
}
