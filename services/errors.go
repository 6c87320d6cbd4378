package services

import "errors"

// Ledger errors. A failed ledger operation leaves balances and records unchanged.
var (
	ErrInsufficientFunds    = errors.New("insufficient wallet balance")
	ErrAmountMismatch       = errors.New("amount does not match the pending transaction")
	ErrAlreadyProcessed     = errors.New("transaction already processed")
	ErrAlreadySettled       = errors.New("tournament prize pool already settled")
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidPayoutPlan    = errors.New("invalid payout plan")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNotACredit           = errors.New("transaction is not a credit")
	ErrNotADebit            = errors.New("transaction is not a debit")
	ErrDuplicateExternalRef = errors.New("UTR has already been used")
	ErrCreditsNotAllowed    = errors.New("account cannot receive credits")
)

var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrUserUsernameConflict = errors.New("username is already in use")
	ErrUPIRequired          = errors.New("organizers must provide a UPI id")
	ErrRoleNotAllowed       = errors.New("role cannot be self-registered")

	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentInvalidDates  = errors.New("tournament end date must not be before start date")
	ErrTournamentFieldsLocked  = errors.New("entry fee and team limit cannot change once teams have registered")
	ErrTournamentSettled       = errors.New("tournament has been settled and cannot be deleted")
	ErrTimeSlotRequired        = errors.New("scrims require a time slot")
	ErrTournamentFull          = errors.New("tournament team limit reached")
	ErrRegistrationNotFound    = errors.New("registration not found")
	ErrRegistrationConflict    = errors.New("you have already registered for this tournament")
	ErrRegistrationDecided     = errors.New("registration has already been approved or rejected")
	ErrEntryFeeMismatch        = errors.New("paid amount does not match the entry fee")
	ErrRegistrationClosed      = errors.New("registration is closed for this tournament")
	ErrResultsTooEarly         = errors.New("results cannot be submitted before the tournament starts")
	ErrWinnerNotAccepted       = errors.New("winner must lead an accepted team")
	ErrDuplicateWinners        = errors.New("first, second and third place must be different teams")
	ErrNoAcceptedRegistrations = errors.New("tournament has no accepted teams")
)
