package models

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

type TxStatus string

const (
	TxStatusProcessing TxStatus = "processing"
	TxStatusDone       TxStatus = "done"
)

// Transaction sources recorded in the ledger.
const (
	SourcePlatformFee   = "Platform Fee"
	SourceListingFee    = "Tournament Listing Fee"
	SourcePrizePayout   = "Prize Payout"
	SourceUPIDeposit    = "UPI Manual Deposit"
	SourceUPIWithdrawal = "UPI Withdrawal"
	SourceSignupBonus   = "Signup Bonus"
)

// LedgerTransaction is one row of the wallet ledger. Amount is always positive,
// the sign comes from Direction.
type LedgerTransaction struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    int        `json:"account_id"`
	Amount       int64      `json:"amount"`
	Direction    Direction  `json:"direction"`
	Status       TxStatus   `json:"status"`
	Source       string     `json:"source"`
	TournamentID *int       `json:"tournament_id,omitempty"`
	ExternalRef  *string    `json:"external_ref,omitempty"`
	UPIID        *string    `json:"upi_id,omitempty"`
	BalanceAfter *int64     `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Username string `json:"username,omitempty"`
}

type TransactionFilter struct {
	Direction    *Direction
	Status       *TxStatus
	Source       *string
	TournamentID *int
	Limit        int
	Offset       int
}

type Reconciliation struct {
	AccountID int   `json:"account_id"`
	Stored    int64 `json:"stored"`
	Derived   int64 `json:"derived"`
	Drift     int64 `json:"drift"`
}
