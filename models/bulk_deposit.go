package models

import (
	"time"

	"github.com/google/uuid"
)

type BulkDepositEntry struct {
	UTR    string `json:"utr" validate:"required"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

type BulkResultStatus string

const (
	BulkResultSuccess BulkResultStatus = "success"
	BulkResultFailed  BulkResultStatus = "failed"
)

type BulkDepositResult struct {
	UTR      string           `json:"utr"`
	Status   BulkResultStatus `json:"status"`
	Amount   int64            `json:"amount"`
	Username string           `json:"username,omitempty"`
	Message  string           `json:"message"`
}

// BulkDepositLog is the persisted outcome of one bulk UTR reconciliation run.
type BulkDepositLog struct {
	ID          uuid.UUID           `json:"id"`
	AdminID     int                 `json:"admin_id"`
	Processed   int                 `json:"processed"`
	Failed      int                 `json:"failed"`
	Results     []BulkDepositResult `json:"results"`
	ProcessedAt time.Time           `json:"processed_at"`
}
