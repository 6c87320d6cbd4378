package models

import "time"

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationAccepted RegistrationStatus = "accepted"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Registration is a team entry into a tournament. The registering player is the team leader.
type Registration struct {
	ID              int                `json:"id"`
	TournamentID    int                `json:"tournament_id"`
	LeaderID        int                `json:"leader_id"`
	TeamName        string             `json:"team_name"`
	PayerName       string             `json:"payer_name"`
	UTR             string             `json:"utr"`
	Amount          int64              `json:"amount"`
	Status          RegistrationStatus `json:"status"`
	RejectionReason *string            `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	DecidedAt       *time.Time         `json:"decided_at,omitempty"`

	Leader     *User       `json:"leader,omitempty"`
	Tournament *Tournament `json:"tournament,omitempty"`
}
