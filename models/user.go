package models

import "time"

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RolePlayer    UserRole = "player"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// User is both the login identity and the wallet account.
// Balance is a projection of the ledger and is only changed by LedgerService.
type User struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	UPIID        *string    `json:"upi_id,omitempty"`
	Status       UserStatus `json:"status"`
	Balance      int64      `json:"balance"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (u *User) IsSuspended() bool {
	return u.Status == UserStatusSuspended
}
