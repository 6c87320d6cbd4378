package models

import "time"

type TournamentType string

const (
	TournamentTypeRegular TournamentType = "regular"
	TournamentTypeScrim   TournamentType = "scrim"
)

// TournamentStatus is derived from the dates, it is not stored.
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusOngoing   TournamentStatus = "ongoing"
	StatusCompleted TournamentStatus = "completed"
)

type RoomDetails struct {
	RoomID    string     `json:"room_id"`
	Password  string     `json:"password"`
	MatchTime *time.Time `json:"match_time,omitempty"`
	SharedAt  time.Time  `json:"shared_at"`
}

type TournamentResult struct {
	FirstPlace  string    `json:"first_place"`
	SecondPlace string    `json:"second_place"`
	ThirdPlace  string    `json:"third_place"`
	Notes       *string   `json:"notes,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type Tournament struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Game        string         `json:"game"`
	Description *string        `json:"description,omitempty"`
	OrganizerID int            `json:"organizer_id"`
	EntryFee    int64          `json:"entry_fee"`
	TeamLimit   int            `json:"team_limit"`
	Type        TournamentType `json:"type"`
	TimeSlot    *string        `json:"time_slot,omitempty"`
	StartDate   time.Time      `json:"start_date"`
	EndDate     time.Time      `json:"end_date"`
	MatchTime   *time.Time     `json:"match_time,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`

	Room   *RoomDetails      `json:"room,omitempty"`
	Result *TournamentResult `json:"result,omitempty"`

	Status        TournamentStatus `json:"status"`
	Settled       bool             `json:"settled"`
	AcceptedTeams int              `json:"accepted_teams"`

	Organizer     *User          `json:"organizer,omitempty"`
	Registrations []Registration `json:"registrations,omitempty"`
}

// StatusAt derives the lifecycle status from the start and end dates.
func (t *Tournament) StatusAt(now time.Time) TournamentStatus {
	switch {
	case now.Before(t.StartDate):
		return StatusUpcoming
	case now.After(t.EndDate):
		return StatusCompleted
	default:
		return StatusOngoing
	}
}
