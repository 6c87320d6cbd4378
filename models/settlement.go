package models

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Share names used by the default plan. Any other names are allowed as long as
// a winner is supplied for them.
const (
	ShareFirst     = "first"
	ShareSecond    = "second"
	ShareThird     = "third"
	ShareOrganizer = "organizer"
)

// PayoutShare is a named fraction of the prize pool.
type PayoutShare struct {
	Name        string `json:"name"`
	Numerator   int64  `json:"numerator"`
	Denominator int64  `json:"denominator"`
}

func (s PayoutShare) Rat() *big.Rat {
	return big.NewRat(s.Numerator, s.Denominator)
}

// PayoutPlan keeps the shares in the order they are credited.
type PayoutPlan []PayoutShare

// ParsePayoutPlan reads a plan such as "first=3/7,second=2/7,third=1/7,organizer=1/7".
// Decimal fractions ("first=0.5") are accepted as well.
func ParsePayoutPlan(raw string) (PayoutPlan, error) {
	var plan PayoutPlan
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("share %q: expected name=fraction", part)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("share %q: empty name", part)
		}
		r, ok := new(big.Rat).SetString(strings.TrimSpace(value))
		if !ok {
			return nil, fmt.Errorf("share %q: invalid fraction %q", name, value)
		}
		if !r.Num().IsInt64() || !r.Denom().IsInt64() {
			return nil, fmt.Errorf("share %q: fraction out of range", name)
		}
		plan = append(plan, PayoutShare{
			Name:        name,
			Numerator:   r.Num().Int64(),
			Denominator: r.Denom().Int64(),
		})
	}
	if len(plan) == 0 {
		return nil, errors.New("plan has no shares")
	}
	return plan, plan.Validate()
}

// Validate checks that every fraction is positive, names are unique, the
// fractions add up to at most one and an organizer share exists.
func (p PayoutPlan) Validate() error {
	if len(p) == 0 {
		return errors.New("plan has no shares")
	}
	total := new(big.Rat)
	seen := make(map[string]struct{}, len(p))
	for _, s := range p {
		if s.Name == "" {
			return errors.New("share with empty name")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate share %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Denominator <= 0 {
			return fmt.Errorf("share %q: denominator must be positive", s.Name)
		}
		if s.Numerator <= 0 {
			return fmt.Errorf("share %q: fraction must be positive", s.Name)
		}
		total.Add(total, s.Rat())
	}
	if total.Cmp(big.NewRat(1, 1)) > 0 {
		return fmt.Errorf("shares add up to %s which is more than the pool", total.RatString())
	}
	if _, ok := seen[ShareOrganizer]; !ok {
		return fmt.Errorf("plan must contain an %q share", ShareOrganizer)
	}
	return nil
}

func (p PayoutPlan) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = fmt.Sprintf("%s=%d/%d", s.Name, s.Numerator, s.Denominator)
	}
	return strings.Join(parts, ",")
}

// SettlementRecord marks a tournament prize pool as paid out. There is at most
// one per tournament.
type SettlementRecord struct {
	TournamentID       int       `json:"tournament_id"`
	Pool               int64     `json:"pool"`
	PaidOut            int64     `json:"paid_out"`
	OrganizerRemainder int64     `json:"organizer_remainder"`
	SettledBy          int       `json:"settled_by"`
	CreatedAt          time.Time `json:"created_at"`

	Payouts []SettlementPayout `json:"payouts,omitempty"`
}

type SettlementPayout struct {
	Share         string    `json:"share"`
	Handle        string    `json:"handle"`
	AccountID     int       `json:"account_id"`
	Amount        int64     `json:"amount"`
	TransactionID uuid.UUID `json:"transaction_id"`
}
