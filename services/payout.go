package services

import (
	"fmt"
	"math/big"

	"github.com/svxarena/tourneyzone/models"
)

type shareAmount struct {
	Name   string
	Amount int64
}

// prizePool returns entryFee × teamCount, refusing values that do not fit in int64.
func prizePool(entryFee int64, teamCount int) (int64, error) {
	if entryFee < 0 || teamCount < 0 {
		return 0, fmt.Errorf("%w: entry fee %d, team count %d", ErrInvalidAmount, entryFee, teamCount)
	}
	pool := new(big.Int).Mul(big.NewInt(entryFee), big.NewInt(int64(teamCount)))
	if !pool.IsInt64() {
		return 0, fmt.Errorf("%w: prize pool overflows", ErrInvalidAmount)
	}
	return pool.Int64(), nil
}

// computePayouts splits pool according to plan. Each share is floor(pool × fraction);
// the rounding remainder floor(pool × Σfractions) − Σshares goes to the organizer.
// Anything above Σfractions stays unallocated.
func computePayouts(pool int64, plan models.PayoutPlan) ([]shareAmount, int64, error) {
	if err := plan.Validate(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidPayoutPlan, err)
	}

	poolRat := new(big.Rat).SetInt64(pool)
	total := new(big.Rat)
	amounts := make([]shareAmount, 0, len(plan))
	organizerIdx := -1
	var sum int64

	for i, share := range plan {
		amount := floorRat(new(big.Rat).Mul(poolRat, share.Rat()))
		amounts = append(amounts, shareAmount{Name: share.Name, Amount: amount})
		sum += amount
		total.Add(total, share.Rat())
		if share.Name == models.ShareOrganizer {
			organizerIdx = i
		}
	}

	allocated := floorRat(new(big.Rat).Mul(poolRat, total))
	remainder := allocated - sum
	amounts[organizerIdx].Amount += remainder

	return amounts, remainder, nil
}

// floorRat truncates a non-negative rational to an integer.
func floorRat(r *big.Rat) int64 {
	return new(big.Int).Quo(r.Num(), r.Denom()).Int64()
}
