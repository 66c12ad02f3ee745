package engine

import (
	"sort"

	"bidding-engine/internal/domain"
)

// rankStandings builds a leaderboard from a ledger snapshot: one row per
// participant carrying their best accepted amount, ordered by amount
// descending with earlier sequence winning ties. Under the validator's
// strict-increase rule ties cannot occur within one lot, but the rule keeps
// the ordering total regardless.
func rankStandings(bids []domain.Bid) []domain.Standing {
	best := make(map[string]domain.Bid)
	order := make([]string, 0, len(bids))

	for _, bid := range bids {
		existing, seen := best[bid.ParticipantID]
		if !seen {
			order = append(order, bid.ParticipantID)
			best[bid.ParticipantID] = bid
			continue
		}
		if bid.Amount > existing.Amount {
			best[bid.ParticipantID] = bid
		}
	}

	standings := make([]domain.Standing, 0, len(order))
	for _, participantID := range order {
		bid := best[participantID]
		standings = append(standings, domain.Standing{
			ParticipantID: participantID,
			Amount:        bid.Amount,
			Sequence:      bid.Sequence,
		})
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Amount != standings[j].Amount {
			return standings[i].Amount > standings[j].Amount
		}
		return standings[i].Sequence < standings[j].Sequence
	})

	return standings
}

// rankOf returns a participant's 1-based rank within the standings, or 0 when
// they have not bid on the lot.
func rankOf(standings []domain.Standing, participantID string) (int, bool) {
	for i, s := range standings {
		if s.ParticipantID == participantID {
			return i + 1, i == 0
		}
	}
	return 0, false
}
