package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"bidding-engine/internal/domain"
)

func TestRankStandings(t *testing.T) {
	bids := []domain.Bid{
		{ParticipantID: "alice", Amount: 105, Sequence: 1},
		{ParticipantID: "bob", Amount: 110, Sequence: 2},
		{ParticipantID: "alice", Amount: 120, Sequence: 3},
		{ParticipantID: "carol", Amount: 130, Sequence: 4},
	}

	standings := rankStandings(bids)
	require.Len(t, standings, 3)

	// Best amount per participant, descending.
	require.Equal(t, "carol", standings[0].ParticipantID)
	require.Equal(t, 130.0, standings[0].Amount)
	require.Equal(t, "alice", standings[1].ParticipantID)
	require.Equal(t, 120.0, standings[1].Amount)
	require.Equal(t, "bob", standings[2].ParticipantID)
	require.Equal(t, 110.0, standings[2].Amount)
}

func TestRankStandingsEmptyLedger(t *testing.T) {
	require.Empty(t, rankStandings(nil))
}

func TestRankStandingsTieBrokenByEarlierSequence(t *testing.T) {
	// Equal amounts cannot occur within one lot under the strict-increase
	// rule, but the ordering must stay total anyway.
	bids := []domain.Bid{
		{ParticipantID: "alice", Amount: 100, Sequence: 1},
		{ParticipantID: "bob", Amount: 100, Sequence: 2},
	}

	standings := rankStandings(bids)
	require.Equal(t, "alice", standings[0].ParticipantID)
	require.Equal(t, "bob", standings[1].ParticipantID)
}

func TestRankOf(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))
	ctx := context.Background()

	_, err := e.Submit(ctx, "lot-1", "alice", 110)
	require.NoError(t, err)
	_, err = e.Submit(ctx, "lot-1", "bob", 120)
	require.NoError(t, err)

	rank, leading, err := e.RankOf("lot-1", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, rank)
	require.True(t, leading)

	rank, leading, err = e.RankOf("lot-1", "alice")
	require.NoError(t, err)
	require.Equal(t, 2, rank)
	require.False(t, leading)

	rank, leading, err = e.RankOf("lot-1", "nobody")
	require.NoError(t, err)
	require.Equal(t, 0, rank)
	require.False(t, leading)

	// Leadership follows the most recent accepted bid.
	_, err = e.Submit(ctx, "lot-1", "alice", 130)
	require.NoError(t, err)

	_, leading, err = e.RankOf("lot-1", "alice")
	require.NoError(t, err)
	require.True(t, leading)

	_, leading, err = e.RankOf("lot-1", "bob")
	require.NoError(t, err)
	require.False(t, leading)
}

func TestLeaderboardCarriesPaddleNumbers(t *testing.T) {
	e := newTestEngine(t, Options{})
	openLot(t, e, testLot("lot-1"))
	ctx := context.Background()

	_, err := e.Submit(ctx, "lot-1", "alice", 110)
	require.NoError(t, err)

	standings, err := e.Leaderboard("lot-1")
	require.NoError(t, err)
	require.Len(t, standings, 1)
	require.Equal(t, e.PaddleNumber("alice"), standings[0].PaddleNumber)
	require.GreaterOrEqual(t, standings[0].PaddleNumber, DefaultPaddleLow)
	require.Less(t, standings[0].PaddleNumber, DefaultPaddleHigh)
}
