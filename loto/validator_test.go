package loto

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func calledSet(nums ...int) map[int]bool {
	m := make(map[int]bool, len(nums))
	for _, n := range nums {
		m[n] = true
	}
	return m
}

func TestCheckClaimedRow(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	grids := GenerateTicketGrids(rng, nil)
	require.Len(t, grids, GridsPerTicket)

	row := grids[1].RowNumbers(2)
	require.Len(t, row, NumbersPerRow)

	t.Run("all five called wins", func(t *testing.T) {
		res := CheckClaimedRow(grids, 1, 2, calledSet(row...))
		require.True(t, res.IsWinner)
		require.Equal(t, 1, res.GridIndex)
		require.Equal(t, 2, res.RowIndex)
		require.ElementsMatch(t, row, res.MatchedNumbers)
		require.Empty(t, res.MissingNumbers)
	})

	t.Run("four of five is not a win", func(t *testing.T) {
		res := CheckClaimedRow(grids, 1, 2, calledSet(row[:4]...))
		require.False(t, res.IsWinner)
		require.ElementsMatch(t, row[:4], res.MatchedNumbers)
		require.ElementsMatch(t, row[4:], res.MissingNumbers)
	})

	t.Run("out of range claim", func(t *testing.T) {
		res := CheckClaimedRow(grids, 5, 0, calledSet(row...))
		require.False(t, res.IsWinner)
		res = CheckClaimedRow(grids, 0, 3, calledSet(row...))
		require.False(t, res.IsWinner)
	})
}

func TestCheckTicket_ScanOrderIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	grids := GenerateTicketGrids(rng, nil)

	// Call every number on the ticket so every row wins; the scan must
	// report grid 0 row 0.
	all := calledSet()
	for gi := range grids {
		for _, n := range grids[gi].Numbers() {
			all[n] = true
		}
	}
	res := CheckTicket(grids, all)
	require.True(t, res.IsWinner)
	require.Equal(t, 0, res.GridIndex)
	require.Equal(t, 0, res.RowIndex)
}

func TestCheckTicket_FindsLaterRow(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	grids := GenerateTicketGrids(rng, nil)

	called := calledSet(grids[2].RowNumbers(1)...)
	res := CheckTicket(grids, called)
	require.True(t, res.IsWinner)
	require.Equal(t, 2, res.GridIndex)
	require.Equal(t, 1, res.RowIndex)
}

func TestCheckTicket_NoWin(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	grids := GenerateTicketGrids(rng, nil)

	res := CheckTicket(grids, calledSet())
	require.False(t, res.IsWinner)
	require.Equal(t, -1, res.GridIndex)
	require.Equal(t, -1, res.RowIndex)
}

func TestValidation_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(15))
	grids := GenerateTicketGrids(rng, nil)
	called := calledSet(grids[0].RowNumbers(0)...)

	first := CheckTicket(grids, called)
	second := CheckTicket(grids, called)
	require.Equal(t, first, second)
}

func TestCheckNumbers(t *testing.T) {
	called := calledSet(3, 17, 42, 58, 81)

	res := CheckNumbers([]int{3, 17, 42, 58, 81}, called)
	require.True(t, res.IsWinner)

	res = CheckNumbers([]int{3, 17, 42, 58, 90}, called)
	require.False(t, res.IsWinner)
	require.Equal(t, []int{90}, res.MissingNumbers)

	res = CheckNumbers(nil, called)
	require.False(t, res.IsWinner, "empty claim never wins")
}
