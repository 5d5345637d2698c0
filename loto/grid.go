package loto

import (
	"math/rand"
	"sort"
)

const (
	GridRows       = 3
	GridCols       = 9
	NumbersPerGrid = 15
	NumbersPerRow  = 5
	MaxColNumbers  = 3
	MinNumber      = 1
	MaxNumber      = 90

	GridsPerTicket = 3

	// rowAssignAttempts bounds the randomized row-assignment step inside a
	// single grid build.
	rowAssignAttempts = 100
	// gridAttempts bounds how often GenerateTicketGrids retries one grid
	// before giving up and returning a short ticket.
	gridAttempts = 50
)

// Grid is one 3x9 loto card. Cells[r][c] is 0 for an empty cell, otherwise a
// number from column c's decade band. Marked mirrors Cells.
type Grid struct {
	Cells  [GridRows][GridCols]int  `json:"cells"`
	Marked [GridRows][GridCols]bool `json:"marked"`
}

// ColumnBand returns the inclusive number range for a column.
// Column 0 holds 1-9, columns 1..7 hold full decades, column 8 holds 80-90.
func ColumnBand(col int) (lo, hi int) {
	lo = col * 10
	if col == 0 {
		lo = 1
	}
	hi = col*10 + 9
	if col == GridCols-1 {
		hi = MaxNumber
	}
	return lo, hi
}

// GenerateGrid builds one grid whose numbers avoid the excluded set. Returns
// nil when the exclusions leave a column band with too few numbers, or when
// the bounded row-assignment search fails; callers treat nil as "cannot
// satisfy uniqueness", not as a reason to loop forever.
func GenerateGrid(rng *rand.Rand, excluded map[int]bool) *Grid {
	counts := columnCounts(rng)

	// Pick the numbers per column up front so a failed row shuffle does not
	// re-roll them.
	numbers := make([][]int, GridCols)
	for col := 0; col < GridCols; col++ {
		picked := pickColumnNumbers(rng, col, counts[col], excluded)
		if picked == nil {
			return nil
		}
		numbers[col] = picked
	}

	rows := assignRows(rng, counts)
	if rows == nil {
		return nil
	}

	g := &Grid{}
	for col := 0; col < GridCols; col++ {
		// Sorted numbers into ascending rows keeps columns increasing
		// top-to-bottom.
		for i, row := range rows[col] {
			g.Cells[row][col] = numbers[col][i]
		}
	}
	return g
}

// GenerateTicketGrids builds up to GridsPerTicket grids sharing no number,
// on top of an optional pre-existing exclusion set. It may return fewer than
// three grids when the retry budget runs out; the caller decides whether a
// short ticket is acceptable.
func GenerateTicketGrids(rng *rand.Rand, excluded map[int]bool) []Grid {
	used := make(map[int]bool, len(excluded)+GridsPerTicket*NumbersPerGrid)
	for n := range excluded {
		used[n] = true
	}

	grids := make([]Grid, 0, GridsPerTicket)
	for len(grids) < GridsPerTicket {
		var g *Grid
		for attempt := 0; attempt < gridAttempts; attempt++ {
			if g = GenerateGrid(rng, used); g != nil {
				break
			}
		}
		if g == nil {
			break
		}
		grids = append(grids, *g)
		for _, row := range g.Cells {
			for _, n := range row {
				if n != 0 {
					used[n] = true
				}
			}
		}
	}
	return grids
}

// columnCounts returns a length-9 vector summing to NumbersPerGrid with each
// entry in [1,MaxColNumbers]: start at one per column and bump random columns
// until the sum reaches 15.
func columnCounts(rng *rand.Rand) [GridCols]int {
	var counts [GridCols]int
	sum := 0
	for col := range counts {
		counts[col] = 1
		sum++
	}
	for sum < NumbersPerGrid {
		col := rng.Intn(GridCols)
		if counts[col] < MaxColNumbers {
			counts[col]++
			sum++
		}
	}
	return counts
}

func pickColumnNumbers(rng *rand.Rand, col, count int, excluded map[int]bool) []int {
	lo, hi := ColumnBand(col)
	avail := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		if !excluded[n] {
			avail = append(avail, n)
		}
	}
	if len(avail) < count {
		return nil
	}
	rng.Shuffle(len(avail), func(i, j int) { avail[i], avail[j] = avail[j], avail[i] })
	picked := append([]int(nil), avail[:count]...)
	sort.Ints(picked)
	return picked
}

// assignRows distributes each column's cells over the three rows so every row
// ends at exactly five numbers. Columns are processed fattest-first; each gets
// a random subset of the rows that still have room. The whole step retries up
// to rowAssignAttempts times before giving up.
func assignRows(rng *rand.Rand, counts [GridCols]int) [][]int {
	order := make([]int, GridCols)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	for attempt := 0; attempt < rowAssignAttempts; attempt++ {
		rows := make([][]int, GridCols)
		var totals [GridRows]int
		ok := true
		for _, col := range order {
			open := make([]int, 0, GridRows)
			for r := 0; r < GridRows; r++ {
				if totals[r] < NumbersPerRow {
					open = append(open, r)
				}
			}
			if len(open) < counts[col] {
				ok = false
				break
			}
			rng.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })
			picked := append([]int(nil), open[:counts[col]]...)
			sort.Ints(picked)
			rows[col] = picked
			for _, r := range picked {
				totals[r]++
			}
		}
		if ok && totals[0] == NumbersPerRow && totals[1] == NumbersPerRow && totals[2] == NumbersPerRow {
			return rows
		}
	}
	return nil
}

// RowNumbers returns the non-empty cells of a row, left to right.
func (g *Grid) RowNumbers(row int) []int {
	nums := make([]int, 0, NumbersPerRow)
	for col := 0; col < GridCols; col++ {
		if n := g.Cells[row][col]; n != 0 {
			nums = append(nums, n)
		}
	}
	return nums
}

// Numbers returns every number on the grid.
func (g *Grid) Numbers() []int {
	nums := make([]int, 0, NumbersPerGrid)
	for r := 0; r < GridRows; r++ {
		nums = append(nums, g.RowNumbers(r)...)
	}
	return nums
}
