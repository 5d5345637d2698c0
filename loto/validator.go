package loto

// ValidationResult reports a win check. GridIndex/RowIndex are -1 when no
// winning row was found. MatchedNumbers and MissingNumbers partition the
// checked row's numbers by whether they appear in the called set.
type ValidationResult struct {
	IsWinner       bool  `json:"isWinner"`
	GridIndex      int   `json:"gridIndex"`
	RowIndex       int   `json:"rowIndex"`
	MatchedNumbers []int `json:"matchedNumbers"`
	MissingNumbers []int `json:"missingNumbers"`
}

func noWin() ValidationResult {
	return ValidationResult{GridIndex: -1, RowIndex: -1, MatchedNumbers: []int{}, MissingNumbers: []int{}}
}

// CheckRow reports whether every non-empty cell of the row is called.
func CheckRow(g *Grid, row int, called map[int]bool) bool {
	for col := 0; col < GridCols; col++ {
		if n := g.Cells[row][col]; n != 0 && !called[n] {
			return false
		}
	}
	return true
}

// CheckNumbers validates an arbitrary set of numbers against the called set.
// Used for the host's manual check where no ticket is involved.
func CheckNumbers(numbers []int, called map[int]bool) ValidationResult {
	res := noWin()
	for _, n := range numbers {
		if called[n] {
			res.MatchedNumbers = append(res.MatchedNumbers, n)
		} else {
			res.MissingNumbers = append(res.MissingNumbers, n)
		}
	}
	res.IsWinner = len(numbers) > 0 && len(res.MissingNumbers) == 0
	return res
}

// CheckClaimedRow validates exactly one claimed row of a ticket, the path
// behind a player shouting "kinh".
func CheckClaimedRow(grids []Grid, gridIndex, rowIndex int, called map[int]bool) ValidationResult {
	if gridIndex < 0 || gridIndex >= len(grids) || rowIndex < 0 || rowIndex >= GridRows {
		return noWin()
	}
	res := CheckNumbers(grids[gridIndex].RowNumbers(rowIndex), called)
	if res.IsWinner {
		res.GridIndex = gridIndex
		res.RowIndex = rowIndex
	}
	return res
}

// CheckTicket scans all rows of all grids and returns the first winning row.
// Scan order is grid-major then row-minor, ascending, so simultaneous winning
// rows always resolve to the same one.
func CheckTicket(grids []Grid, called map[int]bool) ValidationResult {
	for gi := range grids {
		for ri := 0; ri < GridRows; ri++ {
			if CheckRow(&grids[gi], ri, called) {
				return CheckClaimedRow(grids, gi, ri, called)
			}
		}
	}
	return noWin()
}
