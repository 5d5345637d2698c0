package loto

import "math/rand"

// DrawNext picks a uniformly random number from 1..90 that is not yet in
// called. ok is false once the pool is exhausted. It never returns a number
// already present in called.
func DrawNext(rng *rand.Rand, called map[int]bool) (n int, ok bool) {
	remaining := make([]int, 0, MaxNumber-len(called))
	for i := MinNumber; i <= MaxNumber; i++ {
		if !called[i] {
			remaining = append(remaining, i)
		}
	}
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[rng.Intn(len(remaining))], true
}
