// Package levenshtein computes edit distances between short identifiers.
package levenshtein

// Distance returns the minimum number of single-rune insertions, deletions
// and substitutions that turn a into b.
func Distance(a, b string) int {
	s1, s2 := []rune(a), []rune(b)

	if len(s1) < len(s2) {
		s1, s2 = s2, s1
	}

	if len(s2) == 0 {
		return len(s1)
	}

	column := make([]int, len(s2)+1)
	for idx := range column {
		column[idx] = idx
	}

	for row, r1 := range s1 {
		diag := column[0]
		column[0] = row + 1

		for col, r2 := range s2 {
			cost := 1
			if r1 == r2 {
				cost = 0
			}

			above := column[col+1]
			column[col+1] = min(above+1, column[col]+1, diag+cost)
			diag = above
		}
	}

	return column[len(s2)]
}

// Closest returns the candidate nearest to target whose distance does not
// exceed limit. Ties go to the earlier candidate.
func Closest(target string, candidates []string, limit int) (string, bool) {
	best, bestDist := "", limit+1

	for _, candidate := range candidates {
		dist := Distance(target, candidate)
		if dist < bestDist {
			best, bestDist = candidate, dist
		}
	}

	return best, bestDist <= limit
}
