package vm

// matchWildcard reports whether s matches pattern, where '*' matches any
// run of characters (including none) and '?' matches exactly one. The
// matcher is iterative with single-star backtracking, so it runs in
// O(len(s) * len(pattern)) worst case with no recursion.
func matchWildcard(pattern, s string) bool {
	var (
		pi, si         int
		starPi, starSi = -1, 0
	)
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			starPi = pi
			starSi = si
			pi++
		case starPi >= 0:
			// Backtrack: let the last star absorb one more character.
			starSi++
			pi = starPi + 1
			si = starSi
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
