package streak

// Score converts a streak into points. A single completion covers a two-day
// window, and each segment earns the triangular number of its windows.
func Score(s Streak) int {
	total := 0
	for _, seg := range s.Segments() {
		windows := (seg.Len() + 1) / 2
		total += windows * (windows + 1) / 2
	}
	return total
}

// ScoreString scores a stored encoding. Malformed input scores zero.
func ScoreString(encoded string) int {
	s, err := ParseStreak(encoded)
	if err != nil {
		return 0
	}
	return Score(s)
}
