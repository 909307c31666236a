package tgui

// TruncRunes returns s cut to at most n runes, with mark appended when
// something was cut.
func TruncRunes(s string, n int, mark string) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + mark
		}
		count++
	}
	return s
}
