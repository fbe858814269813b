// Package fld extracts level-suffixes ("first-level domains", read from
// the right) out of dotted DNS names.
package fld

// Extract returns the suffix of name that follows the level-th dot
// counted from the right. For Extract("s2.smtp.google.com", 2) that is
// google.com. If name has fewer than level dots, the whole name is
// returned. Extract is undefined for empty input beyond returning "".
func Extract(name string, level int) string {
	if len(name) == 0 {
		return name
	}

	passed := 0
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '.' {
			passed++
			if passed == level {
				return name[i+1:]
			}
		}
	}
	return name
}
