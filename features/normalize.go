package features

import "regexp"

var unsafeColumnChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// NormalizeColumns removes every character outside [A-Za-z0-9_] from each
// name. Order and count are preserved; names that collapse to the same
// string are not disambiguated.
func NormalizeColumns(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = unsafeColumnChars.ReplaceAllString(n, "")
	}
	return out
}
