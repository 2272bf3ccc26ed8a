package api

import "regexp"

// isoDateTime matches a whole JSON string literal, escapes included, that
// starts with an ISO-8601 date-time.
var isoDateTime = regexp.MustCompile(`"\d{4}-\d{2}-\d{2}T(?:[^"\\]|\\.)*"`)

// NormalizeDates rewrites every JSON string literal that starts with an
// ISO-8601 date-time ("2024-06-01T...") to the bare date ("2024-06-01").
// A quoted date-time inside free text is escaped (\"2024-06-01T...\") and is
// left alone.
func NormalizeDates(body []byte) []byte {
	locs := isoDateTime.FindAllIndex(body, -1)
	if len(locs) == 0 {
		return body
	}
	out := make([]byte, 0, len(body))
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if escaped(body, start) {
			continue
		}
		out = append(out, body[last:start+11]...)
		out = append(out, '"')
		last = end
	}
	return append(out, body[last:]...)
}

// escaped reports whether the quote at i is preceded by an odd run of
// backslashes.
func escaped(body []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && body[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}
