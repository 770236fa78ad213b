package lexical

import "strings"

// conjunctions are checked in this order; the first match wins.
var conjunctions = []string{"and", "nor", "but", "or"}

// SplitSeries splits a human-readable list with or without an Oxford comma.
//
//	SplitSeries("a, b, c, and d", ",") // [a b c d]
//	SplitSeries("a, b, c or d", ",")   // [a b c d]
//
// An empty delimiter defaults to a comma.
func SplitSeries(text, delimiter string) []string {
	if delimiter == "" {
		delimiter = ","
	}

	parts := strings.Split(text, delimiter+" ")
	items := make([]string, len(parts))
	for i, p := range parts {
		items[i] = strings.TrimSpace(p)
	}

	last := items[len(items)-1]
	for _, c := range conjunctions {
		if strings.HasPrefix(last, c+" ") {
			items[len(items)-1] = strings.TrimPrefix(last, c+" ")
			break
		}
		if strings.Contains(last, " "+c+" ") {
			items = items[:len(items)-1]
			for _, item := range strings.Split(last, " "+c+" ") {
				items = append(items, strings.TrimSpace(item))
			}
			break
		}
	}
	return items
}
