// Package lexical holds the small text scanners used to pull structure out of
// free-text loss captions.
package lexical

import (
	"strconv"
	"strings"
)

// Common alphabets for ExtractRuns.
const (
	Digits        = "0123456789"
	letters       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Alphanumerics = letters + Digits
)

// ExtractRuns returns the maximal substrings of text whose characters all
// belong to alphabet, in order of appearance. With exclude set, runs are made
// of characters that do not belong to alphabet.
//
//	ExtractRuns("one, two three", Alphanumerics, false) // [one two three]
//	ExtractRuns("12, 34a 5b6 7", Digits, false)        // [12 34 5 6 7]
//
// Overlapping numbers from distinct tokens are all returned; callers that need
// uniqueness deduplicate the result.
func ExtractRuns(text, alphabet string, exclude bool) []string {
	inRun := func(r rune) bool {
		return strings.ContainsRune(alphabet, r) != exclude
	}

	var runs []string
	start := -1
	for i, r := range text {
		switch {
		case inRun(r) && start < 0:
			start = i
		case !inRun(r) && start >= 0:
			runs = append(runs, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, text[start:])
	}
	return runs
}

// UniqueInts extracts the digit runs of text as integers, dropping repeated
// values and keeping first-occurrence order. Runs too large for an int are
// reported in overflow instead.
//
// Dedup is by value: a caption such as "26, with 23mm ZU-23, destroyed"
// yields [26 23], not [26 23 23]. Two genuinely distinct references to the
// same number inside one caption collapse into one.
func UniqueInts(text string) (ids []int, overflow []string) {
	seen := make(map[int]bool)
	for _, run := range ExtractRuns(text, Digits, false) {
		n, err := strconv.Atoi(run)
		if err != nil {
			overflow = append(overflow, run)
			continue
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		ids = append(ids, n)
	}
	return ids, overflow
}
