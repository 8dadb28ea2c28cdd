// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

var initAlgo sync.Once

// FuzzyResult is the outcome of matching one text against a pattern.
// Score is zero when the pattern does not match. Positions are rune
// offsets into the text, ascending.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// NewSlab returns scratch space for repeated FuzzyMatch calls on one
// goroutine.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// FuzzyMatch matches pattern against text case-insensitively using
// fzf's V2 algorithm. An empty pattern matches everything with score 1
// and no positions. slab may be nil.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{Score: 1}
	}
	initAlgo.Do(func() { algo.Init("default") })

	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(strings.ToLower(text)))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Start < 0 || result.Score <= 0 {
		return FuzzyResult{}
	}

	matched := FuzzyResult{Score: result.Score}
	if positions != nil {
		matched.Positions = append([]int(nil), (*positions)...)
		sort.Ints(matched.Positions)
	}
	return matched
}

// Rank returns the candidates matching pattern, best first. Ties sort
// shorter candidates first, then alphabetically. Duplicates collapse.
func Rank(candidates []string, pattern string) []string {
	type scored struct {
		text  string
		score int
	}
	slab := NewSlab()
	runes := []rune(pattern)
	seen := make(map[string]bool, len(candidates))

	var hits []scored
	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		if result := FuzzyMatch(candidate, runes, slab); result.Score > 0 {
			hits = append(hits, scored{candidate, result.Score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if len(hits[i].text) != len(hits[j].text) {
			return len(hits[i].text) < len(hits[j].text)
		}
		return hits[i].text < hits[j].text
	})

	ranked := make([]string, len(hits))
	for i, hit := range hits {
		ranked[i] = hit.text
	}
	return ranked
}
