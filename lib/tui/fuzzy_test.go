// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"reflect"
	"testing"
)

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		pattern string
		match   bool
	}{
		{"substring", "respawn", "spa", true},
		{"non-contiguous", "disconnect", "dct", true},
		{"case-insensitive", "Sessions", "SESS", true},
		{"no match", "continue", "xyz", false},
		{"order matters", "exit", "tx", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FuzzyMatch(tt.text, []rune(tt.pattern), nil)
			if got := result.Score > 0; got != tt.match {
				t.Fatalf("FuzzyMatch(%q, %q) score=%d, want match=%v", tt.text, tt.pattern, result.Score, tt.match)
			}
			if tt.match && len(result.Positions) != len([]rune(tt.pattern)) {
				t.Errorf("positions = %v, want %d entries", result.Positions, len(tt.pattern))
			}
			if !tt.match && len(result.Positions) != 0 {
				t.Errorf("positions = %v, want none", result.Positions)
			}
		})
	}
}

func TestFuzzyMatchEmptyPattern(t *testing.T) {
	result := FuzzyMatch("anything", nil, nil)
	if result.Score != 1 || len(result.Positions) != 0 {
		t.Errorf("empty pattern: %+v, want score 1 and no positions", result)
	}
}

func TestFuzzyMatchPositionsAscending(t *testing.T) {
	result := FuzzyMatch("connect", []rune("cnt"), NewSlab())
	for i := 1; i < len(result.Positions); i++ {
		if result.Positions[i] <= result.Positions[i-1] {
			t.Fatalf("positions not ascending: %v", result.Positions)
		}
	}
}

func TestRank(t *testing.T) {
	candidates := []string{"continue", "connect", "config", "exit", "connect"}

	got := Rank(candidates, "con")
	if len(got) != 3 {
		t.Fatalf("Rank = %v, want 3 matches", got)
	}
	for _, excluded := range got {
		if excluded == "exit" {
			t.Fatalf("Rank included non-match: %v", got)
		}
	}

	all := Rank(candidates, "")
	want := []string{"exit", "config", "connect", "continue"}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("Rank with empty pattern = %v, want %v", all, want)
	}
}

func TestRankPrefersTighterMatch(t *testing.T) {
	got := Rank([]string{"history_size", "help"}, "he")
	if len(got) != 2 || got[0] != "help" {
		t.Errorf("Rank = %v, want help first", got)
	}
}
