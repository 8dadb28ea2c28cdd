// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Attributes is a parsed display-attribute string such as
// "bright_red bold" or "#ff8800 underline".
type Attributes struct {
	// Foreground is a lipgloss color spec: an ANSI index ("0"-"255") or
	// "#rrggbb". Empty means the terminal default.
	Foreground string

	Bold      bool
	Faint     bool
	Italic    bool
	Underline bool
	Reverse   bool
}

var ansiNames = map[string]int{
	"black": 0, "red": 1, "green": 2, "yellow": 3,
	"blue": 4, "magenta": 5, "cyan": 6, "white": 7,
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ParseAttributes parses whitespace-separated display attributes. Later
// colors override earlier ones. An empty string is the terminal default.
func ParseAttributes(spec string) (Attributes, error) {
	var attributes Attributes
	for _, token := range strings.Fields(spec) {
		lower := strings.ToLower(token)
		switch lower {
		case "normal", "default", "reset":
			attributes = Attributes{}
			continue
		case "bold":
			attributes.Bold = true
			continue
		case "faint":
			attributes.Faint = true
			continue
		case "italic":
			attributes.Italic = true
			continue
		case "underline":
			attributes.Underline = true
			continue
		case "reverse":
			attributes.Reverse = true
			continue
		}

		if index, ok := ansiNames[lower]; ok {
			attributes.Foreground = strconv.Itoa(index)
			continue
		}
		if name, ok := strings.CutPrefix(lower, "bright_"); ok {
			if index, known := ansiNames[name]; known {
				attributes.Foreground = strconv.Itoa(index + 8)
				continue
			}
		}
		if hexColor.MatchString(token) {
			attributes.Foreground = lower
			continue
		}
		if index, err := strconv.Atoi(token); err == nil && index >= 0 && index <= 255 {
			attributes.Foreground = token
			continue
		}
		return Attributes{}, fmt.Errorf("unrecognized display attribute %q", token)
	}
	return attributes, nil
}
