// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/muesli/termenv"
)

// Recognized top-level keys.
const (
	KeyColors        = "colors"
	KeyInspect       = "inspect"
	KeyDefaultPrompt = "default_prompt"
	KeyAlivePrompt   = "alive_prompt"
	KeyHistorySize   = "history_size"
)

// Color roles accepted under "colors".
const (
	RoleEvalResult  = "eval_result"
	RoleEvalError   = "eval_error"
	RoleEvalInfo    = "eval_info"
	RoleEvalWarning = "eval_warning"
	RoleStackInfo   = "stack_info"
	RolePrompt      = "prompt"
)

// Infinity is the sentinel accepted by inspect.limit and
// inspect.printable_limit.
const Infinity = "infinity"

var colorRoles = map[string]bool{
	RoleEvalResult: true, RoleEvalError: true, RoleEvalInfo: true,
	RoleEvalWarning: true, RoleStackInfo: true, RolePrompt: true,
}

// keySpec validates one key. Mapping keys validate per sub-key so that a
// merge only has to check what the update names.
type keySpec struct {
	mapping bool
	scalar  func(value any) (any, string)
	sub     func(subKey string, value any) (any, string)
}

var keySpecs = map[string]keySpec{
	KeyColors:        {mapping: true, sub: validateColor},
	KeyInspect:       {mapping: true, sub: validateInspect},
	KeyDefaultPrompt: {scalar: validatePrompt},
	KeyAlivePrompt:   {scalar: validatePrompt},
	KeyHistorySize:   {scalar: validateHistorySize},
}

// Keys returns the recognized keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(keySpecs))
	for key := range keySpecs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Defaults returns a fresh copy of the built-in configuration. Color
// output is enabled when stdout supports it.
func Defaults() map[string]any {
	return defaultsWithColor(colorSupported())
}

func colorSupported() bool {
	return termenv.NewOutput(os.Stdout).EnvColorProfile() != termenv.Ascii
}

func defaultsWithColor(enabled bool) map[string]any {
	return map[string]any{
		KeyColors: map[string]any{
			"enabled":       enabled,
			RoleEvalResult:  "yellow",
			RoleEvalError:   "red",
			RoleEvalInfo:    "normal",
			RoleEvalWarning: "yellow",
			RoleStackInfo:   "red",
			RolePrompt:      "normal",
		},
		KeyInspect: map[string]any{
			"pretty":          true,
			"limit":           50,
			"width":           80,
			"syntax_colors":   false,
			"printable_limit": 4096,
		},
		KeyDefaultPrompt: "%prefix(%counter)>",
		KeyAlivePrompt:   "%prefix(%node)%counter>",
		KeyHistorySize:   20,
	}
}

func validateColor(subKey string, value any) (any, string) {
	if subKey == "enabled" {
		enabled, ok := value.(bool)
		if !ok {
			return nil, "must be a boolean"
		}
		return enabled, ""
	}
	if !colorRoles[subKey] {
		return nil, "unknown color role"
	}
	spec, ok := value.(string)
	if !ok {
		return nil, "must be a display-attribute string"
	}
	if _, err := ParseAttributes(spec); err != nil {
		return nil, err.Error()
	}
	return spec, ""
}

func validateInspect(subKey string, value any) (any, string) {
	switch subKey {
	case "pretty", "syntax_colors":
		flag, ok := value.(bool)
		if !ok {
			return nil, "must be a boolean"
		}
		return flag, ""
	case "width":
		n, ok := toInt(value)
		if !ok || n <= 0 {
			return nil, "must be a positive integer"
		}
		return n, ""
	case "limit", "printable_limit":
		if value == Infinity {
			return Infinity, ""
		}
		n, ok := toInt(value)
		if !ok || n <= 0 {
			return nil, `must be a positive integer or "infinity"`
		}
		return n, ""
	default:
		return nil, "unknown inspect option"
	}
}

func validatePrompt(value any) (any, string) {
	prompt, ok := value.(string)
	if !ok {
		return nil, "must be a string"
	}
	return prompt, ""
}

func validateHistorySize(value any) (any, string) {
	n, ok := toInt(value)
	if !ok {
		return nil, "must be an integer"
	}
	return n, ""
}

// toInt accepts every Go integer kind plus integral floats, which is
// what YAML and JSON decoders produce for numbers. Strings never convert.
func toInt(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), n >= math.MinInt && n <= math.MaxInt
	case uint:
		return int(n), n <= math.MaxInt
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), uint64(n) <= math.MaxInt
	case uint64:
		return int(n), n <= math.MaxInt
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

// asMapping accepts the mapping shapes decoders and callers produce.
func asMapping(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		converted := make(map[string]any, len(m))
		for k, v := range m {
			converted[k] = v
		}
		return converted, true
	case map[string]bool:
		converted := make(map[string]any, len(m))
		for k, v := range m {
			converted[k] = v
		}
		return converted, true
	case map[any]any:
		converted := make(map[string]any, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			converted[key] = v
		}
		return converted, true
	default:
		return nil, false
	}
}
