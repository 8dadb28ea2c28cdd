// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import "fmt"

// ConfigError reports a rejected key or value. Key is dotted for
// sub-keys of mappings ("colors.eval_result").
type ConfigError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "unknown key" {
		return fmt.Sprintf("unknown configuration key %q", e.Key)
	}
	return fmt.Sprintf("invalid value for %q: %#v (%s)", e.Key, e.Value, e.Reason)
}
