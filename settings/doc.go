// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings is the display configuration store shared by every
// session in a process.
//
// The store accepts a fixed set of keys:
//
//   - colors: mapping with an "enabled" bool and display attributes per
//     role (eval_result, eval_error, eval_info, eval_warning,
//     stack_info, prompt)
//   - inspect: mapping of result display limits (limit, width, pretty,
//     syntax_colors, printable_limit)
//   - default_prompt, alive_prompt: prompt templates
//   - history_size: signed integer, negative for unbounded
//
// [Store.Update] validates a whole batch against a working copy and
// publishes it with one atomic pointer swap, so a failed batch changes
// nothing and readers never observe half an update. Mapping keys merge
// into the existing mapping; scalar keys replace.
//
// A Store is owned by whoever creates it and passed explicitly to the
// components that read it. There is no package-level store.
package settings
