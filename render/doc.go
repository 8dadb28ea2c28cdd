// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns evaluated values into terminal text.
//
// [Inspect] formats a value as a literal, honoring the inspect settings:
// collections show at most limit items, strings at most printable_limit
// characters, and with pretty set a value wider than width breaks
// across indented lines. [Renderer] paints the result with the color
// role for evaluation results, or with chroma syntax highlighting when
// inspect.syntax_colors is set. With colors disabled the output carries
// no escape sequences at all.
package render
