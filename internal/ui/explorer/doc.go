// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package explorer is the terminal view of a growing question tree.
//
// The model reads everything it draws from a Controller (normally an
// *expansion.Pool) each time it is told the tree changed. A Bridge turns the
// pool's callbacks, which arrive on worker goroutines, into throttled
// program messages.
//
// # Keys
//
//	space  pause / resume
//	n      play the node budget then pause
//	f / F  focus selected / clear focus
//	d      delete selected branch
//	j / k  move selection
//	?      toggle help
//	q      quit
package explorer
