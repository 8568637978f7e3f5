// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package qatree

// Lookup gives parent-pointer access to a tree.
type Lookup interface {
	// ParentOf returns the parent id of id ("" for the root) and whether
	// id exists.
	ParentOf(id string) (string, bool)
}

// IsAncestorOrDescendant reports whether a and b lie on one root path.
// A node is its own ancestor.
func IsAncestorOrDescendant(l Lookup, a, b string) bool {
	return IsDescendantOf(l, a, b) || IsDescendantOf(l, b, a)
}

// IsDescendantOf reports whether id equals ancestor or is below it.
func IsDescendantOf(l Lookup, ancestor, id string) bool {
	cur := id
	// Bound the walk so a corrupted parent cycle cannot hang a render.
	for steps := 0; steps < maxDepth; steps++ {
		if cur == ancestor {
			return true
		}
		parent, ok := l.ParentOf(cur)
		if !ok || parent == "" {
			return false
		}
		cur = parent
	}
	return false
}

const maxDepth = 1 << 16
