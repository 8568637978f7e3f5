// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package view projects a tree snapshot into renderable nodes and edges.
//
// Every tree node yields a question element "q-<id>" and, once it has
// answer text, an answer element "a-<id>". Edges run question -> answer and
// parent answer -> child question. The projection is pure and ordered
// breadth first, so equal snapshots render identically.
package view
