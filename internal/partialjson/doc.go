// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package partialjson closes truncated JSON so a streamed model response can
// be parsed before it is complete.
//
// Repair never fails. Its output is not guaranteed to be valid JSON (a
// dangling object key cannot be closed meaningfully), so callers treat a
// decode error as "nothing parseable yet" and try again on the next chunk.
package partialjson
