// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratelimit enforces the relay's free prompt quota.
//
// Each client fingerprint gets a fixed number of prompts per UTC day and per
// model. Bursts within the quota are additionally smoothed with a token
// bucket so a single client cannot open many streams at once.
package ratelimit
