// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay implements the operator-run completion relay.
//
// The relay holds the provider API key so clients without one can explore a
// limited number of trees per day. A client first redeems a prompt from its
// daily quota, receiving a session token, then opens one WebSocket per
// completion:
//
//	POST /api/use-prompt?fp=<fingerprint>&model=<model>  -> {"session_token": ...}
//	GET  /ws  first message {"prompt", "temperature", "model", "session_token"}
//	          then text chunks, then "[DONE]"
//
// Failures are sent in band as {"error": "...", "code": "..."} before the
// socket closes.
//
// # Endpoints
//
//   - GET  /ws: WebSocket completion relay
//   - GET  /api/remaining, /api/prompts-remaining: quota left for a fingerprint
//   - POST /api/use-prompt: redeem one prompt for a session token
//   - GET  /api/examples, /api/examples/{id}: curated saved trees
//   - GET  /health, /metrics
package relay
