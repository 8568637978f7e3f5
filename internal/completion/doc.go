// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion streams text completions from a language model.
//
// Two transports share the Streamer contract:
//
//   - Direct: talks to an OpenAI-compatible /chat/completions endpoint with
//     the caller's API key and parses the "data: <json>" SSE framing.
//   - Relayed: opens a WebSocket to a whytree relay, sends the prompt as the
//     first message and receives raw text chunks until "[DONE]".
//
// # Contract
//
// onChunk is called zero or more times, in order, with non-overlapping text
// fragments. Stream returns exactly once and onChunk is never called after
// it returns. Cancelling ctx aborts the underlying request or socket.
//
// # Temperature
//
// Temperature is validated at construction:
//
//	temp, err := completion.NewTemperature(0.7)
//	if err != nil {
//	    return err // errors.Is(err, completion.ErrInvalidTemperature)
//	}
//	err = client.Stream(ctx, prompt, completion.Options{
//	    Model:       "gpt-3.5-turbo",
//	    Temperature: temp,
//	}, func(chunk string) { fmt.Print(chunk) })
package completion
