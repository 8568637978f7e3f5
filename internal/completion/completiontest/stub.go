// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completiontest provides a scripted completion.Streamer for tests.
package completiontest

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/whytree/internal/completion"
)

// Response scripts one Stream call.
type Response struct {
	Chunks []string

	// Err is returned after all chunks were delivered.
	Err error

	// Delay is slept before each chunk. Cancellation is honoured.
	Delay time.Duration
}

// Call records one Stream invocation.
type Call struct {
	Prompt string
	Opts   completion.Options
}

// Stub is a completion.Streamer that replays scripted responses.
type Stub struct {
	mu        sync.Mutex
	responses []Response
	calls     []Call

	// Respond, if set, answers calls once the scripted responses run out.
	Respond func(prompt string) Response
}

// New creates a stub that returns responses in order.
func New(responses ...Response) *Stub {
	return &Stub{responses: responses}
}

// Chunks is shorthand for a successful response.
func Chunks(chunks ...string) Response {
	return Response{Chunks: chunks}
}

// Push appends scripted responses.
func (s *Stub) Push(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Calls returns the recorded calls.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Stream implements completion.Streamer.
func (s *Stub) Stream(ctx context.Context, prompt string, opts completion.Options, onChunk func(string)) error {
	if err := opts.Temperature.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, Opts: opts})
	var resp Response
	switch {
	case len(s.responses) > 0:
		resp = s.responses[0]
		s.responses = s.responses[1:]
	case s.Respond != nil:
		resp = s.Respond(prompt)
	}
	s.mu.Unlock()

	for _, chunk := range resp.Chunks {
		if resp.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(resp.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		onChunk(chunk)
	}
	return resp.Err
}
