// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package expansion grows a question/answer tree with a pool of concurrent
// expansion processes.
//
// Each Process repeatedly pops a node id from a shared WorkQueue, streams
// the node's answer, then streams its follow-up questions. Children appear
// as soon as their slot shows up in the partially parsed JSON and are
// enqueued once the round ends.
//
// # State Machine
//
//	AwaitingWork -> GeneratingAnswer -> GeneratingQuestions -> AwaitingWork
//	     ^                |
//	     +----------------+  (answer failed: node marked failed)
//
// A Process only leaves AwaitingWork while playing. Pausing takes effect at
// the next AwaitingWork; until then the process is paused but not yet
// "fully paused".
//
// # Usage
//
//	tree, queue := expansion.Seed("Why is the sky blue?")
//	pool, err := expansion.NewPool(2, tree, queue, expansion.Config{
//	    Streamer: completion.NewDirect(apiKey),
//	    Persona:  persona.Default(),
//	    OnChange: func(s qatree.Snapshot) { render(s) },
//	})
//	if err != nil {
//	    return err
//	}
//	pool.Run(ctx)
//	pool.ResumeWithBudget(20)
//	defer pool.Destroy()
//
// # Concurrency
//
// Queue pops, node creation and the StartedProcessing check-and-set are
// each single critical sections, so no node is dequeued or answered twice.
// Callbacks run outside those locks, from the process goroutines.
package expansion
