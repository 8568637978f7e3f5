// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persona provides the prompt strategies that decide what the model
// is asked for each node.
//
// Every persona builds an answer prompt. Model-driven personas also build a
// follow-up questions prompt (QuestionsPrompter); the toddler personas skip
// the model and always ask "Why?" (FixedQuestioner).
//
// Root nodes are answered from their bare question (or a persona framing).
// Other nodes embed the parent's question and answer as memory.
package persona
