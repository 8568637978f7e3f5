// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"fmt"

	"github.com/jeranaias/whytree/internal/qatree"
)

const questionsFormat = `For each follow-up question, provide a numeric score from 1 to 10 rating how interesting the question may be to the asker of the original question. Format your answer as a JSON array like this: [{"question": "...", "score": 1}, {"question": "...", "score": 2}, ...]
For example, if you think the question "Why is the sky blue?" is interesting, you would write: [{"question": "Why is the sky blue?", "score": 10}]
Use the same language as the brief. Do not write in any other language.`

// memoryPrompt embeds the parent exchange ahead of an instruction.
func memoryPrompt(parent *qatree.Node, instruction string) string {
	return fmt.Sprintf(`You were previously asked this question: %s
You responded with this answer: %s
%s`, parent.Question, parent.Answer, instruction)
}

var whyFollowUp = []qatree.ScoredQuestion{{Question: "Why?", Score: 10}}

// =============================================================================
// RESEARCHER
// =============================================================================

type researcher struct{}

func (researcher) Name() string        { return "Researcher" }
func (researcher) Description() string { return "Asks lots of interesting 'why'-type follow-up questions" }

func (researcher) RandomQuestionPrompt() string {
	return "Write a random but interesting 'why' question in English that a researcher may ask. Only write the question, with no quotes."
}

func (researcher) AnswerPrompt(node qatree.Node, parent *qatree.Node) string {
	if parent == nil {
		return node.Question
	}
	return memoryPrompt(parent, "Given that context, please provide a concise answer (in the same language as the question) to this follow up question: "+node.Question)
}

func (researcher) QuestionsPrompt(node qatree.Node) string {
	return fmt.Sprintf(`You are a curious researcher that tries to uncover fundamental truths about a given "why" by repeatedly asking follow-up "why" questions. Here is the question you seek to answer: %s?
You've already done some research on the topic, and have surfaced the following brief:
---
brief: %s
---
Write 1-2 interesting "why" follow-up questions on that brief.

%s

Write your questions in the same language as the brief. For example, if the brief is in Chinese, write your questions in Chinese.
YOU MUST WRITE YOUR QUESTIONS IN THE SAME LANGUAGE AS THE BRIEF.
DO NOT WRITE IN ANY OTHER LANGUAGE BUT THE SAME LANGUAGE AS THE BRIEF.

Your answer: `, node.Question, node.Answer, questionsFormat)
}

// =============================================================================
// AUTO
// =============================================================================

type auto struct{}

func (auto) Name() string { return "Auto" }
func (auto) Description() string {
	return "Adaptively asks questions that it thinks you might be interested in"
}

func (auto) RandomQuestionPrompt() string {
	return "Write a random but interesting 'why' question. Only write the question, with no quotes."
}

func (auto) AnswerPrompt(node qatree.Node, parent *qatree.Node) string {
	if parent == nil {
		return node.Question
	}
	return memoryPrompt(parent, "Given that context, please provide a short & concise answer (in the same language as the question) to this follow up question: "+node.Question)
}

func (auto) QuestionsPrompt(node qatree.Node) string {
	return fmt.Sprintf(`Given a question/answer pair, generate a likely persona who asked that question. And then pretend you are that persona and write the most interesting 1-2 follow-up questions that this persona would enjoy learning about the most, in the same language as the information. For each follow-up question, provide the persona summary & a numeric score from 1 to 10 rating how interesting the question may be to your persona. Format your answer as a JSON array like this: [{"question": "...", "score": 1, "persona_summary": "..."}, {"question": "...", "score": 2, "persona_summary": "..."}, ...]

Your number 1 priority is to generate the most interesting questions that help your generated persona the most.

Question: %s
Information/Answer to the question: %s

For example, if you think the question "Why is the sky blue?" is interesting, you would write: [{"question": "Why is the sky blue?", "score": 10, "persona_summary": "Young man thinking about the scientific nature of the universe and our planet"}]
Your answer should be in the same language as the question.
Your answer: `, node.Question, node.Answer)
}

// =============================================================================
// HACKER NEWS
// =============================================================================

const hackerNewsFraming = `You are role-playing as a typical commenter on Hacker News; you are snarky, but insightful.

For example, if someone asks: Do you think take home assessments should be more common than coding interviews?

You may respond:

The downside of take home assessments is that anyone can do it. You could hand off the assignment to a friend, or even hire someone to do it. So figure 1 hour for the take home + 1 hour for an additional interview where we ask questions about the take home to make sure you actually know what you are doing.
At my job, we designed our interview process around the question: "what is the minimum coding exercise that we expect anyone we hire to be able to do?"
This has resulted in an interview where we do ~30 minutes of coding, stuff like: function to reverse a string, function to add an array of numbers, find the largest number in an array of integers.
From there the rest of the interview is conversational. If the candidate is frontend we may dive into X, Y, Z technology. For example, if someone has 5+ years of React experience but doesn't know what a hook is, that's a red flag, etc.
You'd be surprised how many people are absolute garbage at those simple coding questions, despite having years of experience. And everyone that cruises those questions has been a great hire thus far, assuming no other red flags like bad culture fit or poor communication etc.`

type hackerNews struct{}

func (hackerNews) Name() string        { return "Hacker News" }
func (hackerNews) Description() string { return "Simulates an Ask HN thread" }

func (hackerNews) RandomQuestionPrompt() string {
	return "Write a random but interesting 'why' question for a Hacker News audience. Only write the question, with no quotes."
}

func (hackerNews) AnswerPrompt(node qatree.Node, parent *qatree.Node) string {
	if parent == nil {
		return fmt.Sprintf("%s\n\nAnswer this question (in the same language as the question): %s", hackerNewsFraming, node.Question)
	}
	return fmt.Sprintf(`%s

Some previously asked this question: %s
Someone responded with this answer: %s

Given that context, respond to this follow-up question (in the same language as the question): %s`,
		hackerNewsFraming, parent.Question, parent.Answer, node.Question)
}

func (hackerNews) QuestionsPrompt(node qatree.Node) string {
	return fmt.Sprintf(`You are a Hacker News reader on a thread titled Ask HN: %s?
A previous commenter has written this:
---
%s
---
Write 1-2 interesting follow-up questions in response to the above. Adopt the manner of a typical commenter on Hacker News; either be snarky, funny, critical, or insightful.

%s

Your answer: `, node.Question, node.Answer, questionsFormat)
}

// =============================================================================
// TODDLERS
// =============================================================================

type toddler struct{}

func (toddler) Name() string        { return "Toddler" }
func (toddler) Description() string { return "A curious child" }

func (toddler) RandomQuestionPrompt() string {
	return "Write a random but interesting 'why' question that a toddler may ask. Only write the question, with no quotes."
}

func (toddler) AnswerPrompt(node qatree.Node, parent *qatree.Node) string {
	if parent == nil {
		return node.Question
	}
	return memoryPrompt(parent, `Given that previous answer, try to go deeper: answer "why?" to that previous answer. Pretend you're a smart toddler; keep your answer concise, short, and relevant to the subject matter.
Include emojis if relevant.`)
}

func (toddler) FixedQuestions(qatree.Node) []qatree.ScoredQuestion {
	return append([]qatree.ScoredQuestion(nil), whyFollowUp...)
}

type nihilisticToddler struct{}

func (nihilisticToddler) Name() string        { return "Nihilistic Toddler" }
func (nihilisticToddler) Description() string { return "???" }

func (nihilisticToddler) RandomQuestionPrompt() string {
	return "Write a random but interesting 'why' question that a reader of Nietzsche may ask. Don't mention Nietzche himself, only address topics he would be interested in. Write in the tone of a toddler. Only write the question, with no quotes."
}

func (nihilisticToddler) AnswerPrompt(node qatree.Node, parent *qatree.Node) string {
	if parent == nil {
		return node.Question
	}
	return memoryPrompt(parent, fmt.Sprintf(`Given the main topic/thesis of that previous answer, try to go deeper in a cynical way: answer "why?". Keep it relevant to the subject matter. Pretend you are a British child. Act like a child!! Include emojis if relevant and keep your answer extremely short. Do NOT say 'we might as well give up.'

Your answer should be in the same language as the question.
Your answer: %s`, node.Question))
}

func (nihilisticToddler) FixedQuestions(qatree.Node) []qatree.ScoredQuestion {
	return append([]qatree.ScoredQuestion(nil), whyFollowUp...)
}
