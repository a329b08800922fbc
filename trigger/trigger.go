/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package trigger

import (
	"strings"

	"chainguard.dev/actionagent/githubevent"
)

// Rules configures what counts as a trigger.
type Rules struct {
	// Phrase is matched as a literal, case-sensitive substring of event
	// text. Embedded occurrences count.
	Phrase string
	// AssigneeTrigger matches issues "assigned" actions whose assignee has
	// this username. A leading "@" is tolerated.
	AssigneeTrigger string
	// LabelTrigger matches issues "labeled" actions applying this label.
	LabelTrigger string
	// DirectPrompt, when non-empty, matches unconditionally and becomes the
	// matched text. It always wins over every other rule.
	DirectPrompt string
}

// Decision is the outcome of evaluating one event against the rules. When
// Matched is false every other field is zero. Decisions are never mutated
// after construction.
type Decision struct {
	Matched        bool
	MatchedText    string
	TriggeringUser string
	// CommentID is non-zero only when the match originated in a specific
	// comment.
	CommentID int64
}

// Evaluate inspects the normalized event context against the rules. It is a
// pure function with no failure modes; absent fields are treated as
// "no match".
func Evaluate(c *githubevent.Context, rules Rules) Decision {
	if rules.DirectPrompt != "" {
		return Decision{
			Matched:        true,
			MatchedText:    rules.DirectPrompt,
			TriggeringUser: c.Actor,
		}
	}

	switch c.Kind {
	case githubevent.KindIssueComment, githubevent.KindReviewComment, githubevent.KindReview:
		body := c.CommentBody()
		if rules.Phrase != "" && strings.Contains(body, rules.Phrase) {
			return Decision{
				Matched:        true,
				MatchedText:    body,
				TriggeringUser: c.Actor,
				CommentID:      c.CommentID(),
			}
		}

	case githubevent.KindIssues:
		// The assigned/labeled checks and the body/title substring checks
		// are deliberately not mutually exclusive; a later title match
		// overwrites an earlier body match in MatchedText.
		var d Decision

		if rules.AssigneeTrigger != "" && c.Action == "assigned" &&
			c.AssigneeLogin() == strings.TrimPrefix(rules.AssigneeTrigger, "@") {
			d.Matched = true
		}

		if rules.LabelTrigger != "" && c.Action == "labeled" && c.LabelName() == rules.LabelTrigger {
			d.Matched = true
		}

		if rules.Phrase != "" {
			if body := c.IssueBody(); strings.Contains(body, rules.Phrase) {
				d.Matched = true
				d.MatchedText = body
			}
			if title := c.IssueTitle(); strings.Contains(title, rules.Phrase) {
				d.Matched = true
				d.MatchedText = title
			}
		}

		if d.Matched {
			d.TriggeringUser = c.Actor
		}
		return d

	case githubevent.KindPullRequest:
		if rules.Phrase != "" && strings.Contains(c.PRBody(), rules.Phrase) {
			return Decision{
				Matched:        true,
				MatchedText:    c.PRBody(),
				TriggeringUser: c.Actor,
			}
		}
	}

	return Decision{}
}
