/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package trigger_test

import (
	"fmt"
	"testing"

	"chainguard.dev/actionagent/githubevent"
	"chainguard.dev/actionagent/trigger"
	"github.com/google/go-cmp/cmp"
)

func commentEvent(t *testing.T, body string) *githubevent.Context {
	t.Helper()
	payload := fmt.Sprintf(`{
	  "action": "created",
	  "issue": {"number": 42, "title": "t"},
	  "comment": {"id": 555, "body": %q, "user": {"login": "octocat"}},
	  "repository": {"name": "widgets", "owner": {"login": "acme"}}
	}`, body)
	c, err := githubevent.Parse("issue_comment", []byte(payload))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return c
}

func issuesEvent(t *testing.T, action, title, body, assignee, label string) *githubevent.Context {
	t.Helper()
	payload := fmt.Sprintf(`{
	  "action": %q,
	  "issue": {"number": 5, "title": %q, "body": %q},
	  "assignee": {"login": %q},
	  "label": {"name": %q},
	  "sender": {"login": "maintainer"},
	  "repository": {"name": "widgets", "owner": {"login": "acme"}}
	}`, action, title, body, assignee, label)
	c, err := githubevent.Parse("issues", []byte(payload))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return c
}

func TestEvaluateCommentSubstring(t *testing.T) {
	t.Parallel()
	rules := trigger.Rules{Phrase: "@claude"}

	for _, tc := range []struct {
		name string
		body string
		want trigger.Decision
	}{
		{
			name: "phrase at start",
			body: "@claude please fix the bug",
			want: trigger.Decision{Matched: true, MatchedText: "@claude please fix the bug", TriggeringUser: "octocat", CommentID: 555},
		},
		{
			name: "phrase embedded mid-word",
			body: "ping x@claudey about this",
			want: trigger.Decision{Matched: true, MatchedText: "ping x@claudey about this", TriggeringUser: "octocat", CommentID: 555},
		},
		{
			name: "no phrase",
			body: "unrelated text",
			want: trigger.Decision{},
		},
		{
			name: "case sensitive",
			body: "@Claude please",
			want: trigger.Decision{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := trigger.Evaluate(commentEvent(t, tc.body), rules)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvaluateDirectPromptAlwaysWins(t *testing.T) {
	t.Parallel()
	got := trigger.Evaluate(commentEvent(t, "unrelated text"), trigger.Rules{
		Phrase:       "@claude",
		DirectPrompt: "do X",
	})
	want := trigger.Decision{Matched: true, MatchedText: "do X", TriggeringUser: "octocat"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateIssuesEvent(t *testing.T) {
	t.Parallel()

	t.Run("assignee match", func(t *testing.T) {
		c := issuesEvent(t, "assigned", "plain", "plain", "claude-bot", "")
		got := trigger.Evaluate(c, trigger.Rules{AssigneeTrigger: "@claude-bot"})
		want := trigger.Decision{Matched: true, TriggeringUser: "maintainer"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("label match", func(t *testing.T) {
		c := issuesEvent(t, "labeled", "plain", "plain", "", "assistant")
		got := trigger.Evaluate(c, trigger.Rules{LabelTrigger: "assistant"})
		want := trigger.Decision{Matched: true, TriggeringUser: "maintainer"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("body match carries body text", func(t *testing.T) {
		c := issuesEvent(t, "opened", "plain title", "@claude do the thing", "", "")
		got := trigger.Evaluate(c, trigger.Rules{Phrase: "@claude"})
		want := trigger.Decision{Matched: true, MatchedText: "@claude do the thing", TriggeringUser: "maintainer"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("title overrides body in matched text", func(t *testing.T) {
		c := issuesEvent(t, "opened", "@claude in title", "@claude in body", "", "")
		got := trigger.Evaluate(c, trigger.Rules{Phrase: "@claude"})
		if !got.Matched {
			t.Fatal("expected a match")
		}
		if got.MatchedText != "@claude in title" {
			t.Errorf("MatchedText: got %q, want title text", got.MatchedText)
		}
	})

	t.Run("label match plus body match keeps body text", func(t *testing.T) {
		c := issuesEvent(t, "labeled", "plain", "@claude also in body", "", "assistant")
		got := trigger.Evaluate(c, trigger.Rules{Phrase: "@claude", LabelTrigger: "assistant"})
		want := trigger.Decision{Matched: true, MatchedText: "@claude also in body", TriggeringUser: "maintainer"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("assigned action with wrong assignee", func(t *testing.T) {
		c := issuesEvent(t, "assigned", "plain", "plain", "someone-else", "")
		got := trigger.Evaluate(c, trigger.Rules{AssigneeTrigger: "claude-bot"})
		if got.Matched {
			t.Errorf("expected no match, got %+v", got)
		}
	})
}

func TestEvaluatePullRequestBodyOnly(t *testing.T) {
	t.Parallel()
	payload := `{
	  "action": "opened",
	  "pull_request": {"number": 9, "body": "@claude review this", "title": "@claude in title"},
	  "sender": {"login": "contributor"},
	  "repository": {"name": "widgets", "owner": {"login": "acme"}}
	}`
	c, err := githubevent.Parse("pull_request", []byte(payload))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got := trigger.Evaluate(c, trigger.Rules{Phrase: "@claude"})
	want := trigger.Decision{Matched: true, MatchedText: "@claude review this", TriggeringUser: "contributor"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateNoRules(t *testing.T) {
	t.Parallel()
	got := trigger.Evaluate(commentEvent(t, "@claude hi"), trigger.Rules{})
	if got.Matched {
		t.Errorf("expected no match with empty rules, got %+v", got)
	}
}
