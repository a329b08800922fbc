/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"chainguard.dev/actionagent/branchmanager"
	"chainguard.dev/actionagent/githubevent"
	"chainguard.dev/actionagent/promptbuilder"
	"chainguard.dev/actionagent/statuscomment"
	"chainguard.dev/actionagent/trigger"
	"github.com/chainguard-dev/clog"
)

// defaultPromptTemplate is the built-in instruction template. Overrides must
// declare the same bindings.
const defaultPromptTemplate = `You are working in {{repository}} on {{entity_kind}} #{{entity_number}}.

The working branch {{working_branch}} is checked out, based on {{base_branch}}.
Commit your changes to the working branch only.

The request:
{{request}}

Conversation so far:
{{thread}}
`

// buildPrompt renders the instruction prompt from the event, the trigger
// decision, and the branch state. Thread context is fetched best-effort:
// the triggering request alone is enough to act on.
func (o *Orchestrator) buildPrompt(ctx context.Context, c *githubevent.Context, d trigger.Decision, state *branchmanager.State, template string) (string, error) {
	if template == "" {
		template = defaultPromptTemplate
	}

	request := d.MatchedText
	if request == "" {
		// Assignment and label triggers carry no text of their own.
		request = fmt.Sprintf("Address %s #%d.", c.EntityKind(), c.Number)
	}

	threadContext := ""
	if thread, err := o.tracker.FetchThread(ctx, c.Number); err != nil {
		clog.FromContext(ctx).With("error", err).Warn("Fetching thread context failed, continuing without it")
	} else {
		threadContext = formatThread(thread)
	}

	prompt := promptbuilder.New(template)
	for name, value := range map[string]string{
		"repository":     c.Owner + "/" + c.Repo,
		"entity_kind":    c.EntityKind(),
		"entity_number":  fmt.Sprintf("%d", c.Number),
		"working_branch": state.WorkingBranch,
		"base_branch":    state.BaseBranch,
		"request":        request,
		"thread":         threadContext,
	} {
		next, err := prompt.Bind(name, value)
		if err != nil {
			return "", err
		}
		prompt = next
	}

	return prompt.Build()
}

// formatThread flattens the conversation into plain text for the prompt.
func formatThread(t *statuscomment.Thread) string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", t.Title)
	fmt.Fprintf(&b, "Opened by @%s:\n%s\n", t.Author, t.Body)
	for _, c := range t.Comments {
		fmt.Fprintf(&b, "\n@%s:\n%s\n", c.Author, c.Body)
	}
	return b.String()
}
