/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubevent

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/go-github/v75/github"
)

// ErrMalformedEvent indicates the event payload is missing objects required
// for its declared kind. It is fatal; malformed input is never retried.
var ErrMalformedEvent = errors.New("malformed event payload")

// Kind identifies the webhook event shape carried by a Context.
type Kind string

const (
	KindIssueComment  Kind = "issue_comment"
	KindReviewComment Kind = "pull_request_review_comment"
	KindReview        Kind = "pull_request_review"
	KindIssues        Kind = "issues"
	KindPullRequest   Kind = "pull_request"
)

// Context is an immutable snapshot of a single triggering event. It is
// constructed once per invocation by Parse and read-only afterward. Raw keeps
// the original payload so downstream components can query fields on demand
// without re-reading the event file.
type Context struct {
	Owner  string
	Repo   string
	Kind   Kind
	Action string
	Number int
	IsPR   bool
	Actor  string
	Raw    json.RawMessage

	event any
}

// Parse normalizes a raw event document of the given kind into a Context.
// It fails with an ErrMalformedEvent-wrapped error when required sub-objects
// for the declared kind are absent. Parse has no side effects.
func Parse(kind string, payload []byte) (*Context, error) {
	event, err := github.ParseWebHook(kind, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s event: %v", ErrMalformedEvent, kind, err)
	}

	c := &Context{
		Kind:  Kind(kind),
		Raw:   append(json.RawMessage(nil), payload...),
		event: event,
	}

	switch ev := event.(type) {
	case *github.IssueCommentEvent:
		if ev.Issue == nil || ev.Comment == nil {
			return nil, fmt.Errorf("%w: issue_comment event missing issue or comment", ErrMalformedEvent)
		}
		if ev.Comment.User == nil {
			return nil, fmt.Errorf("%w: issue_comment event missing comment author", ErrMalformedEvent)
		}
		c.Action = ev.GetAction()
		c.Number = ev.Issue.GetNumber()
		// The issue object carries a pull_request linkage field exactly when
		// the comment lives on a pull request. This is the only way to tell
		// the two apart without a dedicated PR payload.
		c.IsPR = ev.Issue.PullRequestLinks != nil
		c.Actor = ev.Comment.User.GetLogin()
		c.setRepo(ev.Repo)

	case *github.PullRequestReviewCommentEvent:
		if ev.PullRequest == nil || ev.Comment == nil {
			return nil, fmt.Errorf("%w: review_comment event missing pull request or comment", ErrMalformedEvent)
		}
		if ev.Comment.User == nil {
			return nil, fmt.Errorf("%w: review_comment event missing comment author", ErrMalformedEvent)
		}
		c.Action = ev.GetAction()
		c.Number = ev.PullRequest.GetNumber()
		c.IsPR = true
		c.Actor = ev.Comment.User.GetLogin()
		c.setRepo(ev.Repo)

	case *github.PullRequestReviewEvent:
		if ev.PullRequest == nil || ev.Review == nil {
			return nil, fmt.Errorf("%w: review event missing pull request or review", ErrMalformedEvent)
		}
		if ev.Review.User == nil {
			return nil, fmt.Errorf("%w: review event missing review author", ErrMalformedEvent)
		}
		c.Action = ev.GetAction()
		c.Number = ev.PullRequest.GetNumber()
		c.IsPR = true
		c.Actor = ev.Review.User.GetLogin()
		c.setRepo(ev.Repo)

	case *github.IssuesEvent:
		if ev.Issue == nil {
			return nil, fmt.Errorf("%w: issues event missing issue", ErrMalformedEvent)
		}
		if ev.Sender == nil {
			return nil, fmt.Errorf("%w: issues event missing sender", ErrMalformedEvent)
		}
		c.Action = ev.GetAction()
		c.Number = ev.Issue.GetNumber()
		c.IsPR = false
		c.Actor = ev.Sender.GetLogin()
		c.setRepo(ev.Repo)

	case *github.PullRequestEvent:
		if ev.PullRequest == nil {
			return nil, fmt.Errorf("%w: pull_request event missing pull request", ErrMalformedEvent)
		}
		if ev.Sender == nil {
			return nil, fmt.Errorf("%w: pull_request event missing sender", ErrMalformedEvent)
		}
		c.Action = ev.GetAction()
		c.Number = ev.PullRequest.GetNumber()
		c.IsPR = true
		c.Actor = ev.Sender.GetLogin()
		c.setRepo(ev.Repo)

	default:
		return nil, fmt.Errorf("%w: unsupported event kind %q", ErrMalformedEvent, kind)
	}

	if c.Owner == "" || c.Repo == "" {
		return nil, fmt.Errorf("%w: %s event missing repository", ErrMalformedEvent, kind)
	}

	return c, nil
}

func (c *Context) setRepo(repo *github.Repository) {
	if repo == nil {
		return
	}
	c.Owner = repo.GetOwner().GetLogin()
	c.Repo = repo.GetName()
}

// CommentBody returns the body of the comment or review that produced this
// event, or "" when the event carries neither.
func (c *Context) CommentBody() string {
	switch ev := c.event.(type) {
	case *github.IssueCommentEvent:
		return ev.Comment.GetBody()
	case *github.PullRequestReviewCommentEvent:
		return ev.Comment.GetBody()
	case *github.PullRequestReviewEvent:
		return ev.Review.GetBody()
	}
	return ""
}

// CommentID returns the identifier of the originating comment, or 0 when the
// event did not originate in a specific comment.
func (c *Context) CommentID() int64 {
	switch ev := c.event.(type) {
	case *github.IssueCommentEvent:
		return ev.Comment.GetID()
	case *github.PullRequestReviewCommentEvent:
		return ev.Comment.GetID()
	}
	return 0
}

// IssueBody returns the issue body for issues events, or "".
func (c *Context) IssueBody() string {
	if ev, ok := c.event.(*github.IssuesEvent); ok {
		return ev.Issue.GetBody()
	}
	return ""
}

// IssueTitle returns the issue title for issues events, or "".
func (c *Context) IssueTitle() string {
	if ev, ok := c.event.(*github.IssuesEvent); ok {
		return ev.Issue.GetTitle()
	}
	return ""
}

// AssigneeLogin returns the username assigned by an issues "assigned"
// action, or "".
func (c *Context) AssigneeLogin() string {
	if ev, ok := c.event.(*github.IssuesEvent); ok {
		return ev.Assignee.GetLogin()
	}
	return ""
}

// LabelName returns the label applied by an issues "labeled" action, or "".
func (c *Context) LabelName() string {
	if ev, ok := c.event.(*github.IssuesEvent); ok {
		return ev.Label.GetName()
	}
	return ""
}

// PRBody returns the pull request body for pull_request events, or "".
func (c *Context) PRBody() string {
	if ev, ok := c.event.(*github.PullRequestEvent); ok {
		return ev.PullRequest.GetBody()
	}
	return ""
}

// EntityKind returns "pr" or "issue", used when minting branch names.
func (c *Context) EntityKind() string {
	if c.IsPR {
		return "pr"
	}
	return "issue"
}
