/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package statuscomment

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"
)

// Tracker creates and finalizes the tracking comment for one repository.
// Exactly one comment evolves per run; the comment ID returned by Create is
// what scopes the assistant's status-update capability.
type Tracker struct {
	gh    *github.Client
	gql   *githubv4.Client
	owner string
	repo  string
}

// New constructs a Tracker. The GraphQL client is passed explicitly so tests
// can point it at a fake endpoint.
func New(gh *github.Client, gql *githubv4.Client, owner, repo string) *Tracker {
	return &Tracker{gh: gh, gql: gql, owner: owner, repo: repo}
}

// Create posts the initial "working" comment on the issue or PR and returns
// its ID.
func (t *Tracker) Create(ctx context.Context, number int, user string) (int64, error) {
	body := "🤖 Working on it…"
	if user != "" {
		body = fmt.Sprintf("🤖 Working on @%s's request…", user)
	}

	comment, _, err := t.gh.Issues.CreateComment(ctx, t.owner, t.repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		return 0, fmt.Errorf("creating tracking comment: %w", err)
	}

	clog.FromContext(ctx).With("comment_id", comment.GetID()).Info("Created tracking comment")
	return comment.GetID(), nil
}

// Outcome is the terminal state reported on the tracking comment.
type Outcome struct {
	Succeeded bool
	// WorkingBranch, when set, is linked from the final comment body.
	WorkingBranch string
}

// Finalize rewrites the tracking comment with the run's outcome. It is called
// on every terminal path, success or not.
func (t *Tracker) Finalize(ctx context.Context, commentID int64, oc Outcome) error {
	var body string
	switch {
	case oc.Succeeded && oc.WorkingBranch != "":
		body = fmt.Sprintf("✅ Done. Changes are on [`%s`](https://github.com/%s/%s/tree/%s).",
			oc.WorkingBranch, t.owner, t.repo, oc.WorkingBranch)
	case oc.Succeeded:
		body = "✅ Done."
	case oc.WorkingBranch != "":
		body = fmt.Sprintf("❌ Something went wrong. Partial work may be on [`%s`](https://github.com/%s/%s/tree/%s); check the run log for details.",
			oc.WorkingBranch, t.owner, t.repo, oc.WorkingBranch)
	default:
		body = "❌ Something went wrong before any changes were made; check the run log for details."
	}

	if _, _, err := t.gh.Issues.EditComment(ctx, t.owner, t.repo, commentID, &github.IssueComment{
		Body: github.Ptr(body),
	}); err != nil {
		return fmt.Errorf("finalizing tracking comment: %w", err)
	}
	return nil
}

// Comment is one conversation entry in a Thread.
type Comment struct {
	Author string
	Body   string
}

// Thread is the conversation context around the triggering issue or PR.
type Thread struct {
	Title    string
	Body     string
	Author   string
	Comments []Comment
}

// threadFields is the per-type fragment shared by the issue and PR arms of
// the union query.
type threadFields struct {
	Title  string
	Body   string
	Author struct {
		Login string
	}
	Comments struct {
		Nodes []struct {
			Author struct {
				Login string
			}
			Body string
		}
	} `graphql:"comments(last: 20)"`
}

// FetchThread retrieves title, body, author, and the most recent comments of
// the issue or PR in a single GraphQL query.
func (t *Tracker) FetchThread(ctx context.Context, number int) (*Thread, error) {
	var query struct {
		Repository struct {
			IssueOrPullRequest struct {
				Typename    string       `graphql:"__typename"`
				Issue       threadFields `graphql:"... on Issue"`
				PullRequest threadFields `graphql:"... on PullRequest"`
			} `graphql:"issueOrPullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	variables := map[string]any{
		"owner":  githubv4.String(t.owner),
		"repo":   githubv4.String(t.repo),
		"number": githubv4.Int(number), //nolint: gosec
	}

	if err := t.gql.Query(ctx, &query, variables); err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}

	fields := query.Repository.IssueOrPullRequest.Issue
	if query.Repository.IssueOrPullRequest.Typename == "PullRequest" {
		fields = query.Repository.IssueOrPullRequest.PullRequest
	}

	thread := &Thread{
		Title:  fields.Title,
		Body:   fields.Body,
		Author: fields.Author.Login,
	}
	for _, node := range fields.Comments.Nodes {
		thread.Comments = append(thread.Comments, Comment{
			Author: node.Author.Login,
			Body:   node.Body,
		})
	}
	return thread, nil
}
