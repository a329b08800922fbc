/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package branchmanager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chainguard.dev/actionagent/githubevent"
	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// ErrBranchOperation indicates a git or hosting-API failure while preparing
// the working branch. It is fatal for the invocation.
var ErrBranchOperation = errors.New("branch operation failed")

// minFetchDepth is the smallest fetch depth used when reusing a PR branch.
// PR branches need enough history for the assistant to diff against base.
const minFetchDepth = 20

// now is a seam so tests can pin branch-name timestamps.
var now = time.Now

// Manager prepares the working branch for one invocation. It operates on the
// local workspace clone and on the remote ref namespace through the hosting
// API.
type Manager struct {
	gh          *github.Client
	repoPath    string
	tokenSource oauth2.TokenSource
}

// Options tune branch resolution.
type Options struct {
	// BaseBranchOverride anchors freshly minted branches to this ref instead
	// of the repository default branch.
	BaseBranchOverride string
	// Prefix is prepended to minted branch names, e.g. "claude/".
	Prefix string
}

// State describes the branch the invocation operates in. WorkingBranch is
// checked out in the working tree by the time State is returned; the record
// is never mutated afterward.
type State struct {
	BaseBranch    string
	WorkingBranch string
	NewlyCreated  bool
}

// New constructs a Manager over the local clone at repoPath. The token
// source may be nil when the clone's origin needs no authentication.
func New(gh *github.Client, repoPath string, tokenSource oauth2.TokenSource) *Manager {
	return &Manager{gh: gh, repoPath: repoPath, tokenSource: tokenSource}
}

// Resolve decides and executes one of: reuse the open PR's head branch, or
// mint a fresh branch from a base ref (for issues and closed/merged PRs).
// All failures wrap ErrBranchOperation.
func (m *Manager) Resolve(ctx context.Context, c *githubevent.Context, opts Options) (*State, error) {
	log := clog.FromContext(ctx)

	if c.IsPR {
		pr, _, err := m.gh.PullRequests.Get(ctx, c.Owner, c.Repo, c.Number)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching PR #%d: %v", ErrBranchOperation, c.Number, err)
		}

		if pr.GetState() == "open" {
			head := pr.GetHead().GetRef()
			depth := max(pr.GetCommits(), minFetchDepth)

			log.With("branch", head).With("depth", depth).Info("Reusing open PR branch")
			if err := m.fetchAndCheckout(ctx, head, depth); err != nil {
				return nil, fmt.Errorf("%w: checking out PR branch %s: %v", ErrBranchOperation, head, err)
			}

			return &State{
				BaseBranch:    pr.GetBase().GetRef(),
				WorkingBranch: head,
				NewlyCreated:  false,
			}, nil
		}

		log.With("state", pr.GetState()).Info("PR is not open, falling back to a fresh branch")
	}

	return m.mintBranch(ctx, c, opts)
}

// mintBranch creates a new remote ref off the source branch tip, fetches it
// shallowly, and checks it out. Fresh branches need no history beyond the
// fork point, so the fetch depth is 1.
func (m *Manager) mintBranch(ctx context.Context, c *githubevent.Context, opts Options) (*State, error) {
	log := clog.FromContext(ctx)

	source := opts.BaseBranchOverride
	if source == "" {
		repo, _, err := m.gh.Repositories.Get(ctx, c.Owner, c.Repo)
		if err != nil {
			return nil, fmt.Errorf("%w: resolving default branch: %v", ErrBranchOperation, err)
		}
		source = repo.GetDefaultBranch()
	}

	// The UTC timestamp suffix makes the name unique per invocation, so
	// re-triggering the same entity never collides.
	name := opts.Prefix + c.EntityKind() + "-" + strconv.Itoa(c.Number) + "-" + now().UTC().Format("20060102_150405")

	ref, _, err := m.gh.Git.GetRef(ctx, c.Owner, c.Repo, "heads/"+source)
	if err != nil {
		return nil, fmt.Errorf("%w: reading tip of %s: %v", ErrBranchOperation, source, err)
	}
	sha := ref.GetObject().GetSHA()

	log.With("branch", name).With("source", source).With("sha", sha).Info("Creating working branch")
	if _, _, err := m.gh.Git.CreateRef(ctx, c.Owner, c.Repo, github.CreateRef{
		Ref: "refs/heads/" + name,
		SHA: sha,
	}); err != nil {
		return nil, fmt.Errorf("%w: creating ref %s: %v", ErrBranchOperation, name, err)
	}

	if err := m.fetchAndCheckout(ctx, name, 1); err != nil {
		return nil, fmt.Errorf("%w: checking out %s: %v", ErrBranchOperation, name, err)
	}

	return &State{
		BaseBranch:    source,
		WorkingBranch: name,
		NewlyCreated:  true,
	}, nil
}

// fetchAndCheckout fetches the named branch from origin at the given depth
// and checks it out as a local branch pointing at the fetched tip.
func (m *Manager) fetchAndCheckout(ctx context.Context, branch string, depth int) error {
	repo, err := git.PlainOpen(m.repoPath)
	if err != nil {
		return fmt.Errorf("opening workspace clone: %w", err)
	}

	auth, err := m.authForRemote()
	if err != nil {
		return fmt.Errorf("getting token: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))
	fetch := func(depth int) error {
		err := repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: "origin",
			RefSpecs:   []gitconfig.RefSpec{refSpec},
			Depth:      depth,
			Tags:       git.NoTags,
			Auth:       auth,
		})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return err
	}

	if err := fetch(depth); err != nil {
		// Not every remote serves shallow clients; depth is an optimization,
		// not a requirement.
		clog.FromContext(ctx).With("depth", depth).With("error", err).
			Debug("Shallow fetch failed, retrying full fetch")
		if err := fetch(0); err != nil {
			return fmt.Errorf("fetching %s: %w", branch, err)
		}
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return fmt.Errorf("resolving fetched ref %s: %w", branch, err)
	}

	localRef := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(localRef, remoteRef.Hash())); err != nil {
		return fmt.Errorf("setting local branch %s: %w", branch, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: localRef, Force: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", branch, err)
	}

	return nil
}

func (m *Manager) authForRemote() (*githttp.BasicAuth, error) {
	if m.tokenSource == nil {
		return nil, nil
	}
	token, err := m.tokenSource.Token()
	if err != nil {
		return nil, err
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token.AccessToken,
	}, nil
}
