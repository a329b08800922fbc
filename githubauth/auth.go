/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"chainguard.dev/actionagent/retry"
	"github.com/bradleyfalzon/ghinstallation/v2"
	"golang.org/x/oauth2"
)

// Options selects the credential source. Exactly one of Token or the App
// triple must be populated.
type Options struct {
	// Token is a pre-issued token (Actions-provided or PAT).
	Token string

	// AppID, InstallationID, and PrivateKey identify a GitHub App
	// installation whose tokens are minted on demand.
	AppID          int64
	InstallationID int64
	PrivateKey     []byte
}

// NewTokenSource builds a token source from the options. App-minted tokens
// are short-lived and refreshed on demand; each mint is retried with capped
// backoff since it is the one network exchange nothing downstream can
// proceed without.
func NewTokenSource(ctx context.Context, opts Options) (oauth2.TokenSource, error) {
	switch {
	case opts.Token != "" && opts.AppID != 0:
		return nil, errors.New("both a token and App credentials were provided; pick one")
	case opts.Token != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}), nil
	case opts.AppID != 0:
		if opts.InstallationID == 0 {
			return nil, errors.New("App credentials require an installation ID")
		}
		itr, err := ghinstallation.New(http.DefaultTransport, opts.AppID, opts.InstallationID, opts.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("constructing App transport: %w", err)
		}
		return &installationTokenSource{ctx: ctx, itr: itr, retryCfg: retry.DefaultConfig()}, nil
	default:
		return nil, errors.New("no credential source configured")
	}
}

// installationTokenSource adapts a ghinstallation transport to oauth2. The
// transport caches the current installation token and re-mints only when it
// expires.
type installationTokenSource struct {
	ctx      context.Context
	itr      *ghinstallation.Transport
	retryCfg retry.Config
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	token, err := retry.Do(s.ctx, s.retryCfg, "minting installation token", retry.Transient, func() (string, error) {
		return s.itr.Token(s.ctx)
	})
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token}, nil
}
