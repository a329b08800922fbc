/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package githubauth yields the OAuth2 token source the rest of the agent
// uses to talk to the hosting API, from either a pre-issued token or GitHub
// App installation credentials.
package githubauth
