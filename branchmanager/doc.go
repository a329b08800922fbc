/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package branchmanager prepares the git branch an invocation works in.
//
// For an open pull request the PR's head branch is fetched and reused. For
// issues and closed or merged pull requests a fresh branch is minted off the
// base ref, named prefix + entity + number + a compact UTC timestamp so
// repeated triggers never collide. In both cases the working branch is
// checked out in the workspace clone before control returns.
package branchmanager
