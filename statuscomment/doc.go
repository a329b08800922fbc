/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package statuscomment maintains the single tracking comment that reports
// run progress on the triggering issue or pull request, and fetches the
// surrounding conversation thread to seed the assistant's prompt.
//
// The comment is created once per run and edited in place: Create posts the
// "working" body and Finalize rewrites it with the terminal verdict. Thread
// fetching goes through the GraphQL API so one query covers both issues and
// pull requests.
package statuscomment
