/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry provides capped exponential backoff with jitter for
// transient failures when talking to the hosting API or exchanging
// credentials.
package retry
