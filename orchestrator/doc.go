/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package orchestrator drives one invocation end to end: normalize the
// event, evaluate the trigger, provision the working branch, assemble the
// capability configuration, and run the assistant, mapping the outcome onto
// the process output contract.
package orchestrator
