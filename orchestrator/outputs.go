/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"fmt"
	"os"
)

// WriteActionsOutputs appends the invocation's output contract to the GitHub
// Actions outputs file at path: conclusion always, execution_file when an
// artifact was produced.
func WriteActionsOutputs(path string, oc *Outcome) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening outputs file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "conclusion=%s\n", oc.Conclusion); err != nil {
		return fmt.Errorf("writing conclusion: %w", err)
	}
	if oc.ExecutionFile != "" {
		if _, err := fmt.Fprintf(f, "execution_file=%s\n", oc.ExecutionFile); err != nil {
			return fmt.Errorf("writing execution_file: %w", err)
		}
	}
	return nil
}
