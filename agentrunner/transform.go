/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentrunner

import (
	"bytes"
	"encoding/json"
)

// LineTransform rewrites one captured stdout line for the run log. It is
// cosmetic only; capture and artifact persistence always see the raw line.
type LineTransform func(line string) string

// PrettyJSON re-serializes lines that parse as JSON documents as indented
// text and passes everything else through unchanged.
func PrettyJSON(line string) string {
	trimmed := bytes.TrimSpace([]byte(line))
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return line
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return line
	}
	return buf.String()
}

// RawLines is the identity transform.
func RawLines(line string) string { return line }
