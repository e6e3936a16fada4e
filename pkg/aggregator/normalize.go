// SPDX-License-Identifier: Apache-2.0
package aggregator

import (
	"regexp"
	"strings"

	"github.com/openjurist/lexgate/pkg/errors"
)

// Normalization replaces volatile substrings so that structurally identical
// failures share one signature instead of exploding into thousands of
// reports. Order matters: timestamps and UUIDs before bare numbers.
var (
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`)
	uuidRe      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	tokenRe     = regexp.MustCompile(`[A-Za-z0-9_\-]{24,}`)
	numberRe    = regexp.MustCompile(`\b\d+\b`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// normalizeMessage strips timestamps, UUIDs, token-like runs and bare
// numbers from an error message.
func normalizeMessage(msg string) string {
	msg = timestampRe.ReplaceAllString(msg, "<ts>")
	msg = uuidRe.ReplaceAllString(msg, "<uuid>")
	msg = tokenRe.ReplaceAllString(msg, "<token>")
	msg = numberRe.ReplaceAllString(msg, "<n>")
	msg = spaceRe.ReplaceAllString(msg, " ")
	return strings.TrimSpace(msg)
}

// Signature derives the grouping key for an error: category, severity,
// normalized message and endpoint, lower-cased and joined.
func Signature(ge *errors.GatewayError) string {
	parts := []string{
		string(ge.Category),
		string(ge.Severity),
		normalizeMessage(ge.Message),
		ge.Endpoint,
	}
	return strings.ToLower(strings.Join(parts, "|"))
}
