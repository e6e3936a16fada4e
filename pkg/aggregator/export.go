// SPDX-License-Identifier: Apache-2.0
package aggregator

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export serializes all current reports in the given format ("json" or
// "yaml"), most recent first.
func (a *Aggregator) Export(format string) (string, error) {
	reports := a.Reports(Filter{})

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		out, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return "", fmt.Errorf("aggregator: export json: %w", err)
		}
		return string(out), nil
	case "yaml", "yml":
		out, err := yaml.Marshal(reports)
		if err != nil {
			return "", fmt.Errorf("aggregator: export yaml: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("aggregator: unknown export format %q", format)
	}
}
