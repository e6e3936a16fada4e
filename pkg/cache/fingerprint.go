// SPDX-License-Identifier: Apache-2.0
package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies one logical (endpoint, parameter-set) request.
type Fingerprint uint64

// NewFingerprint derives a deterministic fingerprint from an endpoint name
// and its parameters. Parameters are serialized sorted by key, so permuted
// maps describing the same request always produce the same fingerprint.
// Empty parameter sets collapse to the endpoint name alone.
func NewFingerprint(endpoint string, params map[string]interface{}) Fingerprint {
	if len(params) == 0 {
		return Fingerprint(xxhash.Sum64String(endpoint))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", params[k])
	}
	return Fingerprint(xxhash.Sum64String(b.String()))
}
