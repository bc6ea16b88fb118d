// Package urlutil provides URL construction helpers.
package urlutil

import "strings"

// Join joins a base URL with path segments, normalizing slashes between
// each part. Query strings in the final segment are preserved as-is.
func Join(base string, segments ...string) string {
	result := strings.TrimRight(base, "/")
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		result += "/" + strings.Trim(segment, "/")
	}
	return result
}
