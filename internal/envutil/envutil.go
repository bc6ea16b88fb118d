// Package envutil provides helpers for environment detection.
package envutil

import "os"

// IsDev returns true when running in development mode.
// Set PAWFRONT_ENV=development to allow cookies over plain HTTP.
func IsDev() bool {
	return os.Getenv("PAWFRONT_ENV") == "development"
}
