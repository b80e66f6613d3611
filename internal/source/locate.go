// Package source finds, generates and reads the CSV input of the staging
// pipeline.
package source

import (
	"os"
	"path/filepath"
)

// Locate returns the first existing path among dataDir/filename and
// ./filename. When neither exists it returns dataDir/filename, which the
// fixture generator is expected to create.
func Locate(dataDir, filename string) string {
	preferred := filepath.Join(dataDir, filename)
	for _, p := range []string{preferred, filename} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return preferred
}
