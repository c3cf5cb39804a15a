// Package resources resolves filesystem locations used to persist
// configuration and save state, relative to the framework's resource
// directory.
package resources

import "path/filepath"

// rootDirectory is the directory beneath which configuration and save
// data is kept.
const rootDirectory = ".machina"

// JoinPath joins one or more path segments onto the framework's resource
// directory. Empty segments are ignored, so JoinPath() and JoinPath("")
// both return the resource directory itself.
func JoinPath(segments ...string) (string, error) {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, rootDirectory)
	for _, s := range segments {
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return filepath.Join(parts...), nil
}
