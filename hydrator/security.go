package hydrator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// ValidateSourceURI resolves sourceURI relative to basePath and checks
// the result stays within allowedRoot (defaulting to basePath). An
// absolute sourceURI is always rejected, without echoing the path in
// the error message. Relative paths are allowed, including ones using
// "..", as long as the resolved, symlink-evaluated path does not
// escape allowedRoot.
func ValidateSourceURI(sourceURI, basePath, allowedRoot string) (string, error) {
	if filepath.IsAbs(sourceURI) {
		return "", oops.Code("E_PATH").Errorf("absolute source URIs are not permitted")
	}
	if allowedRoot == "" {
		allowedRoot = basePath
	}

	candidate := filepath.Join(basePath, sourceURI)
	resolvedRoot, err := filepath.EvalSymlinks(allowedRoot)
	if err != nil {
		resolvedRoot = allowedRoot
	}

	resolved, err := resolveWithinRoot(candidate, resolvedRoot)
	if err != nil {
		return "", oops.Code("E_PATH").Wrapf(err, "resolving source URI")
	}
	return resolved, nil
}

// resolveWithinRoot resolves candidate's symlinks as far as the
// filesystem allows (the target file itself may not exist yet) and
// checks the result is contained in root.
func resolveWithinRoot(candidate, root string) (string, error) {
	resolved := candidate
	if real, err := filepath.EvalSymlinks(candidate); err == nil {
		resolved = real
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", fmt.Errorf("cannot relate path to root: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes allowed root")
	}
	return resolved, nil
}
