package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolver confines tool paths to a workspace root. Every filesystem
// tool in this package resolves through it before touching disk, so the
// "path escapes workspace" check lives in exactly one place.
type Resolver struct {
	Root string
}

// Resolve canonicalizes path against the workspace root and rejects
// anything that lands outside it. Absolute paths are allowed but must
// still fall inside the root once cleaned.
func (r Resolver) Resolve(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is required")
	}

	rootAbs, err := r.absRoot()
	if err != nil {
		return "", err
	}

	target := trimmed
	if !filepath.IsAbs(target) {
		target = filepath.Join(rootAbs, target)
	}
	targetAbs, err := filepath.Abs(filepath.Clean(target))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetAbs, nil
}

func (r Resolver) absRoot() (string, error) {
	root := strings.TrimSpace(r.Root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	return rootAbs, nil
}
