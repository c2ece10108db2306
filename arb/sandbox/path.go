package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Violation is returned when a path fails workspace containment.
type Violation struct {
	Path   string
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("sandbox violation: %s: %s", v.Path, v.Reason)
}

// PathValidator confines path arguments to a single workspace directory.
// Every path-shaped tool argument passes Validate before any command is
// assembled from it.
type PathValidator struct {
	root string
}

// NewPathValidator resolves and pins the workspace root, which must be an
// existing directory.
func NewPathValidator(workspaceRoot string) (*PathValidator, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	fi, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %s", resolved)
	}
	return &PathValidator{root: resolved}, nil
}

// Root reports the resolved workspace root.
func (v *PathValidator) Root() string { return v.root }

// Validate resolves p against the workspace root and returns the absolute
// on-disk path. Relative paths are joined to the root. The result must
// exist, and must stay inside the root after every symlink is followed.
// If the entry itself is a symlink its target is re-checked independently.
func (v *PathValidator) Validate(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", &Violation{Path: p, Reason: "empty path"}
	}

	joined := p
	if filepath.IsAbs(joined) {
		joined = filepath.Clean(joined)
	} else {
		joined = filepath.Join(v.root, joined)
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", p)
		}
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	if !v.contains(resolved) {
		return "", &Violation{Path: p, Reason: "path escapes the workspace"}
	}

	fi, err := os.Lstat(joined)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", p, err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(joined)
		if err != nil {
			return "", fmt.Errorf("readlink %s: %w", p, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(joined), target)
		}
		resolvedTarget, err := filepath.EvalSymlinks(target)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("symlink target does not exist: %s", p)
			}
			return "", fmt.Errorf("resolve link target of %s: %w", p, err)
		}
		if !v.contains(resolvedTarget) {
			return "", &Violation{Path: p, Reason: "symlink target escapes the workspace"}
		}
	}

	return resolved, nil
}

// Rel reports the workspace-relative form of a validated absolute path.
func (v *PathValidator) Rel(resolved string) (string, error) {
	return filepath.Rel(v.root, resolved)
}

func (v *PathValidator) contains(abs string) bool {
	if abs == v.root {
		return true
	}
	return strings.HasPrefix(abs, v.root+string(os.PathSeparator))
}
