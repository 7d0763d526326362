// Package utils provides filesystem helpers shared by the scan pipeline.
package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// PathResolver translates user-supplied paths into paths valid inside the
// running process. Scan requests often carry host paths while the server runs
// in a container; the resolver tries the mapped variants and returns the
// first one that exists.
type PathResolver struct {
	workspaceRoot string
	containerRoot string
}

// NewPathResolver creates a path resolver rooted at the current working
// directory, mapping container paths under /app.
func NewPathResolver() *PathResolver {
	pwd, _ := os.Getwd()
	return &PathResolver{
		workspaceRoot: pwd,
		containerRoot: "/app",
	}
}

// ResolveDirectory finds a valid directory for the given path by trying
// mapped variants. Returns os.ErrNotExist when no variant is a directory.
func (pr *PathResolver) ResolveDirectory(originalPath string) (string, error) {
	for _, path := range pr.pathVariants(originalPath) {
		if IsDirectory(path) {
			return path, nil
		}
	}
	return "", os.ErrNotExist
}

// ResolvePath finds a valid file or directory for the given path.
func (pr *PathResolver) ResolvePath(originalPath string) (string, error) {
	for _, path := range pr.pathVariants(originalPath) {
		if FileExists(path) {
			return path, nil
		}
	}
	return "", os.ErrNotExist
}

// pathVariants lists candidate paths, most specific first.
func (pr *PathResolver) pathVariants(originalPath string) []string {
	variants := []string{originalPath}

	if strings.HasPrefix(originalPath, pr.containerRoot+"/") {
		trimmed := strings.TrimPrefix(originalPath, pr.containerRoot)
		variants = append(variants, trimmed)
		variants = append(variants, filepath.Join(".", trimmed))
	} else if filepath.IsAbs(originalPath) {
		variants = append(variants, filepath.Join(pr.containerRoot, originalPath))
	}

	if pr.workspaceRoot != "" {
		variants = append(variants, filepath.Join(pr.workspaceRoot, originalPath))
		if strings.HasPrefix(originalPath, "./") {
			variants = append(variants, filepath.Join(pr.workspaceRoot, originalPath[2:]))
		}
	}

	return variants
}
