package utils

import (
	"fmt"
	"os"
	"strings"
)

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDirectory reports whether path exists and is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsHiddenName reports whether a file or directory name is a dot-name.
func IsHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

// FormatBytes renders a byte count in a human-readable unit.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// SanitizeFilename strips an extension and converts separator punctuation to
// spaces, producing a usable fallback title from a raw filename.
func SanitizeFilename(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
