package scanner

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"unicode"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/database"
	"github.com/curatorapp/curator/internal/logger"
)

// deniedRoots are system paths never accepted as scan roots.
var deniedRoots = map[string]bool{
	"/":      true,
	"/etc":   true,
	"/proc":  true,
	"/sys":   true,
	"/dev":   true,
	"/bin":   true,
	"/sbin":  true,
	"/usr":   true,
	"/var":   true,
	"/boot":  true,
	"/lib":   true,
	"/lib64": true,
}

var deniedWindowsRoots = map[string]bool{
	`c:\windows`:                   true,
	`c:\program files`:             true,
	`c:\program files (x86)`:       true,
	`c:\programdata`:               true,
	`c:\system volume information`: true,
}

// bare drive roots: C:\ D: etc.
var driveRootPattern = regexp.MustCompile(`(?i)^[a-z]:[\\/]?$`)

var seasonDirPattern = regexp.MustCompile(`(?i)^(season[\s._-]*\d+|s\d{1,2}|specials?)$`)
var yearTagPattern = regexp.MustCompile(`[\(\[][12]\d{3}[\)\]]`)

// minBroadRootDirs is the minimum top-level sample before the broad-root
// heuristic applies; smaller roots are always accepted.
const minBroadRootDirs = 10

// Validator rejects dangerous or overly broad scan roots before any
// directory enumeration happens.
type Validator struct {
	cfg config.ScannerConfig
}

func NewValidator(cfg config.ScannerConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate gates a scan root. The deny-list check runs before any
// filesystem I/O; the broad-root heuristic reads top-level directory names
// only. TV libraries are exempt from the heuristic because multiple show
// folders under one root is the expected shape.
func (v *Validator) Validate(path string, mediaType database.MediaType) error {
	if err := v.checkDenyList(path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ValidationError{
			Path:           path,
			Reason:         "path does not exist or is not accessible",
			Recommendation: "check the path and filesystem permissions",
		}
	}
	if !info.IsDir() {
		return &ValidationError{
			Path:           path,
			Reason:         "path is not a directory",
			Recommendation: "point the scan at a media folder, not a file",
		}
	}

	if mediaType != database.MediaTypeTVShow {
		if err := v.checkBroadRoot(path); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkDenyList(path string) error {
	cleaned := filepath.Clean(path)

	if driveRootPattern.MatchString(cleaned) {
		return &ValidationError{
			Path:           path,
			Reason:         "cannot scan an entire drive",
			Recommendation: "choose a specific media folder on the drive",
		}
	}

	check := cleaned
	if runtime.GOOS == "windows" {
		check = strings.ToLower(strings.ReplaceAll(check, "/", `\`))
		if deniedWindowsRoots[check] {
			return v.systemPathError(path)
		}
		return nil
	}

	if deniedRoots[check] {
		return v.systemPathError(path)
	}
	return nil
}

func (v *Validator) systemPathError(path string) error {
	return &ValidationError{
		Path:           path,
		Reason:         "refusing to scan a system directory",
		Recommendation: "choose a dedicated media folder instead",
	}
}

// checkBroadRoot samples top-level subdirectories and rejects the path when
// a supermajority look like independent titled collections rather than one
// library's content.
func (v *Validator) checkBroadRoot(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		// Unreadable roots are caught later by the walker.
		logger.Debug("Broad-root check could not read %s: %v", path, err)
		return nil
	}

	sample := v.cfg.BroadRootSample
	if sample <= 0 {
		sample = 50
	}

	sampled := 0
	titled := 0
	for _, entry := range entries {
		if !entry.IsDir() || shouldSkipDir(entry.Name()) {
			continue
		}
		sampled++
		if looksLikeTitledFolder(entry.Name()) {
			titled++
		}
		if sampled >= sample {
			break
		}
	}

	if sampled < minBroadRootDirs {
		return nil
	}
	if float64(titled)/float64(sampled) >= v.cfg.BroadRootThreshold {
		return &ValidationError{
			Path:   path,
			Reason: "path looks like a broad media root containing many independent collections",
			Recommendation: "scan narrower paths, one collection at a time, " +
				"or create separate libraries for each subfolder",
		}
	}
	return nil
}

// looksLikeTitledFolder reports whether a folder name reads like an
// independent named collection: a year tag or a multi-word capitalized
// title, with no season or episode markers.
func looksLikeTitledFolder(name string) bool {
	if seasonDirPattern.MatchString(name) {
		return false
	}
	if yearTagPattern.MatchString(name) {
		return true
	}
	words := strings.Fields(strings.NewReplacer(".", " ", "_", " ").Replace(name))
	if len(words) < 2 {
		return false
	}
	first := []rune(words[0])
	return unicode.IsUpper(first[0]) || unicode.IsDigit(first[0])
}
