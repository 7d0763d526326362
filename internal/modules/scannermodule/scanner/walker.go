package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/curatorapp/curator/internal/logger"
	"github.com/curatorapp/curator/internal/utils"
)

// Walker enumerates candidate media files under a root. Per-directory I/O
// errors skip that subtree and never abort the walk. Output is sorted by
// relative path so scan results are reproducible.
type Walker struct{}

func NewWalker() *Walker {
	return &Walker{}
}

// WalkFull collects every matching file under root in a single pass. The
// second return value counts directories that were skipped as unreadable.
func (w *Walker) WalkFull(root string, extensions map[string]bool) ([]ScannedFile, int, error) {
	files, failed, err := w.walkTree(root, root, extensions)
	if err != nil {
		return nil, failed, err
	}
	sortFiles(files)
	return files, failed, nil
}

// WalkBatched groups the root's top-level subfolders into fixed-size
// batches and hands each batch's files to handle before walking the next.
// Loose files directly under the root form their own leading batch.
// Batching bounds memory on large libraries and keeps metadata-fetch bursts
// small on slow network mounts. The returned count is the number of folders
// skipped as unreadable across all batches.
func (w *Walker) WalkBatched(root string, extensions map[string]bool, batchSize int, handle func(batch []ScannedFile) error) (int, error) {
	if batchSize <= 0 {
		batchSize = 25
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}

	var topDirs []string
	var looseFiles []ScannedFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if shouldSkipDir(name) {
				continue
			}
			topDirs = append(topDirs, name)
			continue
		}
		if file, ok := w.candidate(root, filepath.Join(root, name), extensions); ok {
			looseFiles = append(looseFiles, file)
		}
	}
	sort.Strings(topDirs)

	if len(looseFiles) > 0 {
		sortFiles(looseFiles)
		if err := handle(looseFiles); err != nil {
			return 0, err
		}
	}

	foldersFailed := 0
	for start := 0; start < len(topDirs); start += batchSize {
		end := start + batchSize
		if end > len(topDirs) {
			end = len(topDirs)
		}

		var batch []ScannedFile
		for _, dir := range topDirs[start:end] {
			files, failed, err := w.walkTree(root, filepath.Join(root, dir), extensions)
			foldersFailed += failed
			if err != nil {
				logger.Warn("Skipping unreadable folder %s: %v", dir, err)
				foldersFailed++
				continue
			}
			batch = append(batch, files...)
		}
		sortFiles(batch)
		if err := handle(batch); err != nil {
			return foldersFailed, err
		}
	}
	return foldersFailed, nil
}

// walkTree walks one directory tree depth-first, isolating per-directory
// errors. It counts the directories it had to skip.
func (w *Walker) walkTree(root, start string, extensions map[string]bool) ([]ScannedFile, int, error) {
	var files []ScannedFile
	foldersFailed := 0

	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == start {
				return err
			}
			logger.Warn("Skipping unreadable path %s: %v", path, err)
			if d != nil && d.IsDir() {
				foldersFailed++
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != start && shouldSkipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if file, ok := w.candidate(root, path, extensions); ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, foldersFailed, err
	}
	return files, foldersFailed, nil
}

func (w *Walker) candidate(root, path string, extensions map[string]bool) (ScannedFile, bool) {
	name := filepath.Base(path)
	if utils.IsHiddenName(name) {
		return ScannedFile{}, false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !extensions[ext] {
		return ScannedFile{}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("Skipping unreadable file %s: %v", path, err)
		return ScannedFile{}, false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = name
	}
	return ScannedFile{
		Path:         path,
		Name:         name,
		Size:         info.Size(),
		Extension:    ext,
		RelativePath: filepath.ToSlash(rel),
	}, true
}

func sortFiles(files []ScannedFile) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].RelativePath < files[j].RelativePath
	})
}
