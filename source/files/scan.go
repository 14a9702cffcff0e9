package files

import (
	"fmt"
	"io/fs"
	"path"

	"github.com/root-talis/henka-kafka/source"
)

// ListCandidateFiles lists the yaml files placed directly inside dir. The
// order of the result is whatever the filesystem returns and carries no
// meaning. Subdirectories are not descended into. Other non-regular entries,
// symlinks included, are kept when they resolve to a regular file.
func ListCandidateFiles(fsys fs.FS, dir string) ([]string, error) {
	dirEntries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", source.ErrIO, err)
	}

	candidates := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() || !IsStructuredFile(entry.Name()) {
			continue
		}

		filePath := path.Join(dir, entry.Name())
		if !entry.Type().IsRegular() {
			info, err := fs.Stat(fsys, filePath)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}

		candidates = append(candidates, filePath)
	}

	return candidates, nil
}
