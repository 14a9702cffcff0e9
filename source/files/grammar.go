package files

import (
	"fmt"
	"path"
	"regexp"

	"github.com/root-talis/henka-kafka/migration"
	"github.com/root-talis/henka-kafka/source"
)

const maxNameLength = 246

var (
	fileNamePattern      = regexp.MustCompile(fmt.Sprintf(`^v[0-9]{4}_[\w\-]{1,%d}\.(?i:ya?ml)$`, maxNameLength))
	fileExtPattern       = regexp.MustCompile(`\.(?i:ya?ml)$`)
	versionPattern       = regexp.MustCompile(`v[0-9]{4}`)
	versionNumberPattern = regexp.MustCompile(`[0-9]{4}`)
	versionTokenPattern  = regexp.MustCompile(`^v[0-9]{4}$`)
)

// IsValidMigrationFilename reports whether name (or the base name of a path)
// follows the v<4 digits>_<name>.yml|yaml convention.
func IsValidMigrationFilename(name string) bool {
	return fileNamePattern.MatchString(path.Base(name))
}

// IsStructuredFile only checks the extension.
func IsStructuredFile(name string) bool {
	return fileExtPattern.MatchString(path.Base(name))
}

func ExtractVersionToken(name string) (migration.Version, bool) {
	token := versionPattern.FindString(path.Base(name))
	if token == "" {
		return "", false
	}
	return migration.Version(token), true
}

// IsVersionToken reports whether s is a bare version token such as "v0042".
func IsVersionToken(s string) bool {
	return versionTokenPattern.MatchString(s)
}

func ExtractVersionNumber(token migration.Version) (string, bool) {
	number := versionNumberPattern.FindString(string(token))
	return number, number != ""
}

func AssertValidFilename(name string) error {
	if !IsValidMigrationFilename(name) {
		return fmt.Errorf("%w: %s", source.ErrInvalidFilename, path.Base(name))
	}
	return nil
}
