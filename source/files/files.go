package files

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/root-talis/henka-kafka/migration"
	"github.com/root-talis/henka-kafka/source"
)

type fileSource struct {
	fsys          fs.FS
	migrationsDir string
	logger        *slog.Logger
}

type Option func(*fileSource)

func WithLogger(logger *slog.Logger) Option {
	return func(src *fileSource) {
		src.logger = logger
	}
}

var ErrMigrationsDirectoryIsNotADirectory = errors.New("migrations directory is not a directory")

// NewFilesSource creates a Source that reads migrations placed directly in
// migrationsDirectory of fsys.
func NewFilesSource(fsys fs.FS, migrationsDirectory string, opts ...Option) (source.Source, error) {
	stat, err := fs.Stat(fsys, migrationsDirectory)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat migrations directory: %w", source.ErrIO, err)
	}

	if !stat.IsDir() {
		return nil, fmt.Errorf("%w: %s: %w", source.ErrIO, migrationsDirectory, ErrMigrationsDirectoryIsNotADirectory)
	}

	src := &fileSource{
		fsys:          fsys,
		migrationsDir: migrationsDirectory,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(src)
	}

	return src, nil
}

// ---

func (src *fileSource) Load(filePath string) (migration.Record, error) {
	return loadRecord(src.fsys, filePath)
}

func (src *fileSource) Next(current migration.Version, topic string) (migration.Record, bool, error) {
	records, err := src.loadSortedTopic(topic, nil)
	if err != nil {
		return migration.Record{}, false, err
	}

	newer := newerThan(records, current)
	if len(newer) == 0 {
		return migration.Record{}, false, nil
	}

	return newer[0], true, nil
}

func (src *fileSource) Newer(current migration.Version, topic string) ([]migration.Record, error) {
	// Files whose name already rules them out are never decoded.
	records, err := src.loadSortedTopic(topic, func(filePath string) bool {
		version, ok := ExtractVersionToken(filePath)
		return ok && version.Compare(current) > 0
	})
	if err != nil {
		return nil, err
	}

	newer := newerThan(records, current)
	for _, record := range newer {
		src.logger.Debug("newer migration", "topic", record.Topic, "version", record.Version, "path", record.Path)
	}

	return newer, nil
}

func (src *fileSource) All(topic string) ([]migration.Record, error) {
	records, err := src.loadSortedTopic(topic, nil)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		src.logger.Debug("migration loaded", "topic", record.Topic, "version", record.Version, "path", record.Path)
	}

	return records, nil
}

// ---

// loadSortedTopic loads every valid migration file of the directory (or only
// those accepted by keep), and returns the ones belonging to topic in
// ascending version order. Any load failure aborts the whole scan.
func (src *fileSource) loadSortedTopic(topic string, keep func(filePath string) bool) ([]migration.Record, error) {
	candidates, err := ListCandidateFiles(src.fsys, src.migrationsDir)
	if err != nil {
		return nil, err
	}

	records := make([]migration.Record, 0, len(candidates))
	for _, filePath := range candidates {
		if !IsValidMigrationFilename(filePath) {
			src.logger.Debug("skipping file with invalid migration name", "path", filePath)
			continue
		}

		if keep != nil && !keep(filePath) {
			continue
		}

		record, err := loadRecord(src.fsys, filePath)
		if err != nil {
			if errors.Is(err, source.ErrLoad) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %w", source.ErrLoad, filePath, err)
		}

		if record.Topic == topic {
			records = append(records, record)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Version.Less(records[j].Version)
	})

	return records, nil
}

// newerThan expects records sorted by version.
func newerThan(records []migration.Record, current migration.Version) []migration.Record {
	idx := sort.Search(len(records), func(i int) bool {
		return records[i].Version.Compare(current) > 0
	})
	return records[idx:]
}
