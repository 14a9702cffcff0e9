package files_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-talis/henka-kafka/migration"
	"github.com/root-talis/henka-kafka/source"
	"github.com/root-talis/henka-kafka/source/files"
)

// -- fixtures -----------

const (
	createOrders = "operation: create\n" +
		"topic: orders\n" +
		"partitions: 3\n" +
		"replicationFactor: 1\n"
	addPartitionOrders = "operation: patch\n" +
		"topic: orders\n" +
		"partitions: 6\n"
	retentionOrders = "operation: patch\n" +
		"topic: orders\n" +
		"config:\n" +
		"  retention.ms: 604800000\n"
	createPayments = "operation: create\n" +
		"topic: payments\n" +
		"partitions: 1\n" +
		"replicationFactor: 1\n"
	readme = "title: not a migration\n"
)

func file(content string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(content)}
}

func dir() *fstest.MapFile {
	return &fstest.MapFile{Mode: fs.ModeDir}
}

var (
	ordersV1 = migration.Record{ // nolint:gochecknoglobals
		Topic:   "orders",
		Version: "v0001",
		Path:    "migrations/v0001_create.yaml",
		Operation: migration.Operation{
			Kind: migration.Create, Partitions: 3, ReplicationFactor: 1,
		},
	}
	ordersV2 = migration.Record{ // nolint:gochecknoglobals
		Topic:   "orders",
		Version: "v0002",
		Path:    "migrations/v0002_add-partition.yaml",
		Operation: migration.Operation{
			Kind: migration.Patch, Partitions: 6,
		},
	}
	ordersV3 = migration.Record{ // nolint:gochecknoglobals
		Topic:   "orders",
		Version: "v0003",
		Path:    "migrations/v0003_retention.yml",
		Operation: migration.Operation{
			Kind: migration.Patch, Config: map[string]string{"retention.ms": "604800000"},
		},
	}
	paymentsV1 = migration.Record{ // nolint:gochecknoglobals
		Topic:   "payments",
		Version: "v0001",
		Path:    "migrations/v0001_create-payments.yaml",
		Operation: migration.Operation{
			Kind: migration.Create, Partitions: 1, ReplicationFactor: 1,
		},
	}
)

func scenarioFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations":                            dir(),
		"migrations/v0001_create.yaml":          file(createOrders),
		"migrations/v0002_add-partition.yaml":   file(addPartitionOrders),
		"migrations/v0001_create-payments.yaml": file(createPayments),
		"migrations/README.yaml":                file(readme),
		"migrations/notes.txt":                  file("ignore me"),
		"migrations/nested/v0009_nested.yaml":   file(createOrders),
		"migrations/v0010_directory.yaml":       dir(),
		"other/v0005_elsewhere.yaml":            file(addPartitionOrders),
		"v0006_at_root.yaml":                    file(addPartitionOrders),
	}
}

func newSource(t *testing.T, fsys fstest.MapFS) source.Source {
	t.Helper()

	src, err := files.NewFilesSource(fsys, "migrations")
	require.NoError(t, err)

	return src
}

// -- All ----------------

var allTestTable = []struct { // nolint:gochecknoglobals
	name     string
	fs       fstest.MapFS
	topic    string
	expected []migration.Record
	errorIs  error
}{
	// -- success tests ------
	/* s0 */ {
		name:     "test s0: should list the history of a topic in version order",
		fs:       scenarioFS(),
		topic:    "orders",
		expected: []migration.Record{ordersV1, ordersV2},
	},
	/* s1 */ {
		name:     "test s1: should partition by topic",
		fs:       scenarioFS(),
		topic:    "payments",
		expected: []migration.Record{paymentsV1},
	},
	/* s2 */ {
		name:     "test s2: should return nothing for an unknown topic",
		fs:       scenarioFS(),
		topic:    "refunds",
		expected: []migration.Record{},
	},
	/* s3 */ {
		name:     "test s3: should return nothing for an empty directory",
		fs:       fstest.MapFS{"migrations": dir()},
		topic:    "orders",
		expected: []migration.Record{},
	},
	/* s4 */ {
		name: "test s4: should order by version and not by file name",
		fs: fstest.MapFS{
			"migrations":                          dir(),
			"migrations/v0003_retention.yml":      file(retentionOrders),
			"migrations/v0002_add-partition.yaml": file(addPartitionOrders),
			"migrations/v0001_create.yaml":        file(createOrders),
		},
		topic:    "orders",
		expected: []migration.Record{ordersV1, ordersV2, ordersV3},
	},

	// -- error tests --------
	/* e0 */ {
		name: "test e0: should fail on malformed yaml in a valid file",
		fs: fstest.MapFS{
			"migrations":                   dir(),
			"migrations/v0001_create.yaml": file(createOrders),
			"migrations/v0002_broken.yaml": file("topic: [orders\n"),
		},
		topic:   "orders",
		errorIs: source.ErrDecode,
	},
	/* e1 */ {
		name: "test e1: should fail on a document without topic",
		fs: fstest.MapFS{
			"migrations":                   dir(),
			"migrations/v0001_create.yaml": file("operation: create\npartitions: 1\nreplicationFactor: 1\n"),
		},
		topic:   "orders",
		errorIs: source.ErrBind,
	},
	/* e2 */ {
		name: "test e2: should fail even when the broken file belongs to another topic",
		fs: fstest.MapFS{
			"migrations":                   dir(),
			"migrations/v0001_create.yaml": file(createOrders),
			"migrations/v0002_other.yaml":  file("operation: explode\ntopic: payments\n"),
		},
		topic:   "orders",
		errorIs: source.ErrBind,
	},
}

func TestAll(t *testing.T) {
	t.Parallel()

	for _, test := range allTestTable {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			src := newSource(t, test.fs)

			records, err := src.All(test.topic)

			if test.errorIs != nil {
				assert.ErrorIs(t, err, test.errorIs)
				assert.ErrorIs(t, err, source.ErrLoad)
				assert.Nil(t, records)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, records)
		})
	}
}

// -- Next / Newer -------

var newerTestTable = []struct { // nolint:gochecknoglobals
	name          string
	current       migration.Version
	topic         string
	expectedNewer []migration.Record
}{
	/* s0 */ {name: "test s0: nothing applied yet", current: "", topic: "orders", expectedNewer: []migration.Record{ordersV1, ordersV2, ordersV3}},
	/* s1 */ {name: "test s1: first version applied", current: "v0001", topic: "orders", expectedNewer: []migration.Record{ordersV2, ordersV3}},
	/* s2 */ {name: "test s2: second version applied", current: "v0002", topic: "orders", expectedNewer: []migration.Record{ordersV3}},
	/* s3 */ {name: "test s3: everything applied", current: "v0003", topic: "orders", expectedNewer: []migration.Record{}},
	/* s4 */ {name: "test s4: current version beyond any file", current: "v9999", topic: "orders", expectedNewer: []migration.Record{}},
	/* s5 */ {name: "test s5: current version between files", current: "v0000", topic: "payments", expectedNewer: []migration.Record{paymentsV1}},
	/* s6 */ {name: "test s6: unknown topic", current: "", topic: "refunds", expectedNewer: []migration.Record{}},
}

func newerFS() fstest.MapFS {
	fsys := scenarioFS()
	fsys["migrations/v0003_retention.yml"] = file(retentionOrders)
	return fsys
}

func TestNextAndNewer(t *testing.T) {
	t.Parallel()

	for _, test := range newerTestTable {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			src := newSource(t, newerFS())

			newer, err := src.Newer(test.current, test.topic)
			assert.NoError(t, err)
			assert.Equal(t, test.expectedNewer, newer)

			next, found, err := src.Next(test.current, test.topic)
			assert.NoError(t, err)

			if len(test.expectedNewer) == 0 {
				assert.False(t, found)
				assert.Equal(t, migration.Record{}, next)
				return
			}

			assert.True(t, found)
			assert.Equal(t, test.expectedNewer[0], next)

			for _, record := range newer {
				assert.Greater(t, record.Version.Compare(test.current), 0)
			}
		})
	}
}

func TestResolveOrdersScenario(t *testing.T) {
	t.Parallel()
	src := newSource(t, scenarioFS())

	next, found, err := src.Next("v0001", "orders")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ordersV2, next)

	_, found, err = src.Next("v0002", "orders")
	assert.NoError(t, err)
	assert.False(t, found)

	_, found, err = src.Next("v9999", "orders")
	assert.NoError(t, err)
	assert.False(t, found)

	for _, topic := range []string{"orders", "payments"} {
		records, err := src.All(topic)
		assert.NoError(t, err)
		for _, record := range records {
			assert.NotEqual(t, "migrations/README.yaml", record.Path)
		}
	}
}

func TestNewerDoesNotDecodeOlderFiles(t *testing.T) {
	t.Parallel()
	src := newSource(t, fstest.MapFS{
		"migrations":                          dir(),
		"migrations/v0001_create.yaml":        file("this: [is not valid"),
		"migrations/v0002_add-partition.yaml": file(addPartitionOrders),
	})

	newer, err := src.Newer("v0001", "orders")
	assert.NoError(t, err)
	assert.Equal(t, []migration.Record{ordersV2}, newer)

	// Next and All decode every file of the topic, the applied one included.
	_, _, err = src.Next("v0001", "orders")
	assert.ErrorIs(t, err, source.ErrLoad)
	assert.ErrorIs(t, err, source.ErrDecode)

	_, err = src.All("orders")
	assert.ErrorIs(t, err, source.ErrLoad)
}

func TestDuplicateVersionsAreKept(t *testing.T) {
	t.Parallel()
	src := newSource(t, fstest.MapFS{
		"migrations":                          dir(),
		"migrations/v0001_create.yaml":        file(createOrders),
		"migrations/v0002_add-partition.yaml": file(addPartitionOrders),
		"migrations/v0002_retention.yaml":     file(retentionOrders),
	})

	records, err := src.All("orders")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, migration.Version("v0001"), records[0].Version)
	assert.Equal(t, migration.Version("v0002"), records[1].Version)
	assert.Equal(t, migration.Version("v0002"), records[2].Version)

	paths := []string{records[1].Path, records[2].Path}
	assert.ElementsMatch(t, []string{"migrations/v0002_add-partition.yaml", "migrations/v0002_retention.yaml"}, paths)

	newer, err := src.Newer("v0001", "orders")
	assert.NoError(t, err)
	assert.Len(t, newer, 2)
}

func TestResolverIsIdempotent(t *testing.T) {
	t.Parallel()
	src := newSource(t, newerFS())

	first, err := src.All("orders")
	require.NoError(t, err)
	second, err := src.All("orders")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	firstNewer, err := src.Newer("v0001", "orders")
	require.NoError(t, err)
	secondNewer, err := src.Newer("v0001", "orders")
	require.NoError(t, err)
	assert.Equal(t, firstNewer, secondNewer)

	firstNext, _, err := src.Next("v0001", "orders")
	require.NoError(t, err)
	secondNext, _, err := src.Next("v0001", "orders")
	require.NoError(t, err)
	assert.Equal(t, firstNext, secondNext)
}

func TestRescansOnEveryCall(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"migrations":                   dir(),
		"migrations/v0001_create.yaml": file(createOrders),
	}
	src := newSource(t, fsys)

	records, err := src.All("orders")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	fsys["migrations/v0002_add-partition.yaml"] = file(addPartitionOrders)

	records, err = src.All("orders")
	require.NoError(t, err)
	assert.Equal(t, []migration.Record{ordersV1, ordersV2}, records)
}

// -- Load ---------------

var loadTestTable = []struct { // nolint:gochecknoglobals
	name     string
	path     string
	expected migration.Record
	errorIs  []error
}{
	/* s0 */ {name: "test s0: should load a single file", path: "migrations/v0002_add-partition.yaml", expected: ordersV2},
	/* s1 */ {name: "test s1: should load a file outside of the migrations directory", path: "v0006_at_root.yaml", expected: migration.Record{
		Topic: "orders", Version: "v0006", Path: "v0006_at_root.yaml",
		Operation: migration.Operation{Kind: migration.Patch, Partitions: 6},
	}},

	/* e0 */ {name: "test e0: should reject a name without version", path: "migrations/create.yaml", errorIs: []error{source.ErrInvalidFilename}},
	/* e1 */ {name: "test e1: should reject a readme even when it exists", path: "migrations/README.yaml", errorIs: []error{source.ErrInvalidFilename}},
	/* e2 */ {name: "test e2: should fail on a missing file", path: "migrations/v0042_gone.yaml", errorIs: []error{source.ErrLoad, source.ErrDecode, fs.ErrNotExist}},
}

func TestLoad(t *testing.T) {
	t.Parallel()

	for _, test := range loadTestTable {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			src := newSource(t, scenarioFS())

			record, err := src.Load(test.path)

			if len(test.errorIs) > 0 {
				for _, target := range test.errorIs {
					assert.ErrorIs(t, err, target)
				}
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, test.expected, record)
		})
	}
}

// -- construction -------

var newFilesSourceTestTable = []struct { // nolint:gochecknoglobals
	name      string
	directory string
	fs        fstest.MapFS
}{
	/* e0 */ {
		name:      "test e0: should fail when directory does not exist",
		directory: "mig",
		fs:        fstest.MapFS{"migrations": dir()},
	},
	/* e1 */ {
		name:      "test e1: should fail when directory is a file",
		directory: "migrations",
		fs:        fstest.MapFS{"migrations": {}},
	},
	/* e2 */ {
		name:      "test e2: should fail when directory is a device",
		directory: "migrations",
		fs:        fstest.MapFS{"migrations": {Mode: fs.ModeDevice}},
	},
}

func TestNewFilesSource(t *testing.T) {
	t.Parallel()

	for _, test := range newFilesSourceTestTable {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := files.NewFilesSource(test.fs, test.directory)
			assert.ErrorIs(t, err, source.ErrIO)
		})
	}
}

func TestListCandidateFiles(t *testing.T) {
	t.Parallel()

	candidates, err := files.ListCandidateFiles(scenarioFS(), "migrations")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/v0001_create.yaml",
		"migrations/v0002_add-partition.yaml",
		"migrations/v0001_create-payments.yaml",
		"migrations/README.yaml",
	}, candidates)

	_, err = files.ListCandidateFiles(scenarioFS(), "missing")
	assert.ErrorIs(t, err, source.ErrIO)
}

func TestSymlinkedMigrationFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	target := filepath.Join(root, "shared.txt")
	require.NoError(t, os.WriteFile(target, []byte("topic: orders\noperation: remove\n"), 0o600))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "v0001_drop.yaml")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.txt"), filepath.Join(root, "v0002_dangling.yaml")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "nested"), 0o700))
	require.NoError(t, os.Symlink(filepath.Join(root, "nested"), filepath.Join(root, "v0003_dir.yaml")))

	fsys := os.DirFS(root)

	candidates, err := files.ListCandidateFiles(fsys, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"v0001_drop.yaml"}, candidates)

	src, err := files.NewFilesSource(fsys, ".")
	require.NoError(t, err)

	records, err := src.All("orders")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, migration.Version("v0001"), records[0].Version)
	assert.Equal(t, migration.Remove, records[0].Operation.Kind)
}
