package mysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/root-talis/henka-kafka/driver"
)

func TestEscapeMysqlString(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"topic_migrations": "topic_migrations",
		"a`b":              "a\\`b",
		"it's":             "it\\'s",
		"line\nbreak":      "line\\nbreak",
		"back\\slash":      "back\\\\slash",
		"nul\x00":          "nul\\0",
		"quote\"":          "quote\\\"",
	}

	for input, expected := range tests {
		assert.Equal(t, expected, escapeMysqlString(input), "input %q", input)
	}
}

func TestMakeEscapedMigrationsTableName(t *testing.T) {
	t.Parallel()

	drv := &mysqlDriver{config: DriverConfig{DatabaseName: "kafka", MigrationsTableName: "henka_migrations"}}
	assert.Equal(t, "`kafka`.`henka_migrations`", drv.makeEscapedMigrationsTableName())

	drv = &mysqlDriver{config: DriverConfig{MigrationsTableName: "henka_migrations"}}
	assert.Equal(t, "`henka_migrations`", drv.makeEscapedMigrationsTableName())
}

var parseAppliedAtTestTable = []struct { // nolint:gochecknoglobals
	name     string
	raw      any
	expected time.Time
	fail     bool
}{
	/* s0 */ {name: "test s0: raw bytes", raw: []byte("2024-03-01 10:20:30"), expected: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)},
	/* s1 */ {name: "test s1: string", raw: "2024-03-01 10:20:30", expected: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)},
	/* s2 */ {name: "test s2: fractional seconds", raw: []byte("2024-03-01 10:20:30.250000"), expected: time.Date(2024, 3, 1, 10, 20, 30, 250000000, time.UTC)},
	/* s3 */ {name: "test s3: time.Time from parseTime", raw: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), expected: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)},
	/* s4 */ {name: "test s4: time.Time in another location", raw: time.Date(2024, 3, 1, 13, 20, 30, 0, time.FixedZone("MSK", 3*60*60)), expected: time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)},
	/* s5 */ {name: "test s5: null", raw: nil, expected: time.Time{}},

	// -- error tests --------
	/* e0 */ {name: "test e0: RFC 3339 text", raw: []byte("2024-03-01T10:20:30Z"), fail: true},
	/* e1 */ {name: "test e1: garbage", raw: "yesterday", fail: true},
	/* e2 */ {name: "test e2: unexpected type", raw: int64(1709288430), fail: true},
}

func TestParseAppliedAt(t *testing.T) {
	t.Parallel()

	for _, test := range parseAppliedAtTestTable {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			appliedAt, err := parseAppliedAt(test.raw)
			if test.fail {
				assert.ErrorIs(t, err, driver.ErrInvalidLogTable)
				return
			}

			assert.NoError(t, err)
			assert.True(t, test.expected.Equal(appliedAt), "expected %s, got %s", test.expected, appliedAt)
			assert.Equal(t, time.UTC, appliedAt.Location())
		})
	}
}
