package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/root-talis/henka-kafka/driver"
	"github.com/root-talis/henka-kafka/migration"
)

const timeLayout = "2006-01-02 15:04:05"

type DriverConfig struct {
	DatabaseName        string
	MigrationsTableName string
}

type mysqlDriver struct {
	conn   *sql.DB
	config DriverConfig
}

// NewDriver wraps conn. Datetime columns are read both with and without the
// parseTime option of the DSN.
func NewDriver(conn *sql.DB, config DriverConfig) driver.Driver {
	return &mysqlDriver{
		conn:   conn,
		config: config,
	}
}

func (drv *mysqlDriver) CurrentVersion(ctx context.Context, topic string) (migration.Version, error) {
	tableName := drv.makeEscapedMigrationsTableName()

	if err := drv.ensureMigrationsTableExists(ctx, &tableName); err != nil {
		return "", fmt.Errorf("failed to get current version of topic %s: %w", topic, err)
	}

	var version sql.NullString
	err := drv.conn.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT MAX(version) FROM %s WHERE topic = ?",
		tableName,
	), topic).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get current version of topic %s: %w", topic, err)
	}

	return migration.Version(version.String), nil
}

func (drv *mysqlDriver) ListMigrationsLog(ctx context.Context, topic string) ([]migration.Log, error) {
	tableName := drv.makeEscapedMigrationsTableName()

	if err := drv.ensureMigrationsTableExists(ctx, &tableName); err != nil {
		return nil, fmt.Errorf("failed to list applied versions: %w", err)
	}

	rows, err := drv.query(ctx, fmt.Sprintf(
		"SELECT topic, version, operation, notes, start_time FROM %s WHERE topic = ? ORDER BY id",
		tableName,
	), topic)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied versions: %w", err)
	}
	defer rows.Close()

	return drv.fetchMigrationsLog(rows)
}

func (drv *mysqlDriver) LogMigration(ctx context.Context, log migration.Log) error {
	tableName := drv.makeEscapedMigrationsTableName()

	if err := drv.ensureMigrationsTableExists(ctx, &tableName); err != nil {
		return fmt.Errorf("failed to log migration %s of topic %s: %w", log.Version, log.Topic, err)
	}

	appliedAt := log.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now()
	}

	var notes sql.NullString
	if log.Notes != "" {
		notes = sql.NullString{String: log.Notes, Valid: true}
	}

	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (topic, version, operation, notes, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?)",
		tableName,
	),
		log.Topic,
		string(log.Version),
		string(log.Kind),
		notes,
		appliedAt.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to log migration %s of topic %s: %w", log.Version, log.Topic, err)
	}

	return nil
}

// ---

func (drv *mysqlDriver) fetchMigrationsLog(rows *sql.Rows) ([]migration.Log, error) {
	result := make([]migration.Log, 0)
	for rows.Next() {
		var log migration.Log
		var version string
		var kind string
		var notes sql.NullString
		var appliedAt any

		err := rows.Scan(
			&log.Topic,
			&version,
			&kind,
			&notes,
			&appliedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query migrations log table: %w", err)
		}

		log.Version = migration.Version(version)
		log.Notes = notes.String

		switch migration.Kind(strings.ToLower(kind)) {
		case migration.Create:
			log.Kind = migration.Create
		case migration.Patch:
			log.Kind = migration.Patch
		case migration.Remove:
			log.Kind = migration.Remove
		default:
			return nil, fmt.Errorf("%w: operation \"%s\" is unknown", driver.ErrInvalidLogTable, kind)
		}

		log.AppliedAt, err = parseAppliedAt(appliedAt)
		if err != nil {
			return nil, err
		}

		result = append(result, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query migrations log table: %w", err)
	}

	return result, nil
}

// parseAppliedAt converts a start_time value as scanned from the driver: a
// time.Time with parseTime, raw bytes otherwise.
func parseAppliedAt(raw any) (time.Time, error) {
	var text string
	switch value := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return value.UTC(), nil
	case []byte:
		text = string(value)
	case string:
		text = value
	default:
		return time.Time{}, fmt.Errorf("%w: start_time of type %T", driver.ErrInvalidLogTable, raw)
	}

	appliedAt, err := time.Parse(timeLayout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start_time %q: %w", driver.ErrInvalidLogTable, text, err)
	}
	return appliedAt, nil
}

func (drv *mysqlDriver) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := drv.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute a query: %w", err)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute a query: %w", err)
	}
	return rows, nil
}

// makeEscapedMigrationsTableName leaves out the database when none is
// configured, so the default database of the connection is used.
func (drv *mysqlDriver) makeEscapedMigrationsTableName() string {
	if drv.config.DatabaseName == "" {
		return fmt.Sprintf("`%s`", escapeMysqlString(drv.config.MigrationsTableName))
	}
	return fmt.Sprintf(
		"`%s`.`%s`",
		escapeMysqlString(drv.config.DatabaseName),
		escapeMysqlString(drv.config.MigrationsTableName),
	)
}

func (drv *mysqlDriver) ensureMigrationsTableExists(ctx context.Context, escapedTableName *string) error {
	_, err := drv.conn.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s ("+
			"id             int not null auto_increment, "+
			"topic          varchar(249) not null, "+
			"version        char(5) not null, "+
			"operation      varchar(16) not null, "+ // create, patch or remove
			"notes          varchar(255) null, "+
			"start_time     datetime default CURRENT_TIMESTAMP not null, "+
			"end_time       datetime null, "+
			"primary key (id), "+
			"key topic_version (topic, version)"+
			") default charset utf8",
		*escapedTableName,
	))

	if err != nil {
		return fmt.Errorf("failed to create migrations table %s: %w", *escapedTableName, err)
	}

	return nil
}

// originally from https://gist.github.com/siddontang/8875771
func escapeMysqlString(sql string) string { //nolint:cyclop
	const prealloc = 2
	dest := make([]rune, 0, prealloc*len(sql))

	for _, character := range sql {
		var escape rune

		switch character {
		case 0:
			escape = '0'
		case '\n':
			escape = 'n'
		case '\r':
			escape = 'r'
		case '\\':
			escape = '\\'
		case '\'':
			escape = '\''
		case '"':
			escape = '"'
		case '`':
			escape = '`'
		case '\032':
			escape = 'Z'
		}

		if escape != 0 {
			dest = append(dest, '\\', escape)
		} else {
			dest = append(dest, character)
		}
	}

	return string(dest)
}
