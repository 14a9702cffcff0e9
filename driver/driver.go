package driver

import (
	"context"
	"errors"

	"github.com/root-talis/henka-kafka/migration"
)

// Driver persists which migrations were applied to which topic.
type Driver interface {
	// CurrentVersion returns the greatest version applied to topic, or an
	// empty Version if nothing was applied yet.
	CurrentVersion(ctx context.Context, topic string) (migration.Version, error)
	ListMigrationsLog(ctx context.Context, topic string) ([]migration.Log, error)
	LogMigration(ctx context.Context, log migration.Log) error
}

var ErrInvalidLogTable = errors.New("an error has occurred when reading log table")
