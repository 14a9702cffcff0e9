package broker

import (
	"context"
	"errors"

	"github.com/root-talis/henka-kafka/migration"
)

// Broker applies a single migration to the messaging system.
type Broker interface {
	Apply(ctx context.Context, record migration.Record) error
	Close() error
}

var ErrUnknownOperation = errors.New("operation is not supported by the broker")
