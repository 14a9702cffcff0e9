package source

import (
	"errors"

	"github.com/root-talis/henka-kafka/migration"
)

// Source resolves which migrations exist for a topic and which of them are
// newer than a given version. Implementations rescan their backing storage on
// every call.
type Source interface {
	// Load reads a single migration file. An invalid file name is an error.
	Load(path string) (migration.Record, error)

	// Next returns the first migration of topic strictly newer than current.
	Next(current migration.Version, topic string) (migration.Record, bool, error)

	// Newer returns all migrations of topic strictly newer than current, in
	// ascending version order.
	Newer(current migration.Version, topic string) ([]migration.Record, error)

	// All returns the full history of topic in ascending version order.
	All(topic string) ([]migration.Record, error)
}

var (
	ErrInvalidFilename = errors.New("migration file name is invalid")
	ErrDecode          = errors.New("failed to decode migration file")
	ErrBind            = errors.New("migration document is malformed")
	ErrLoad            = errors.New("failed to load migration")
	ErrIO              = errors.New("failed to read migrations directory")
)
