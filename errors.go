package henka

import "errors"

var (
	ErrNoBroker         = errors.New("no broker configured to apply migrations")
	ErrMissingMigration = errors.New("applied migration is missing from the migrations directory")
)
