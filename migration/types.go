package migration

import (
	"strings"
	"time"
)

// Version is the fixed-width ordering token of a migration, e.g. "v0007".
// The empty Version means that nothing was applied yet and sorts before
// every valid token.
type Version string

const VersionDigits = 4

// Compare orders versions lexicographically. This is only equal to numeric
// order because the token width is fixed.
func (v Version) Compare(other Version) int {
	return strings.Compare(string(v), string(other))
}

func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Number returns the bare digits of the token ("0007" for "v0007").
func (v Version) Number() string {
	return strings.TrimPrefix(string(v), "v")
}

func (v Version) String() string {
	return string(v)
}

// ---

type Kind string

const (
	Create Kind = "create"
	Patch  Kind = "patch"
	Remove Kind = "remove"
)

type Operation struct {
	Kind              Kind
	Notes             string
	Partitions        int32
	ReplicationFactor int16
	Config            map[string]string
}

// Record is one decoded migration file.
type Record struct {
	Topic     string
	Version   Version
	Path      string
	Operation Operation
}

// ---

type Status uint

const (
	Pending Status = iota
	Applied
	Missing
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Missing:
		return "missing"
	}
	return "unknown"
}

// ---

type Log struct {
	Topic     string
	Version   Version
	Kind      Kind
	Notes     string
	AppliedAt time.Time
}

type State struct {
	Record
	Status    Status
	AppliedAt time.Time
}
