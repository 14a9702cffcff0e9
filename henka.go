package henka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/root-talis/henka-kafka/broker"
	"github.com/root-talis/henka-kafka/driver"
	"github.com/root-talis/henka-kafka/migration"
	"github.com/root-talis/henka-kafka/source"
)

// ---

type Henka interface {
	Validate(ctx context.Context, topic string) (*ValidationResult, error)
	Next(ctx context.Context, topic string) (migration.Record, bool, error)
	Pending(ctx context.Context, topic string) ([]migration.Record, error)
	Upgrade(ctx context.Context, topic string, maxVersion migration.Version) ([]migration.Record, error)
}

type ValidationResult struct {
	Topic          string
	CurrentVersion migration.Version
	Migrations     []migration.State
	AppliedCount   uint
	PendingCount   uint
	MissingCount   uint
}

// Check returns ErrMissingMigration naming the first applied version that no
// longer has a file.
func (r *ValidationResult) Check() error {
	for _, state := range r.Migrations {
		if state.Status == migration.Missing {
			return fmt.Errorf("%w: %s %s", ErrMissingMigration, r.Topic, state.Version)
		}
	}
	return nil
}

// ---

type henkaImpl struct {
	source  source.Source
	driver  driver.Driver
	broker  broker.Broker
	logger  *slog.Logger
	timeNow func() time.Time
	dryRun  bool
}

type Option func(*henkaImpl)

func WithLogger(logger *slog.Logger) Option {
	return func(m *henkaImpl) {
		m.logger = logger
	}
}

func WithTimeNow(timeNow func() time.Time) Option {
	return func(m *henkaImpl) {
		m.timeNow = timeNow
	}
}

// WithDryRun makes Upgrade hand migrations to the broker without recording
// them in the log. Pair it with a broker that only validates requests.
func WithDryRun(dryRun bool) Option {
	return func(m *henkaImpl) {
		m.dryRun = dryRun
	}
}

// ---

// New creates a migrator. The broker may be nil if Upgrade is never called.
func New(src source.Source, drv driver.Driver, brk broker.Broker, opts ...Option) Henka {
	m := &henkaImpl{
		source:  src,
		driver:  drv,
		broker:  brk,
		logger:  slog.Default(),
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ---

func (m *henkaImpl) Validate(ctx context.Context, topic string) (*ValidationResult, error) {
	availableMigrations, err := m.source.All(topic)
	if err != nil {
		return nil, fmt.Errorf("failed to get the list of available migrations: %w", err)
	}

	appliedMigrations, err := m.loadAppliedMigrations(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to get the list of applied migrations: %w", err)
	}

	result := ValidationResult{
		Topic:      topic,
		Migrations: make([]migration.State, 0, len(availableMigrations)),
	}

	available := make(map[migration.Version]bool, len(availableMigrations))
	for _, availableMigration := range availableMigrations {
		available[availableMigration.Version] = true

		state := migration.State{
			Record: availableMigration,
			Status: migration.Pending,
		}
		if entry, ok := appliedMigrations[availableMigration.Version]; ok {
			state.Status = migration.Applied
			state.AppliedAt = entry.AppliedAt
			result.AppliedCount++
		} else {
			result.PendingCount++
		}

		result.Migrations = append(result.Migrations, state)
	}

	for _, applied := range appliedMigrations {
		if available[applied.Version] {
			continue
		}

		result.Migrations = append(result.Migrations, migration.State{
			Record: migration.Record{
				Topic:   applied.Topic,
				Version: applied.Version,
				Operation: migration.Operation{
					Kind:  applied.Kind,
					Notes: applied.Notes,
				},
			},
			Status:    migration.Missing,
			AppliedAt: applied.AppliedAt,
		})
		result.MissingCount++
	}

	sort.SliceStable(result.Migrations, func(i, j int) bool {
		return result.Migrations[i].Version.Less(result.Migrations[j].Version)
	})

	for version := range appliedMigrations {
		if result.CurrentVersion.Less(version) {
			result.CurrentVersion = version
		}
	}

	return &result, nil
}

func (m *henkaImpl) Next(ctx context.Context, topic string) (migration.Record, bool, error) {
	current, err := m.driver.CurrentVersion(ctx, topic)
	if err != nil {
		return migration.Record{}, false, fmt.Errorf("failed to get current version: %w", err)
	}

	record, found, err := m.source.Next(current, topic)
	if err != nil {
		return migration.Record{}, false, fmt.Errorf("failed to find next migration: %w", err)
	}

	return record, found, nil
}

func (m *henkaImpl) Pending(ctx context.Context, topic string) ([]migration.Record, error) {
	current, err := m.driver.CurrentVersion(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := m.source.Newer(current, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending migrations: %w", err)
	}

	return pending, nil
}

// Upgrade applies pending migrations of topic one by one, up to and including
// maxVersion (all of them if maxVersion is empty). Every applied migration is
// logged before the next one starts; the first failure stops the upgrade. In
// dry-run mode nothing is logged.
func (m *henkaImpl) Upgrade(ctx context.Context, topic string, maxVersion migration.Version) ([]migration.Record, error) {
	if m.broker == nil {
		return nil, ErrNoBroker
	}

	pending, err := m.Pending(ctx, topic)
	if err != nil {
		return nil, err
	}

	applied := make([]migration.Record, 0, len(pending))
	for _, record := range pending {
		if maxVersion != "" && record.Version.Compare(maxVersion) > 0 {
			break
		}

		if err := m.broker.Apply(ctx, record); err != nil {
			return applied, fmt.Errorf("failed to apply migration %s: %w", record.Path, err)
		}

		if m.dryRun {
			m.logger.Info("migration validated", "topic", record.Topic, "version", record.Version, "path", record.Path)
			applied = append(applied, record)
			continue
		}

		err := m.driver.LogMigration(ctx, migration.Log{
			Topic:     record.Topic,
			Version:   record.Version,
			Kind:      record.Operation.Kind,
			Notes:     record.Operation.Notes,
			AppliedAt: m.timeNow(),
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s was applied but could not be logged: %w", record.Path, err)
		}

		m.logger.Info("migration applied", "topic", record.Topic, "version", record.Version, "path", record.Path)
		applied = append(applied, record)
	}

	return applied, nil
}

// ---

// loadAppliedMigrations indexes the log of topic by version; the latest entry
// of a version wins.
func (m *henkaImpl) loadAppliedMigrations(ctx context.Context, topic string) (map[migration.Version]migration.Log, error) {
	migrations, err := m.driver.ListMigrationsLog(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations from db: %w", err)
	}

	result := make(map[migration.Version]migration.Log, len(migrations))
	for _, mig := range migrations {
		result[mig.Version] = mig
	}

	return result, nil
}
