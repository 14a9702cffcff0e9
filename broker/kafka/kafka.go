// Package kafka applies topic migrations through the Kafka admin API.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"github.com/root-talis/henka-kafka/broker"
	"github.com/root-talis/henka-kafka/migration"
)

// ClusterAdmin is the part of sarama.ClusterAdmin the broker needs.
type ClusterAdmin interface {
	CreateTopic(topic string, detail *sarama.TopicDetail, validateOnly bool) error
	DeleteTopic(topic string) error
	CreatePartitions(topic string, count int32, assignment [][]int32, validateOnly bool) error
	AlterConfig(resourceType sarama.ConfigResourceType, name string, entries map[string]*string, validateOnly bool) error
	Close() error
}

var _ ClusterAdmin = sarama.ClusterAdmin(nil)

type kafkaBroker struct {
	admin        ClusterAdmin
	validateOnly bool
	logger       *slog.Logger
}

type Option func(*kafkaBroker)

func WithLogger(logger *slog.Logger) Option {
	return func(b *kafkaBroker) {
		b.logger = logger
	}
}

// WithValidateOnly makes the cluster validate every request without
// changing anything. Removals can not be validated and are skipped.
func WithValidateOnly(validateOnly bool) Option {
	return func(b *kafkaBroker) {
		b.validateOnly = validateOnly
	}
}

func New(admin ClusterAdmin, opts ...Option) broker.Broker {
	b := &kafkaBroker{
		admin:  admin,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect opens a cluster admin connection described by cfg.
func Connect(cfg Config, opts ...Option) (broker.Broker, error) {
	saramaConfig, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}

	admin, err := sarama.NewClusterAdmin(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Kafka cluster %v: %w", cfg.Brokers, err)
	}

	return New(admin, opts...), nil
}

func (b *kafkaBroker) Apply(ctx context.Context, record migration.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch record.Operation.Kind {
	case migration.Create:
		err = b.create(record)
	case migration.Patch:
		err = b.patch(record)
	case migration.Remove:
		err = b.remove(record)
	default:
		return fmt.Errorf("%w: %s (%s)", broker.ErrUnknownOperation, record.Operation.Kind, record.Path)
	}

	if err != nil {
		return fmt.Errorf("failed to apply %s to topic %s: %w", record.Version, record.Topic, err)
	}

	b.logger.Debug("migration applied",
		"topic", record.Topic,
		"version", record.Version,
		"operation", record.Operation.Kind,
		"validateOnly", b.validateOnly,
	)

	return nil
}

func (b *kafkaBroker) Close() error {
	if err := b.admin.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka cluster admin: %w", err)
	}
	return nil
}

// ---

func (b *kafkaBroker) create(record migration.Record) error {
	detail := &sarama.TopicDetail{
		NumPartitions:     record.Operation.Partitions,
		ReplicationFactor: record.Operation.ReplicationFactor,
		ConfigEntries:     configEntries(record.Operation.Config),
	}

	if err := b.admin.CreateTopic(record.Topic, detail, b.validateOnly); err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}

func (b *kafkaBroker) patch(record migration.Record) error {
	if record.Operation.Partitions > 0 {
		err := b.admin.CreatePartitions(record.Topic, record.Operation.Partitions, nil, b.validateOnly)
		if err != nil {
			return fmt.Errorf("failed to set partition count to %d: %w", record.Operation.Partitions, err)
		}
	}

	if len(record.Operation.Config) > 0 {
		err := b.admin.AlterConfig(sarama.TopicResource, record.Topic, configEntries(record.Operation.Config), b.validateOnly)
		if err != nil {
			return fmt.Errorf("failed to alter topic config: %w", err)
		}
	}

	return nil
}

func (b *kafkaBroker) remove(record migration.Record) error {
	if b.validateOnly {
		b.logger.Info("topic removal skipped in validate-only mode", "topic", record.Topic, "version", record.Version)
		return nil
	}

	if err := b.admin.DeleteTopic(record.Topic); err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	return nil
}

func configEntries(config map[string]string) map[string]*string {
	if len(config) == 0 {
		return nil
	}

	entries := make(map[string]*string, len(config))
	for key, value := range config {
		value := value
		entries[key] = &value
	}
	return entries
}
