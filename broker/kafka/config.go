package kafka

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

const (
	MechanismPlain       = "PLAIN"
	MechanismScramSHA256 = "SCRAM-SHA-256"
	MechanismScramSHA512 = "SCRAM-SHA-512"
)

var ErrUnknownMechanism = errors.New("unknown SASL mechanism")

type Config struct {
	Brokers  []string
	ClientID string
	// Version is the Kafka protocol version, e.g. "2.8.0". Empty means the
	// sarama default.
	Version string
	Timeout time.Duration
	TLS     bool
	SASL    SASLConfig
}

type SASLConfig struct {
	Mechanism string
	User      string
	Password  string
}

func (cfg Config) saramaConfig() (*sarama.Config, error) {
	config := sarama.NewConfig()

	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	if cfg.Version != "" {
		version, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid Kafka version %q: %w", cfg.Version, err)
		}
		config.Version = version
	}

	if cfg.Timeout > 0 {
		config.Admin.Timeout = cfg.Timeout
		config.Net.DialTimeout = cfg.Timeout
		config.Net.ReadTimeout = cfg.Timeout
		config.Net.WriteTimeout = cfg.Timeout
	}

	if cfg.TLS {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.SASL.Mechanism != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = cfg.SASL.User
		config.Net.SASL.Password = cfg.SASL.Password

		switch strings.ToUpper(cfg.SASL.Mechanism) {
		case MechanismPlain:
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case MechanismScramSHA256:
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: sha256.New}
			}
		case MechanismScramSHA512:
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: sha512.New}
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownMechanism, cfg.SASL.Mechanism)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Kafka client configuration: %w", err)
	}

	return config, nil
}

// scramClient implements sarama.SCRAMClient on top of xdg-go/scram.
type scramClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.Client = client
	c.ClientConversation = client.NewConversation()
	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.ClientConversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.ClientConversation.Done()
}
