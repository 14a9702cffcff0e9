package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/root-talis/henka-kafka"
	"github.com/root-talis/henka-kafka/broker"
	"github.com/root-talis/henka-kafka/broker/kafka"
	"github.com/root-talis/henka-kafka/driver/mysql"
	"github.com/root-talis/henka-kafka/migration"
	"github.com/root-talis/henka-kafka/source"
	"github.com/root-talis/henka-kafka/source/files"
)

var (
	ErrNoStore  = errors.New("no migrations store configured, set --mysql-dsn")
	ErrNoBroker = errors.New("no Kafka brokers configured, set --kafka-brokers")
)

// CLI is the command line interface of henka.
type CLI struct {
	History History `kong:"cmd,help='List every migration file of a topic.'"`
	Pending Pending `kong:"cmd,help='List migrations of a topic that are not applied yet.'"`
	Next    Next    `kong:"cmd,help='Show the next migration of a topic.'"`
	Status  Status  `kong:"cmd,help='Compare migration files of a topic with the applied ones.'"`
	Migrate Migrate `kong:"cmd,help='Apply pending migrations of a topic.'"`
	Check   Check   `kong:"cmd,help='Load and validate a single migration file.'"`

	Directory string `kong:"short='d',default='migrations',help='Directory holding migration files.'"`

	MySQL struct {
		DSN      string `kong:"name='dsn',help='MySQL data source name of the migrations store.'"`
		Database string `kong:"help='Database holding the migrations table. Defaults to the one of the DSN.'"`
		Table    string `kong:"default='henka_migrations',help='Name of the migrations table.'"`
	} `embed:"" prefix:"mysql-"`

	Kafka struct {
		Brokers  []string      `kong:"help='Kafka bootstrap servers.'"`
		Version  string        `kong:"help='Kafka protocol version, e.g. 2.8.0.'"`
		ClientID string        `kong:"name='client-id',default='henka',help='Client id reported to Kafka.'"`
		Timeout  time.Duration `kong:"default='30s',help='Timeout of admin requests.'"`
		TLS      bool          `kong:"name='tls',help='Connect over TLS.'"`
		SASL     struct {
			Mechanism string `kong:"help='SASL mechanism: PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.'"`
			User      string `kong:"help='SASL user.'"`
			Password  string `kong:"help='SASL password.'"`
		} `embed:"" prefix:"sasl-"`
	} `embed:"" prefix:"kafka-"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	Version kong.VersionFlag `kong:"help='Output version and exit.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// New initializes the command-line interface.
func New(version string) (*CLI, error) {
	c := &CLI{}
	kparser, err := kong.New(c,
		kong.Name("henka"),
		kong.Description("Versioned migrations for Kafka topics."),
		kong.UsageOnError(),
		kong.DefaultEnvars("HENKA"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx, c)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ---

func (c *CLI) openSource(appCtx *Context) (source.Source, error) {
	src, err := files.NewFilesSource(appCtx.DirFS(c.Directory), ".", files.WithLogger(appCtx.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed opening migrations directory %s: %w", c.Directory, err)
	}
	return src, nil
}

// openMigrator wires the file source, the MySQL store and, if withBroker is
// set, the Kafka broker. A dry run only validates against the cluster and logs
// nothing. The returned function releases the backends.
func (c *CLI) openMigrator(appCtx *Context, withBroker, dryRun bool) (henka.Henka, func(), error) {
	src, err := c.openSource(appCtx)
	if err != nil {
		return nil, nil, err
	}

	if c.MySQL.DSN == "" {
		return nil, nil, ErrNoStore
	}
	drv, closer, err := appCtx.OpenStore(c.MySQL.DSN, mysql.DriverConfig{
		DatabaseName:        c.MySQL.Database,
		MigrationsTableName: c.MySQL.Table,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed opening migrations store: %w", err)
	}

	release := func() {
		if err := closer.Close(); err != nil {
			appCtx.Logger.Warn("failed closing migrations store", "error", err)
		}
	}

	var brk broker.Broker
	if withBroker {
		brk, err = c.connectBroker(appCtx, kafka.WithValidateOnly(dryRun))
		if err != nil {
			release()
			return nil, nil, err
		}
		releaseStore := release
		release = func() {
			if err := brk.Close(); err != nil {
				appCtx.Logger.Warn("failed closing Kafka admin client", "error", err)
			}
			releaseStore()
		}
	}

	migrator := henka.New(src, drv, brk,
		henka.WithLogger(appCtx.Logger),
		henka.WithTimeNow(appCtx.TimeNow),
		henka.WithDryRun(dryRun),
	)

	return migrator, release, nil
}

func (c *CLI) connectBroker(appCtx *Context, opts ...kafka.Option) (broker.Broker, error) {
	if len(c.Kafka.Brokers) == 0 {
		return nil, ErrNoBroker
	}

	opts = append([]kafka.Option{kafka.WithLogger(appCtx.Logger)}, opts...)
	brk, err := appCtx.ConnectBroker(kafka.Config{
		Brokers:  c.Kafka.Brokers,
		ClientID: c.Kafka.ClientID,
		Version:  c.Kafka.Version,
		Timeout:  c.Kafka.Timeout,
		TLS:      c.Kafka.TLS,
		SASL: kafka.SASLConfig{
			Mechanism: c.Kafka.SASL.Mechanism,
			User:      c.Kafka.SASL.User,
			Password:  c.Kafka.SASL.Password,
		},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed connecting to Kafka: %w", err)
	}

	return brk, nil
}

// ---

// versionField is a bare version token, e.g. v0042. Empty means unset.
type versionField string

func (v versionField) Validate() error {
	if v != "" && !files.IsVersionToken(string(v)) {
		return fmt.Errorf("invalid version %q, expected v followed by %d digits", string(v), migration.VersionDigits)
	}
	return nil
}

func (v versionField) version() migration.Version {
	return migration.Version(v)
}
