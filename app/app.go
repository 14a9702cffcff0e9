package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/root-talis/henka-kafka/broker/kafka"
	"github.com/root-talis/henka-kafka/cli"
	"github.com/root-talis/henka-kafka/driver"
	"github.com/root-talis/henka-kafka/driver/mysql"
)

var errNotConfigured = errors.New("backend not configured")

// App is the application.
type App struct {
	name string
	ctx  *cli.Context
	cli  *cli.CLI
	// the logging level is set via the CLI, if the app was initialized with the
	// WithLogger option.
	logLevel *slog.LevelVar
}

// New initializes a new application.
func New(name, version string, opts ...Option) (*App, error) {
	defaultCtx := &cli.Context{
		Ctx:     context.Background(),
		Logger:  slog.Default(),
		TimeNow: time.Now,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
		DirFS: func(string) fs.FS {
			return emptyFS{}
		},
		OpenStore: func(string, mysql.DriverConfig) (driver.Driver, io.Closer, error) {
			return nil, nil, fmt.Errorf("migrations store: %w", errNotConfigured)
		},
		ConnectBroker: kafka.Connect,
	}
	app := &App{name: name, ctx: defaultCtx}

	for _, opt := range opts {
		opt(app)
	}

	var err error
	app.cli, err = cli.New(fmt.Sprintf("%s %s", app.name, version))
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run parses args and executes the selected command.
func (app *App) Run(args []string) error {
	if err := app.cli.Parse(args); err != nil {
		return err
	}

	if app.logLevel != nil {
		app.logLevel.Set(app.cli.Log.Level)
		slog.SetLogLoggerLevel(app.cli.Log.Level)
	}

	if err := app.cli.Execute(app.ctx); err != nil {
		return fmt.Errorf("%s: %w", app.cli.Command(), err)
	}

	return nil
}

// Logger returns the application logger.
func (app *App) Logger() *slog.Logger {
	return app.ctx.Logger
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
