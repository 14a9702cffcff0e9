package app

import (
	"context"
	"database/sql"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/root-talis/henka-kafka/broker"
	"github.com/root-talis/henka-kafka/broker/kafka"
	"github.com/root-talis/henka-kafka/driver"
	"github.com/root-talis/henka-kafka/driver/mysql"
)

// Option is a function that allows configuring the application.
type Option func(*App)

// WithContext sets the main context.
func WithContext(ctx context.Context) Option {
	return func(app *App) {
		app.ctx.Ctx = ctx
	}
}

// WithFDs sets the output streams used by the application.
func WithFDs(stdout, stderr io.Writer) Option {
	return func(app *App) {
		app.ctx.Stdout = stdout
		app.ctx.Stderr = stderr
	}
}

// WithDirFS sets how the migrations directory is opened.
func WithDirFS(dirFS func(dir string) fs.FS) Option {
	return func(app *App) {
		app.ctx.DirFS = dirFS
	}
}

// WithSQLStore opens the migrations store through database/sql with the given
// driver name.
func WithSQLStore(driverName string) Option {
	return WithStore(func(dsn string, config mysql.DriverConfig) (driver.Driver, io.Closer, error) {
		conn, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck // This is wrapped by the caller.
		}
		return mysql.NewDriver(conn, config), conn, nil
	})
}

// WithStore sets the migrations store factory.
func WithStore(open func(dsn string, config mysql.DriverConfig) (driver.Driver, io.Closer, error)) Option {
	return func(app *App) {
		app.ctx.OpenStore = open
	}
}

// WithBroker sets the Kafka broker factory.
func WithBroker(connect func(config kafka.Config, opts ...kafka.Option) (broker.Broker, error)) Option {
	return func(app *App) {
		app.ctx.ConnectBroker = connect
	}
}

// WithLogger initializes the logger used by the application. It must come
// after WithFDs.
func WithLogger(isStderrTTY bool) Option {
	return func(app *App) {
		lvl := &slog.LevelVar{}
		lvl.Set(slog.LevelInfo)
		logger := slog.New(
			tint.NewHandler(app.ctx.Stderr, &tint.Options{
				Level:      lvl,
				NoColor:    !isStderrTTY,
				TimeFormat: "2006-01-02 15:04:05.000",
			}),
		)
		app.logLevel = lvl
		app.ctx.Logger = logger
		slog.SetDefault(logger)
	}
}

// WithTimeNow sets the function used to retrieve the current system time.
func WithTimeNow(timeNowFn func() time.Time) Option {
	return func(app *App) {
		app.ctx.TimeNow = timeNowFn
	}
}
