package cli

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/root-talis/henka-kafka/broker"
	"github.com/root-talis/henka-kafka/broker/kafka"
	"github.com/root-talis/henka-kafka/driver"
	"github.com/root-talis/henka-kafka/driver/mysql"
)

// Context contains common objects used by the commands. It is passed around to
// avoid direct dependencies on external systems, and make testing easier.
type Context struct {
	Ctx     context.Context // global context
	Logger  *slog.Logger    // global logger
	TimeNow func() time.Time

	// Standard streams
	Stdout io.Writer
	Stderr io.Writer

	// Backends, created lazily from the parsed flags.
	DirFS         func(dir string) fs.FS
	OpenStore     func(dsn string, config mysql.DriverConfig) (driver.Driver, io.Closer, error)
	ConnectBroker func(config kafka.Config, opts ...kafka.Option) (broker.Broker, error)
}
