package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/root-talis/henka-kafka/app"
)

var version = "dev" // nolint:gochecknoglobals

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New("henka", version,
		app.WithContext(ctx),
		app.WithFDs(
			colorable.NewColorable(os.Stdout),
			colorable.NewColorable(os.Stderr),
		),
		app.WithLogger(isatty.IsTerminal(os.Stderr.Fd())),
		app.WithDirFS(func(dir string) fs.FS {
			return os.DirFS(dir)
		}),
		app.WithSQLStore("mysql"),
	)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	if err = a.Run(os.Args[1:]); err != nil {
		a.Logger().Error("command failed", "error", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop is called above.
	}
}
