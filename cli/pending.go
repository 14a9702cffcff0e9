package cli

import (
	"fmt"

	"github.com/root-talis/henka-kafka/migration"
)

// Pending lists the migrations of a topic newer than its current version. The
// current version is read from the store unless --from is given.
type Pending struct {
	Topic string       `arg:"" help:"Topic name."`
	From  versionField `help:"Treat this version as the current one instead of asking the store."`
}

// Run the pending command.
func (c *Pending) Run(appCtx *Context, root *CLI) error {
	var (
		records []migration.Record
		err     error
	)

	if c.From != "" {
		src, serr := root.openSource(appCtx)
		if serr != nil {
			return serr
		}
		records, err = src.Newer(c.From.version(), c.Topic)
	} else {
		migrator, release, merr := root.openMigrator(appCtx, false, false)
		if merr != nil {
			return merr
		}
		defer release()
		records, err = migrator.Pending(appCtx.Ctx, c.Topic)
	}
	if err != nil {
		return fmt.Errorf("failed listing pending migrations of topic %s: %w", c.Topic, err)
	}

	if len(records) == 0 {
		appCtx.Logger.Info("topic is up to date", "topic", c.Topic)
		return nil
	}

	return renderRecords(records, appCtx.Stdout)
}
